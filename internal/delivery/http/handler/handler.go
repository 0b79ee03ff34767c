package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/delivery/http/request"
	"github.com/user/pagecheck-service/internal/delivery/http/response"
	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/internal/usecase"
)

const healthTimeout = 2 * time.Second

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ScenarioLister lists the scenarios runs can be submitted for.
type ScenarioLister interface {
	All() []*scenario.Scenario
}

type Handler struct {
	runManager usecase.RunManager
	scenarios  ScenarioLister
	health     map[string]Pinger
	logger     *zap.Logger
}

func NewHandler(runManager usecase.RunManager, scenarios ScenarioLister, health map[string]Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		runManager: runManager,
		scenarios:  scenarios,
		health:     health,
		logger:     logger,
	}
}

func (h *Handler) HandleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Scenario == "" {
		h.writeJSONError(w, "scenario is required", http.StatusBadRequest)
		return
	}

	run, err := h.runManager.Submit(r.Context(), usecase.SubmitRequest{
		Scenario: req.Scenario,
		BaseURL:  req.BaseURL,
		Driver:   req.Driver,
		Force:    req.Force,
	})
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrRecentlyVerified):
		h.writeJSONError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, scenario.ErrNotFound),
		errors.Is(err, usecase.ErrInvalidBaseURL),
		errors.Is(err, usecase.ErrUnknownDriver):
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	default:
		h.logger.Error("Failed to submit run", zap.String("scenario", req.Scenario), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", "/api/runs/"+run.ID.String())
	h.writeJSON(w, http.StatusAccepted, response.SubmitRunResponse{
		Status:  "success",
		Message: "Run queued for verification.",
		RunID:   run.ID.String(),
	})
}

func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeJSONError(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	run, err := h.runManager.GetStatus(r.Context(), id)
	if errors.Is(err, repository.ErrRunNotFound) {
		h.writeJSONError(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get run", zap.String("run_id", id.String()), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.NewRunResponse(run))
}

func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runManager.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.RunListResponse{Runs: make([]response.RunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, response.NewRunResponse(run))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	all := h.scenarios.All()
	resp := make([]response.ScenarioResponse, 0, len(all))
	for _, sc := range all {
		resp = append(resp, response.ScenarioResponse{
			Name:        sc.Name,
			Description: sc.Description,
			BaseURL:     sc.BaseURL,
			Steps:       len(sc.Steps),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.health))
	for name := range h.health {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := response.HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.health[name].Ping(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
