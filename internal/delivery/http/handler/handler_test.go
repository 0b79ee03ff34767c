package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user/pagecheck-service/internal/delivery/http/handler"
	"github.com/user/pagecheck-service/internal/delivery/http/response"
	"github.com/user/pagecheck-service/internal/delivery/http/router"
	"github.com/user/pagecheck-service/internal/entity"
	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/internal/usecase"
	"github.com/user/pagecheck-service/pkg/metrics"
)

type stubManager struct {
	submitted []usecase.SubmitRequest
	submitErr error
	runs      map[uuid.UUID]*entity.VerificationRun
	lastLimit int
	listErr   error
}

func (s *stubManager) Submit(_ context.Context, req usecase.SubmitRequest) (*entity.VerificationRun, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submitted = append(s.submitted, req)
	run := &entity.VerificationRun{ID: uuid.New(), Scenario: req.Scenario, Status: entity.RunStatusPending}
	s.runs[run.ID] = run
	return run, nil
}

func (s *stubManager) GetStatus(_ context.Context, id uuid.UUID) (*entity.VerificationRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	return run, nil
}

func (s *stubManager) ListRecent(_ context.Context, limit int) ([]*entity.VerificationRun, error) {
	s.lastLimit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]*entity.VerificationRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	return out, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newAPI(t *testing.T, m *stubManager, health map[string]handler.Pinger) http.Handler {
	t.Helper()
	catalog, err := scenario.NewCatalog("")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	logger := zaptest.NewLogger(t)
	h := handler.NewHandler(m, catalog, health, logger)
	return router.New(h, metrics.New(reg), reg, logger)
}

func newStub() *stubManager {
	return &stubManager{runs: make(map[uuid.UUID]*entity.VerificationRun)}
}

func TestSubmitRun_Accepted(t *testing.T) {
	m := newStub()
	var resp response.SubmitRunResponse

	apitest.New().
		Handler(newAPI(t, m, nil)).
		Post("/api/runs").
		JSON(`{"scenario":"pagination","base_url":"https://staging.skillsvr.com","driver":"rod","force":true}`).
		Expect(t).
		Status(http.StatusAccepted).
		HeaderPresent("Location").
		End().
		JSON(&resp)

	assert.Equal(t, "success", resp.Status)
	_, err := uuid.Parse(resp.RunID)
	require.NoError(t, err)
	require.Len(t, m.submitted, 1)
	assert.Equal(t, usecase.SubmitRequest{
		Scenario: "pagination",
		BaseURL:  "https://staging.skillsvr.com",
		Driver:   "rod",
		Force:    true,
	}, m.submitted[0])
}

func TestSubmitRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed body", body: `{"scenario":`, status: http.StatusBadRequest},
		{name: "missing scenario", body: `{}`, status: http.StatusBadRequest},
		{name: "unknown scenario", body: `{"scenario":"x"}`, err: fmt.Errorf("%w: %q", scenario.ErrNotFound, "x"), status: http.StatusBadRequest},
		{name: "bad base url", body: `{"scenario":"journey"}`, err: usecase.ErrInvalidBaseURL, status: http.StatusBadRequest},
		{name: "bad driver", body: `{"scenario":"journey"}`, err: usecase.ErrUnknownDriver, status: http.StatusBadRequest},
		{name: "cooldown", body: `{"scenario":"journey"}`, err: usecase.ErrRecentlyVerified, status: http.StatusConflict},
		{name: "store down", body: `{"scenario":"journey"}`, err: errors.New("connection refused"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newStub()
			m.submitErr = tt.err

			apitest.New().
				Handler(newAPI(t, m, nil)).
				Post("/api/runs").
				JSON(tt.body).
				Expect(t).
				Status(tt.status).
				Assert(func(res *http.Response, _ *http.Request) error {
					var body map[string]string
					if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
						return err
					}
					if body["error"] == "" {
						return errors.New("missing error message")
					}
					if tt.status == http.StatusInternalServerError && body["error"] != "Internal server error" {
						return fmt.Errorf("internal error leaked: %q", body["error"])
					}
					return nil
				}).
				End()
		})
	}
}

func TestGetRun(t *testing.T) {
	m := newStub()
	finished := time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC)
	run := &entity.VerificationRun{
		ID:            uuid.New(),
		Scenario:      "pagination",
		Status:        entity.RunStatusFailed,
		ErrorKind:     "assertion_mismatch",
		FailureReason: `step "page 2": distinct: expected a, got b`,
		Snapshots:     []entity.PageSnapshot{{PageIndex: 1, Titles: []string{"a"}, Dates: []string{"Oct 30, 2025"}}},
		FinishedAt:    &finished,
	}
	m.runs[run.ID] = run
	api := newAPI(t, m, nil)

	var got response.RunResponse
	apitest.New().
		Handler(api).
		Get("/api/runs/" + run.ID.String()).
		Expect(t).
		Status(http.StatusOK).
		End().
		JSON(&got)

	assert.Equal(t, run.ID.String(), got.ID)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "assertion_mismatch", got.ErrorKind)
	require.Len(t, got.Snapshots, 1)
	assert.Equal(t, []string{"a"}, got.Snapshots[0].Titles)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	apitest.New().
		Handler(api).
		Get("/api/runs/" + uuid.NewString()).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	apitest.New().
		Handler(api).
		Get("/api/runs/not-a-uuid").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestListRuns(t *testing.T) {
	m := newStub()
	api := newAPI(t, m, nil)
	for i := 0; i < 3; i++ {
		id := uuid.New()
		m.runs[id] = &entity.VerificationRun{ID: id, Scenario: "pagination", Status: entity.RunStatusPassed}
	}

	var got response.RunListResponse
	apitest.New().
		Handler(api).
		Get("/api/runs").
		Query("limit", "5").
		Expect(t).
		Status(http.StatusOK).
		End().
		JSON(&got)
	assert.Len(t, got.Runs, 3)
	assert.Equal(t, 5, m.lastLimit)

	apitest.New().
		Handler(api).
		Get("/api/runs").
		Query("limit", "-1").
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	m.listErr = errors.New("boom")
	apitest.New().
		Handler(api).
		Get("/api/runs").
		Expect(t).
		Status(http.StatusInternalServerError).
		End()
}

func TestListScenarios(t *testing.T) {
	var got []response.ScenarioResponse
	apitest.New().
		Handler(newAPI(t, newStub(), nil)).
		Get("/api/scenarios").
		Expect(t).
		Status(http.StatusOK).
		End().
		JSON(&got)

	var names []string
	for _, sc := range got {
		names = append(names, sc.Name)
		assert.Positive(t, sc.Steps)
	}
	assert.Equal(t, []string{"journey", "pagination", "signin-negative"}, names)
}

func TestHealthCheck(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })

	var got response.HealthResponse
	apitest.New().
		Handler(newAPI(t, newStub(), map[string]handler.Pinger{"postgres": ok, "redis": ok})).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		End().
		JSON(&got)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, got.Checks)

	apitest.New().
		Handler(newAPI(t, newStub(), map[string]handler.Pinger{"postgres": ok, "redis": down})).
		Get("/api/health").
		Expect(t).
		Status(http.StatusServiceUnavailable).
		End().
		JSON(&got)
	assert.Equal(t, "degraded", got.Status)
	assert.Contains(t, got.Checks["redis"], "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	api := newAPI(t, newStub(), nil)

	apitest.New().
		Handler(api).
		Get("/api/runs/" + uuid.NewString()).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	apitest.New().
		Handler(api).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(res *http.Response, _ *http.Request) error {
			body, err := io.ReadAll(res.Body)
			if err != nil {
				return err
			}
			want := `http_requests_total{method="GET",path="/api/runs/{id}",status="404"} 1`
			if !strings.Contains(string(body), want) {
				return fmt.Errorf("metrics output is missing %s", want)
			}
			return nil
		}).
		End()
}
