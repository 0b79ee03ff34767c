package response

import (
	"time"

	"github.com/user/pagecheck-service/internal/entity"
)

type SubmitRunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// RunResponse is a DTO for a verification run, mirroring entity.VerificationRun.
type RunResponse struct {
	ID            string                `json:"id"`
	Scenario      string                `json:"scenario"`
	BaseURL       string                `json:"base_url"`
	Driver        string                `json:"driver"`
	Status        string                `json:"status"` // "pending", "running", "passed", "failed"
	ErrorKind     string                `json:"error_kind,omitempty"`
	FailureReason string                `json:"failure_reason,omitempty"`
	Snapshots     []entity.PageSnapshot `json:"snapshots,omitempty"`
	Annotations   []entity.Annotation   `json:"annotations,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	StartedAt     *time.Time            `json:"started_at,omitempty"`
	FinishedAt    *time.Time            `json:"finished_at,omitempty"`
}

type RunListResponse struct {
	Runs []RunResponse `json:"runs"`
}

type ScenarioResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
	Steps       int    `json:"steps"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func NewRunResponse(run *entity.VerificationRun) RunResponse {
	return RunResponse{
		ID:            run.ID.String(),
		Scenario:      run.Scenario,
		BaseURL:       run.BaseURL,
		Driver:        run.Driver,
		Status:        string(run.Status),
		ErrorKind:     run.ErrorKind,
		FailureReason: run.FailureReason,
		Snapshots:     run.Snapshots,
		Annotations:   run.Annotations,
		CreatedAt:     run.CreatedAt,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
}
