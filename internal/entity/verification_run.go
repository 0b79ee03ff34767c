package entity

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s RunStatus) Finished() bool {
	return s == RunStatusPassed || s == RunStatusFailed
}

// VerificationRun mirrors the `verification_runs` PostgreSQL table schema.
type VerificationRun struct {
	ID            uuid.UUID
	Scenario      string
	BaseURL       string
	Driver        string
	Status        RunStatus
	ErrorKind     string
	FailureReason string
	Snapshots     []PageSnapshot
	Annotations   []Annotation // Stored as JSONB in PostgreSQL
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}
