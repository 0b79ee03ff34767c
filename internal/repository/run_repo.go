package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/user/pagecheck-service/internal/entity"
)

// RunRepository defines the interface for storing verification runs and the
// snapshots they captured.
type RunRepository interface {
	// Create inserts a new run record.
	Create(ctx context.Context, run *entity.VerificationRun) error
	// Update stores the status, timestamps, failure details and annotations of a run.
	Update(ctx context.Context, run *entity.VerificationRun) error
	// SaveSnapshots replaces the stored snapshots of a run.
	SaveSnapshots(ctx context.Context, runID uuid.UUID, snapshots []entity.PageSnapshot) error
	// FindByID returns ErrRunNotFound when no run has the given id.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.VerificationRun, error)
	// ListRecent returns up to limit runs, newest first, without snapshots.
	ListRecent(ctx context.Context, limit int) ([]*entity.VerificationRun, error)
}
