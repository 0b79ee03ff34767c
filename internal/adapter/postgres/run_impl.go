package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/pagecheck-service/internal/entity"
	"github.com/user/pagecheck-service/internal/repository"
)

//go:embed schema.sql
var schema string

// NewPool connects to PostgreSQL and verifies the connection.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return db, nil
}

// RunRepoImpl provides a concrete implementation for the RunRepository interface using PostgreSQL.
type RunRepoImpl struct {
	db *pgxpool.Pool
}

// NewRunRepo creates a new instance of RunRepoImpl.
func NewRunRepo(db *pgxpool.Pool) *RunRepoImpl {
	return &RunRepoImpl{db: db}
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *RunRepoImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

func (r *RunRepoImpl) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *RunRepoImpl) Create(ctx context.Context, run *entity.VerificationRun) error {
	annotations, err := marshalAnnotations(run.Annotations)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO verification_runs (id, scenario, base_url, driver, status, error_kind, failure_reason, annotations, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err = r.db.Exec(ctx, query,
		run.ID,
		run.Scenario,
		run.BaseURL,
		run.Driver,
		string(run.Status),
		run.ErrorKind,
		run.FailureReason,
		annotations,
		run.CreatedAt,
		run.StartedAt,
		run.FinishedAt,
	)
	return err
}

func (r *RunRepoImpl) Update(ctx context.Context, run *entity.VerificationRun) error {
	annotations, err := marshalAnnotations(run.Annotations)
	if err != nil {
		return err
	}

	query := `
		UPDATE verification_runs SET
			status = $2,
			error_kind = $3,
			failure_reason = $4,
			annotations = $5,
			started_at = $6,
			finished_at = $7
		WHERE id = $1;
	`
	tag, err := r.db.Exec(ctx, query,
		run.ID,
		string(run.Status),
		run.ErrorKind,
		run.FailureReason,
		annotations,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrRunNotFound
	}
	return nil
}

// SaveSnapshots replaces the snapshots of a run within a single transaction.
func (r *RunRepoImpl) SaveSnapshots(ctx context.Context, runID uuid.UUID, snapshots []entity.PageSnapshot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM run_snapshots WHERE run_id = $1`, runID); err != nil {
		return err
	}

	if len(snapshots) > 0 {
		batch := &pgx.Batch{}
		for seq, s := range snapshots {
			batch.Queue(`INSERT INTO run_snapshots (run_id, seq, page_index, url, titles, dates, captured_at)
			             VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				runID, seq, s.PageIndex, s.URL, s.Titles, s.Dates, s.CapturedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

const runColumns = `id, scenario, base_url, driver, status, error_kind, failure_reason, annotations, created_at, started_at, finished_at`

func (r *RunRepoImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.VerificationRun, error) {
	row := r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM verification_runs WHERE id = $1;`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT page_index, url, titles, dates, captured_at
		FROM run_snapshots
		WHERE run_id = $1
		ORDER BY seq;
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s entity.PageSnapshot
		if err := rows.Scan(&s.PageIndex, &s.URL, &s.Titles, &s.Dates, &s.CapturedAt); err != nil {
			return nil, err
		}
		run.Snapshots = append(run.Snapshots, s)
	}
	return run, rows.Err()
}

func (r *RunRepoImpl) ListRecent(ctx context.Context, limit int) ([]*entity.VerificationRun, error) {
	rows, err := r.db.Query(ctx, `SELECT `+runColumns+` FROM verification_runs ORDER BY created_at DESC LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*entity.VerificationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*entity.VerificationRun, error) {
	var run entity.VerificationRun
	var status string
	var annotationsJSON []byte

	err := row.Scan(
		&run.ID,
		&run.Scenario,
		&run.BaseURL,
		&run.Driver,
		&status,
		&run.ErrorKind,
		&run.FailureReason,
		&annotationsJSON,
		&run.CreatedAt,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = entity.RunStatus(status)

	if err := json.Unmarshal(annotationsJSON, &run.Annotations); err != nil {
		return nil, err
	}
	return &run, nil
}

func marshalAnnotations(a []entity.Annotation) ([]byte, error) {
	if a == nil {
		a = []entity.Annotation{}
	}
	return json.Marshal(a)
}
