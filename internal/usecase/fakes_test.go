package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/pagecheck-service/internal/entity"
	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/internal/verifier"
)

type memRunRepo struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]entity.VerificationRun
	snapshots map[uuid.UUID][]entity.PageSnapshot
	createErr error
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{
		runs:      make(map[uuid.UUID]entity.VerificationRun),
		snapshots: make(map[uuid.UUID][]entity.PageSnapshot),
	}
}

func (r *memRunRepo) Create(_ context.Context, run *entity.VerificationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *memRunRepo) Update(ctx context.Context, run *entity.VerificationRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return repository.ErrRunNotFound
	}
	stored := *run
	stored.Snapshots = nil
	r.runs[run.ID] = stored
	return nil
}

func (r *memRunRepo) SaveSnapshots(ctx context.Context, id uuid.UUID, snaps []entity.PageSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[id] = append([]entity.PageSnapshot(nil), snaps...)
	return nil
}

func (r *memRunRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.VerificationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	run.Snapshots = r.snapshots[id]
	return &run, nil
}

func (r *memRunRepo) ListRecent(_ context.Context, limit int) ([]*entity.VerificationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.VerificationRun, 0, len(r.runs))
	for _, run := range r.runs {
		run := run
		out = append(out, &run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memQueue struct {
	mu    sync.Mutex
	items []string
}

func (q *memQueue) Push(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, id)
	return nil
}

func (q *memQueue) Pop(_ context.Context, _ time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", repository.ErrQueueEmpty
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, nil
}

func (q *memQueue) Size(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

type memCooldown struct {
	mu     sync.Mutex
	active map[string]time.Duration
}

func newMemCooldown() *memCooldown {
	return &memCooldown{active: make(map[string]time.Duration)}
}

func (c *memCooldown) Mark(_ context.Context, key string, window time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[key] = window
	return nil
}

func (c *memCooldown) MarkIfAbsent(_ context.Context, key string, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[key]; ok {
		return false, nil
	}
	c.active[key] = window
	return true, nil
}

func (c *memCooldown) Active(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[key]
	return ok, nil
}

func (c *memCooldown) Clear(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, key)
	return nil
}

type runnerFunc func(ctx context.Context, sess repository.Session, sc *scenario.Scenario, baseURL string) (*verifier.Report, error)

func (f runnerFunc) Run(ctx context.Context, sess repository.Session, sc *scenario.Scenario, baseURL string) (*verifier.Report, error) {
	return f(ctx, sess, sc, baseURL)
}

type browserFunc func(ctx context.Context, driver string) (repository.Browser, error)

func (f browserFunc) Get(ctx context.Context, driver string) (repository.Browser, error) {
	return f(ctx, driver)
}
