package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user/pagecheck-service/internal/entity"
	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
)

type managerFixture struct {
	runs     *memRunRepo
	queue    *memQueue
	cooldown *memCooldown
	manager  RunManager
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	catalog, err := scenario.NewCatalog("")
	require.NoError(t, err)

	f := &managerFixture{runs: newMemRunRepo(), queue: &memQueue{}, cooldown: newMemCooldown()}
	f.manager = NewRunManager(f.runs, f.queue, f.cooldown, catalog, RunDefaults{
		BaseURL:  "https://skillsvr.com",
		Driver:   "chromedp",
		Cooldown: time.Minute,
		Drivers:  []string{"chromedp", "http"},
	}, zaptest.NewLogger(t))
	return f
}

func TestRunManager_SubmitQueuesRun(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	run, err := f.manager.Submit(ctx, SubmitRequest{Scenario: "pagination"})
	require.NoError(t, err)

	assert.Equal(t, entity.RunStatusPending, run.Status)
	assert.Equal(t, "https://skillsvr.com", run.BaseURL)
	assert.Equal(t, "chromedp", run.Driver)
	assert.Equal(t, []string{run.ID.String()}, f.queue.items)

	stored, err := f.manager.GetStatus(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, stored.ID)

	active, _ := f.cooldown.Active(ctx, CooldownKey("pagination", "https://skillsvr.com"))
	assert.True(t, active)
	assert.Equal(t, time.Minute, f.cooldown.active[CooldownKey("pagination", "https://skillsvr.com")])
}

func TestRunManager_CooldownAndForce(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	req := SubmitRequest{Scenario: "journey", BaseURL: "https://staging.example.com", Driver: "http"}

	_, err := f.manager.Submit(ctx, req)
	require.NoError(t, err)

	_, err = f.manager.Submit(ctx, req)
	assert.ErrorIs(t, err, ErrRecentlyVerified)

	// Another target is not affected.
	_, err = f.manager.Submit(ctx, SubmitRequest{Scenario: "journey", BaseURL: "https://other.example.com"})
	require.NoError(t, err)

	req.Force = true
	_, err = f.manager.Submit(ctx, req)
	require.NoError(t, err)
	assert.Len(t, f.queue.items, 3)
}

func TestRunManager_SubmitValidation(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.Submit(ctx, SubmitRequest{Scenario: "nope"})
	assert.ErrorIs(t, err, scenario.ErrNotFound)

	for _, u := range []string{"skillsvr.com", "ftp://skillsvr.com", "https://"} {
		_, err = f.manager.Submit(ctx, SubmitRequest{Scenario: "pagination", BaseURL: u})
		assert.ErrorIs(t, err, ErrInvalidBaseURL, u)
	}

	_, err = f.manager.Submit(ctx, SubmitRequest{Scenario: "pagination", Driver: "selenium"})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	assert.Empty(t, f.queue.items)
}

func TestRunManager_SubmitStoreFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.runs.createErr = errors.New("db down")

	_, err := f.manager.Submit(context.Background(), SubmitRequest{Scenario: "pagination"})
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, f.queue.items)

	// The failed submission does not hold the target's window.
	active, _ := f.cooldown.Active(context.Background(), CooldownKey("pagination", "https://skillsvr.com"))
	assert.False(t, active)
}

func TestRunManager_ConcurrentSubmitQueuesOnce(t *testing.T) {
	f := newManagerFixture(t)
	req := SubmitRequest{Scenario: "pagination", BaseURL: "https://race.example.com"}

	const submitters = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		queued   int
		rejected int
	)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Submit(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				queued++
			case errors.Is(err, ErrRecentlyVerified):
				rejected++
			default:
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, queued)
	assert.Equal(t, submitters-1, rejected)
	assert.Len(t, f.queue.items, 1)
}

func TestRunManager_GetStatusUnknown(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.manager.GetStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}

func TestRunManager_ListRecentClampsLimit(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		_, err := f.manager.Submit(ctx, SubmitRequest{Scenario: "pagination", BaseURL: u})
		require.NoError(t, err)
	}

	runs, err := f.manager.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = f.manager.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
