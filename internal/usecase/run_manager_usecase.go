package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/entity"
	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/pkg/utils"
)

var (
	ErrRecentlyVerified = errors.New("target has been verified recently and force is false")
	ErrInvalidBaseURL   = errors.New("base url must be an absolute http(s) url")
	ErrUnknownDriver    = errors.New("unknown browser driver")
)

const defaultCooldown = 10 * time.Minute

// ScenarioCatalog looks scenarios up by name.
type ScenarioCatalog interface {
	Get(name string) (*scenario.Scenario, error)
}

// SubmitRequest asks for one verification run. Empty fields fall back to
// the scenario and service defaults.
type SubmitRequest struct {
	Scenario string
	BaseURL  string
	Driver   string
	Force    bool
}

// RunManager defines the interface for submitting and inspecting runs.
type RunManager interface {
	Submit(ctx context.Context, req SubmitRequest) (*entity.VerificationRun, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*entity.VerificationRun, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.VerificationRun, error)
}

type RunDefaults struct {
	BaseURL  string
	Driver   string
	Cooldown time.Duration
	// Drivers lists the accepted driver names; empty accepts any.
	Drivers []string
}

type runManagerUseCase struct {
	runRepo      repository.RunRepository
	queueRepo    repository.QueueRepository
	cooldownRepo repository.CooldownRepository
	catalog      ScenarioCatalog
	defaults     RunDefaults
	logger       *zap.Logger
}

// NewRunManager creates a new RunManager use case.
func NewRunManager(
	runRepo repository.RunRepository,
	queueRepo repository.QueueRepository,
	cooldownRepo repository.CooldownRepository,
	catalog ScenarioCatalog,
	defaults RunDefaults,
	logger *zap.Logger,
) RunManager {
	if defaults.Cooldown <= 0 {
		defaults.Cooldown = defaultCooldown
	}
	return &runManagerUseCase{
		runRepo:      runRepo,
		queueRepo:    queueRepo,
		cooldownRepo: cooldownRepo,
		catalog:      catalog,
		defaults:     defaults,
		logger:       logger,
	}
}

// CooldownKey identifies a verification target for deduplication.
func CooldownKey(scenarioName, baseURL string) string {
	return utils.HashKey(scenarioName, baseURL)
}

func (uc *runManagerUseCase) Submit(ctx context.Context, req SubmitRequest) (*entity.VerificationRun, error) {
	sc, err := uc.catalog.Get(req.Scenario)
	if err != nil {
		return nil, err
	}

	baseURL := sc.BaseURLFor(req.BaseURL, uc.defaults.BaseURL)
	if u, err := url.ParseRequestURI(baseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	driver := req.Driver
	if driver == "" {
		driver = uc.defaults.Driver
	}
	if !uc.driverAllowed(driver) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	// The window is claimed before the run exists so that concurrent
	// submissions for one target cannot both pass the check.
	key := CooldownKey(sc.Name, baseURL)
	if req.Force {
		if err := uc.cooldownRepo.Mark(ctx, key, uc.defaults.Cooldown); err != nil {
			uc.logger.Warn("Failed to restart cooldown for forced run", zap.String("scenario", sc.Name), zap.Error(err))
			// Continue anyway, as this is not a critical failure
		}
	} else {
		acquired, err := uc.cooldownRepo.MarkIfAbsent(ctx, key, uc.defaults.Cooldown)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrRecentlyVerified
		}
	}

	run := &entity.VerificationRun{
		ID:        uuid.New(),
		Scenario:  sc.Name,
		BaseURL:   baseURL,
		Driver:    driver,
		Status:    entity.RunStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.runRepo.Create(ctx, run); err != nil {
		uc.releaseCooldown(ctx, key)
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if err := uc.queueRepo.Push(ctx, run.ID.String()); err != nil {
		uc.releaseCooldown(ctx, key)
		return nil, fmt.Errorf("failed to queue run: %w", err)
	}

	uc.logger.Info("Run queued",
		zap.String("run_id", run.ID.String()),
		zap.String("scenario", run.Scenario),
		zap.String("base_url", run.BaseURL),
		zap.String("driver", run.Driver),
	)
	return run, nil
}

// releaseCooldown frees the window of a submission that never got queued.
func (uc *runManagerUseCase) releaseCooldown(ctx context.Context, key string) {
	if err := uc.cooldownRepo.Clear(context.WithoutCancel(ctx), key); err != nil {
		uc.logger.Error("Failed to release cooldown", zap.String("key", key), zap.Error(err))
	}
}

func (uc *runManagerUseCase) driverAllowed(driver string) bool {
	if len(uc.defaults.Drivers) == 0 {
		return driver != ""
	}
	for _, d := range uc.defaults.Drivers {
		if d == driver {
			return true
		}
	}
	return false
}

func (uc *runManagerUseCase) GetStatus(ctx context.Context, id uuid.UUID) (*entity.VerificationRun, error) {
	return uc.runRepo.FindByID(ctx, id)
}

func (uc *runManagerUseCase) ListRecent(ctx context.Context, limit int) ([]*entity.VerificationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return uc.runRepo.ListRecent(ctx, limit)
}
