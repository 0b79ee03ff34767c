package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/entity"
	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/internal/verifier"
	"github.com/user/pagecheck-service/pkg/metrics"
)

// ErrBrowserUnavailable marks runs that failed before any step ran.
var ErrBrowserUnavailable = errors.New("browser unavailable")

const (
	defaultRunTimeout = 2 * time.Minute
	// persistTimeout bounds the writes that record a run's outcome.
	persistTimeout = 10 * time.Second
)

// BrowserProvider opens browser drivers by name.
type BrowserProvider interface {
	Get(ctx context.Context, driver string) (repository.Browser, error)
}

// ScenarioRunner executes one scenario on a session.
type ScenarioRunner interface {
	Run(ctx context.Context, sess repository.Session, sc *scenario.Scenario, baseURL string) (*verifier.Report, error)
}

// RunWorker defines the interface for the core verification process.
type RunWorker interface {
	// ProcessNext runs the next queued verification. It reports false when
	// the queue stayed empty.
	ProcessNext(ctx context.Context) (bool, error)
}

type WorkerOptions struct {
	PollTimeout time.Duration
	RunTimeout  time.Duration
}

type runWorkerUseCase struct {
	queueRepo repository.QueueRepository
	runRepo   repository.RunRepository
	browsers  BrowserProvider
	catalog   ScenarioCatalog
	runner    ScenarioRunner
	opts      WorkerOptions
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewRunWorker creates a new instance of the run worker use case.
func NewRunWorker(
	queueRepo repository.QueueRepository,
	runRepo repository.RunRepository,
	browsers BrowserProvider,
	catalog ScenarioCatalog,
	runner ScenarioRunner,
	opts WorkerOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) RunWorker {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	return &runWorkerUseCase{
		queueRepo: queueRepo,
		runRepo:   runRepo,
		browsers:  browsers,
		catalog:   catalog,
		runner:    runner,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

func (uc *runWorkerUseCase) ProcessNext(ctx context.Context) (bool, error) {
	rawID, err := uc.queueRepo.Pop(ctx, uc.opts.PollTimeout)
	if errors.Is(err, repository.ErrQueueEmpty) {
		// Queue is empty, which is a normal state.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to pop run from queue: %w", err)
	}
	if size, err := uc.queueRepo.Size(ctx); err == nil {
		uc.metrics.SetQueueSize(size)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		uc.logger.Error("Dropping malformed run id from queue", zap.String("run_id", rawID), zap.Error(err))
		return true, nil
	}
	run, err := uc.runRepo.FindByID(ctx, id)
	if err != nil {
		return true, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	started := time.Now().UTC()
	run.Status = entity.RunStatusRunning
	run.StartedAt = &started
	if err := uc.runRepo.Update(ctx, run); err != nil {
		return true, fmt.Errorf("failed to mark run %s running: %w", id, err)
	}

	logger := uc.logger.With(zap.String("run_id", id.String()), zap.String("scenario", run.Scenario))
	logger.Info("Processing run from queue", zap.String("driver", run.Driver), zap.String("base_url", run.BaseURL))

	report, runErr := uc.execute(ctx, run)

	// The outcome is stored even when ctx was cancelled mid-run, otherwise
	// the run would stay "running" forever.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if report != nil {
		run.Snapshots = report.Snapshots
		if err := uc.runRepo.SaveSnapshots(persistCtx, id, report.Snapshots); err != nil {
			logger.Error("Failed to save snapshots", zap.Error(err))
		}
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if runErr != nil {
		run.Status = entity.RunStatusFailed
		run.ErrorKind = errorKind(runErr)
		run.FailureReason = runErr.Error()
		logger.Warn("Run failed", zap.String("error_kind", run.ErrorKind), zap.Error(runErr))
	} else {
		run.Status = entity.RunStatusPassed
		run.Annotations = report.Annotations
		logger.Info("Run passed", zap.Duration("duration", finished.Sub(started)))
	}
	uc.metrics.ObserveRun(run.Scenario, string(run.Status), run.ErrorKind, finished.Sub(started).Seconds())

	if err := uc.runRepo.Update(persistCtx, run); err != nil {
		return true, fmt.Errorf("failed to store result of run %s: %w", id, err)
	}
	return true, nil
}

func (uc *runWorkerUseCase) execute(ctx context.Context, run *entity.VerificationRun) (*verifier.Report, error) {
	sc, err := uc.catalog.Get(run.Scenario)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, uc.opts.RunTimeout)
	defer cancel()

	browser, err := uc.browsers.Get(runCtx, run.Driver)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowserUnavailable, err)
	}
	sess, err := browser.NewSession(runCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowserUnavailable, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			uc.logger.Debug("Failed to close session", zap.Error(err))
		}
	}()

	return uc.runner.Run(runCtx, sess, sc, run.BaseURL)
}

func errorKind(err error) string {
	if errors.Is(err, ErrBrowserUnavailable) {
		return "browser"
	}
	return verifier.ErrorKind(err)
}
