package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	idleDelay  = 200 * time.Millisecond
	errorDelay = time.Second
)

// WorkerPool runs size workers that drain the run queue until ctx ends.
type WorkerPool struct {
	worker  RunWorker
	size    int
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewWorkerPool creates a pool. runsPerMinute caps how often the workers
// together take from the queue; zero means no cap.
func NewWorkerPool(worker RunWorker, size int, runsPerMinute float64, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if runsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(runsPerMinute/60), 1)
	}
	return &WorkerPool{worker: worker, size: size, limiter: limiter, logger: logger}
}

// Run blocks until ctx is cancelled and every worker has returned.
func (p *WorkerPool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		id := i + 1
		g.Go(func() error {
			p.loop(ctx, id)
			return nil
		})
	}
	p.logger.Info("Worker pool started", zap.Int("workers", p.size))
	err := g.Wait()
	p.logger.Info("Worker pool stopped")
	return err
}

func (p *WorkerPool) loop(ctx context.Context, id int) {
	logger := p.logger.With(zap.Int("worker_id", id))
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		processed, err := p.worker.ProcessNext(ctx)
		if ctx.Err() != nil {
			return
		}

		delay := time.Duration(0)
		switch {
		case err != nil:
			logger.Error("Worker failed to process run", zap.Error(err))
			delay = errorDelay
		case !processed:
			delay = idleDelay
		}
		if delay == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
