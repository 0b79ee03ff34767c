// Package browsers opens browser drivers by name and keeps one instance of
// each for reuse across runs.
package browsers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/user/pagecheck-service/internal/adapter/chromedp_browser"
	"github.com/user/pagecheck-service/internal/adapter/http_browser"
	"github.com/user/pagecheck-service/internal/adapter/playwright_browser"
	"github.com/user/pagecheck-service/internal/adapter/profile"
	"github.com/user/pagecheck-service/internal/adapter/rod_browser"
	"github.com/user/pagecheck-service/internal/repository"
)

const (
	DriverChromedp   = "chromedp"
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
	DriverHTTP       = "http"
)

var ErrUnknownDriver = errors.New("unknown browser driver")

type Options struct {
	Headless      bool
	RodStealth    bool
	ActionTimeout time.Duration
	Profile       *profile.Manager
	Logger        *zap.Logger
	// HTTPClient is used by the http driver; nil means a default client.
	HTTPClient *http.Client
}

// Opener starts a driver.
type Opener func(ctx context.Context, opts Options) (repository.Browser, error)

type Registry struct {
	opts    Options
	mu      sync.Mutex
	openers map[string]Opener
	open    map[string]repository.Browser

	launches singleflight.Group
}

// NewRegistry knows the chromedp, rod, playwright and http drivers.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Registry{
		opts:    opts,
		openers: make(map[string]Opener),
		open:    make(map[string]repository.Browser),
	}
	r.Register(DriverChromedp, func(ctx context.Context, o Options) (repository.Browser, error) {
		return chromedp_browser.NewChromedpBrowser(ctx, chromedp_browser.Options{
			Headless:      o.Headless,
			ActionTimeout: o.ActionTimeout,
			Profile:       o.Profile,
			Logger:        o.Logger,
		})
	})
	r.Register(DriverRod, func(ctx context.Context, o Options) (repository.Browser, error) {
		return rod_browser.NewRodBrowser(ctx, rod_browser.Options{
			Headless:      o.Headless,
			Stealth:       o.RodStealth,
			ActionTimeout: o.ActionTimeout,
			Profile:       o.Profile,
			Logger:        o.Logger,
		})
	})
	r.Register(DriverPlaywright, func(ctx context.Context, o Options) (repository.Browser, error) {
		return playwright_browser.NewPlaywrightBrowser(playwright_browser.Options{
			Headless:      o.Headless,
			ActionTimeout: o.ActionTimeout,
			Profile:       o.Profile,
			Logger:        o.Logger,
		})
	})
	r.Register(DriverHTTP, func(ctx context.Context, o Options) (repository.Browser, error) {
		return http_browser.NewHTTPBrowser(http_browser.Options{
			Client:  o.HTTPClient,
			Profile: o.Profile,
			Logger:  o.Logger,
			Timeout: o.ActionTimeout,
		}), nil
	})
	return r
}

// Register adds or replaces a driver.
func (r *Registry) Register(name string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[name] = open
}

// Names lists the known drivers.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.openers))
	for name := range r.openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is a registered driver.
func (r *Registry) Known(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.openers[name]
	return ok
}

// Get returns the open instance of the named driver, starting it on first
// use. Concurrent callers share one launch, and a launch never holds up
// lookups of drivers that are already open. The launch outlives ctx; a
// caller whose ctx ends stops waiting for it.
func (r *Registry) Get(ctx context.Context, name string) (repository.Browser, error) {
	r.mu.Lock()
	b, ok := r.open[name]
	open, known := r.openers[name]
	r.mu.Unlock()
	if ok {
		return b, nil
	}
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}

	ch := r.launches.DoChan(name, func() (any, error) {
		return r.start(context.WithoutCancel(ctx), name, open)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(repository.Browser), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) start(ctx context.Context, name string, open Opener) (repository.Browser, error) {
	r.mu.Lock()
	b, ok := r.open[name]
	r.mu.Unlock()
	if ok {
		return b, nil
	}

	b, err := open(ctx, r.opts)
	if err != nil {
		return nil, fmt.Errorf("open %s driver: %w", name, err)
	}
	r.opts.Logger.Info("Browser driver started", zap.String("driver", name))

	r.mu.Lock()
	r.open[name] = b
	r.mu.Unlock()
	return b, nil
}

// Close shuts down every started driver.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, b := range r.open {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s driver: %w", name, err))
		}
		delete(r.open, name)
	}
	return errors.Join(errs...)
}
