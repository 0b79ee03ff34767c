// Package verifier drives a browser session through a scenario and checks
// the listing invariants on every captured page.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/pkg/metrics"
	"github.com/user/pagecheck-service/pkg/utils"
)

const pollInterval = 100 * time.Millisecond

type Options struct {
	VisibilityTimeout time.Duration
	NavigationTimeout time.Duration
	PopupTimeout      time.Duration
	Dates             DateComparator
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

type Verifier struct {
	opts   Options
	logger *zap.Logger
}

func New(opts Options) *Verifier {
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 3 * time.Second
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 10 * time.Second
	}
	if opts.PopupTimeout <= 0 {
		opts.PopupTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Dates.Policy == "" {
		opts.Dates.Policy = DatePolicyLenient
	}
	if opts.Dates.Logger == nil {
		opts.Dates.Logger = opts.Logger
	}
	if opts.Dates.Metrics == nil {
		opts.Dates.Metrics = opts.Metrics
	}
	return &Verifier{opts: opts, logger: opts.Logger}
}

// Run executes sc against baseURL using sess. It stops at the first failing
// step or invariant. The returned report is never nil; on failure it holds
// everything observed up to the failure and the error is also returned.
// Sessions opened by popups are closed before Run returns; sess is not.
func (v *Verifier) Run(ctx context.Context, sess repository.Session, sc *scenario.Scenario, baseURL string) (*Report, error) {
	started := time.Now()
	report := &Report{Scenario: sc.Name, BaseURL: baseURL, StartedAt: started.UTC()}
	logger := v.logger.With(zap.String("scenario", sc.Name), zap.String("base_url", baseURL))

	var popups []repository.Session
	defer func() {
		for _, p := range popups {
			if err := p.Close(); err != nil {
				logger.Debug("Failed to close popup session", zap.Error(err))
			}
		}
	}()

	fail := func(err error) (*Report, error) {
		report.Err = err
		report.Duration = time.Since(started)
		logger.Info("Verification failed", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
		return report, err
	}

	tr := newTracker(v.opts.Dates)
	current := sess
	lastCaptured := 0

	for i := range sc.Steps {
		step := &sc.Steps[i]
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("step %q: %w", step.Name, err))
		}
		stepLogger := logger.With(zap.String("step", step.Name), zap.String("action", string(step.Action)))

		if step.When != nil {
			err := current.WaitVisible(ctx, *step.When, v.visibilityTimeout(step))
			if errors.Is(err, repository.ErrVisibilityTimeout) {
				stepLogger.Debug("Condition not visible, skipping step", zap.Stringer("when", *step.When))
				report.Skipped = append(report.Skipped, step.Name)
				continue
			}
			if err != nil {
				return fail(fmt.Errorf("step %q: %w", step.Name, err))
			}
		}

		next, skipped, err := v.perform(ctx, current, step, baseURL)
		if err != nil {
			return fail(fmt.Errorf("step %q: %w", step.Name, err))
		}
		if skipped {
			report.Skipped = append(report.Skipped, step.Name)
			continue
		}
		if next != nil {
			popups = append(popups, next)
			current = next
		}

		if re := step.URLPattern(); re != nil {
			if err := v.expect(ctx, step, "location", re, current.URL); err != nil {
				return fail(err)
			}
		}
		if re := step.TitlePattern(); re != nil {
			if err := v.expect(ctx, step, "title", re, current.Title); err != nil {
				return fail(err)
			}
		}

		if step.Capture > 0 {
			snap, err := v.CaptureSnapshot(ctx, current, sc.Listing, step.Capture)
			if err != nil {
				return fail(fmt.Errorf("step %q: %w", step.Name, err))
			}
			results, err := tr.observe(step.Name, snap, step.MinItems)
			report.Snapshots = tr.snapshots()
			report.Checks = append(report.Checks, results...)
			for _, r := range results {
				v.opts.Metrics.IncInvariantCheck(r.Invariant, r.Passed)
			}
			if err != nil {
				return fail(err)
			}
			if step.Action == scenario.ActionClick && step.Target.Kind == repository.ByRole && lastCaptured > 0 {
				report.Transitions = append(report.Transitions, Transition{
					Control: step.Target.Name,
					From:    lastCaptured,
					To:      step.Capture,
				})
			}
			lastCaptured = step.Capture
			stepLogger.Debug("Captured page",
				zap.Int("page", snap.PageIndex),
				zap.Int("items", len(snap.Titles)),
				zap.String("url", snap.URL),
			)
		}
		report.Completed = append(report.Completed, step.Name)
	}

	report.Passed = true
	report.Duration = time.Since(started)
	report.Annotations = buildAnnotations(sc, report)
	logger.Info("Verification passed",
		zap.Int("pages", len(report.Snapshots)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// perform runs the step action. It returns the popup session when one was
// opened, and skipped when a dismiss target was absent.
func (v *Verifier) perform(ctx context.Context, sess repository.Session, step *scenario.Step, baseURL string) (repository.Session, bool, error) {
	timeout := v.visibilityTimeout(step)

	switch step.Action {
	case scenario.ActionGoto:
		target, err := utils.JoinPath(baseURL, step.URL)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, step.URL, err)
		}
		return nil, false, sess.Navigate(ctx, target)

	case scenario.ActionDismiss:
		err := sess.WaitVisible(ctx, step.Target, timeout)
		if errors.Is(err, repository.ErrVisibilityTimeout) {
			return nil, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		return nil, false, sess.Click(ctx, step.Target)

	case scenario.ActionWaitVisible:
		return nil, false, sess.WaitVisible(ctx, step.Target, timeout)

	case scenario.ActionClick:
		if err := sess.WaitVisible(ctx, step.Target, timeout); err != nil {
			return nil, false, err
		}
		return nil, false, sess.Click(ctx, step.Target)

	case scenario.ActionClickPopup:
		if err := sess.WaitVisible(ctx, step.Target, timeout); err != nil {
			return nil, false, err
		}
		popup, err := sess.ClickPopup(ctx, step.Target, v.opts.PopupTimeout)
		return popup, false, err

	case scenario.ActionFill:
		if err := sess.WaitVisible(ctx, step.Target, timeout); err != nil {
			return nil, false, err
		}
		return nil, false, sess.Fill(ctx, step.Target, step.Value)

	case scenario.ActionCapture:
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("unknown action %q", step.Action)
}

// expect polls read until its value matches re or the navigation timeout
// passes.
func (v *Verifier) expect(ctx context.Context, step *scenario.Step, check string, re *regexp.Regexp, read func(context.Context) (string, error)) error {
	deadline := time.Now().Add(v.opts.NavigationTimeout)
	var last string
	for {
		got, err := read(ctx)
		if err == nil {
			if re.MatchString(got) {
				return nil
			}
			last = got
		}
		if time.Now().After(deadline) {
			return &AssertionMismatch{Step: step.Name, Check: check, Expected: "/" + re.String() + "/", Actual: last}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("step %q: %w", step.Name, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (v *Verifier) visibilityTimeout(step *scenario.Step) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	return v.opts.VisibilityTimeout
}
