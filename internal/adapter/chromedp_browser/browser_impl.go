package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/adapter/domscript"
	"github.com/user/pagecheck-service/internal/adapter/profile"
	"github.com/user/pagecheck-service/internal/repository"
)

type Options struct {
	Headless bool
	// ActionTimeout bounds single actions such as navigation and clicks.
	ActionTimeout time.Duration
	Profile       *profile.Manager
	Logger        *zap.Logger
}

// ChromedpBrowser drives one Chrome process over CDP. Each session is a tab
// of that process.
type ChromedpBrowser struct {
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	timeout       time.Duration
	logger        *zap.Logger
	marks         atomic.Uint64
}

// NewChromedpBrowser launches Chrome and waits until it accepts commands.
func NewChromedpBrowser(ctx context.Context, o Options) (*ChromedpBrowser, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if ua := o.Profile.UserAgent(); ua != "" {
		opts = append(opts, chromedp.UserAgent(ua))
	}
	if proxy := o.Profile.NextProxy(); proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	sugar := logger.Sugar()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	startCtx, cancelStart := context.WithTimeout(browserCtx, o.ActionTimeout)
	defer cancelStart()
	stop := context.AfterFunc(ctx, cancelStart)
	defer stop()
	if err := chromedp.Run(startCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromedpBrowser{
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		timeout:       o.ActionTimeout,
		logger:        logger,
	}, nil
}

func (b *ChromedpBrowser) NewSession(ctx context.Context) (repository.Session, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	s := &session{b: b, ctx: tabCtx, cancel: cancel}
	if err := s.run(ctx, b.timeout); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return s, nil
}

func (b *ChromedpBrowser) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}

func (b *ChromedpBrowser) nextMark() string {
	return strconv.FormatUint(b.marks.Add(1), 10)
}

type session struct {
	b      *ChromedpBrowser
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by timeout and by the caller's
// ctx.
func (s *session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.b.timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, url, err)
	}
	return nil
}

func (s *session) URL(ctx context.Context) (string, error) {
	var u string
	err := s.run(ctx, s.b.timeout, chromedp.Location(&u))
	return u, err
}

func (s *session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, s.b.timeout, chromedp.Title(&title))
	return title, err
}

// resolve polls the in-page resolver until loc is visible and returns a
// selector addressing the element found.
func (s *session) resolve(ctx context.Context, loc repository.Locator, timeout time.Duration) (string, error) {
	mark := s.b.nextMark()
	var found bool
	err := s.run(ctx, timeout+time.Second,
		chromedp.PollFunction(domscript.Resolve, &found,
			chromedp.WithPollingArgs(domscript.Args(loc, mark)),
			chromedp.WithPollingInterval(100*time.Millisecond),
			chromedp.WithPollingTimeout(timeout),
		),
	)
	switch {
	case errors.Is(err, chromedp.ErrPollingTimeout), errors.Is(err, context.DeadlineExceeded):
		return "", fmt.Errorf("%w: %s after %s", repository.ErrVisibilityTimeout, loc, timeout)
	case err != nil:
		return "", err
	}
	return domscript.MarkSelector(mark), nil
}

func (s *session) WaitVisible(ctx context.Context, loc repository.Locator, timeout time.Duration) error {
	_, err := s.resolve(ctx, loc, timeout)
	return err
}

func (s *session) Click(ctx context.Context, loc repository.Locator) error {
	sel, err := s.resolve(ctx, loc, s.b.timeout)
	if err != nil {
		return err
	}
	return s.run(ctx, s.b.timeout, chromedp.Click(sel, chromedp.ByQuery))
}

func (s *session) ClickPopup(ctx context.Context, loc repository.Locator, timeout time.Duration) (repository.Session, error) {
	sel, err := s.resolve(ctx, loc, s.b.timeout)
	if err != nil {
		return nil, err
	}

	opener := chromedp.FromContext(s.ctx).Target.TargetID
	opened := chromedp.WaitNewTarget(s.ctx, func(info *target.Info) bool {
		return info.OpenerID == opener
	})
	if err := s.run(ctx, s.b.timeout, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return nil, err
	}

	select {
	case id := <-opened:
		popCtx, cancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
		popup := &session{b: s.b, ctx: popCtx, cancel: cancel}
		if err := popup.run(ctx, timeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
			cancel()
			return nil, fmt.Errorf("%w: %w", repository.ErrPopupTimeout, err)
		}
		return popup, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: %s after %s", repository.ErrPopupTimeout, loc, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *session) Fill(ctx context.Context, loc repository.Locator, value string) error {
	sel, err := s.resolve(ctx, loc, s.b.timeout)
	if err != nil {
		return err
	}
	actions := []chromedp.Action{chromedp.SetValue(sel, "", chromedp.ByQuery)}
	if value != "" {
		actions = append(actions, chromedp.SendKeys(sel, value, chromedp.ByQuery))
	}
	return s.run(ctx, s.b.timeout, actions...)
}

func (s *session) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := s.run(ctx, s.b.timeout, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: %s: %w", repository.ErrElementNotFound, selector, err)
	}
	return html, nil
}

func (s *session) Close() error {
	s.cancel()
	return nil
}
