package rod_browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/adapter/domscript"
	"github.com/user/pagecheck-service/internal/adapter/profile"
	"github.com/user/pagecheck-service/internal/repository"
)

type Options struct {
	Headless bool
	// Stealth opens pages with the go-rod/stealth evasions applied.
	Stealth bool
	// RemoteURL connects to a running browser instead of launching one.
	RemoteURL     string
	ActionTimeout time.Duration
	Profile       *profile.Manager
	Logger        *zap.Logger
}

type RodBrowser struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	stealth bool
	timeout time.Duration
	profile *profile.Manager
	logger  *zap.Logger
	marks   atomic.Uint64
}

func NewRodBrowser(ctx context.Context, o Options) (*RodBrowser, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 30 * time.Second
	}

	b := &RodBrowser{stealth: o.Stealth, timeout: o.ActionTimeout, profile: o.Profile, logger: logger}

	wsURL := o.RemoteURL
	if wsURL == "" {
		l := launcher.New().Context(ctx).Headless(o.Headless).NoSandbox(true)
		l = l.Set("disable-blink-features", "AutomationControlled")
		if proxy := o.Profile.NextProxy(); proxy != "" {
			l = l.Proxy(proxy)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		wsURL = u
		b.lnch = l
		logger.Info("Launched local chrome", zap.String("url", wsURL), zap.Bool("stealth", o.Stealth))
	}

	b.browser = rod.New().ControlURL(wsURL)
	if err := b.browser.Connect(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return b, nil
}

func (b *RodBrowser) NewSession(ctx context.Context) (repository.Session, error) {
	var page *rod.Page
	var err error
	if b.stealth {
		page, err = stealth.Page(b.browser)
	} else {
		page, err = b.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}

	if ua := b.profile.UserAgent(); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			b.logger.Warn("Failed to set user agent", zap.Error(err))
		}
	}
	return &session{b: b, page: page}, nil
}

func (b *RodBrowser) Close() error {
	return b.cleanup()
}

func (b *RodBrowser) cleanup() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Kill()
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return err
}

type session struct {
	b    *RodBrowser
	page *rod.Page
}

// p returns the page bound to ctx and timeout.
func (s *session) p(ctx context.Context, timeout time.Duration) *rod.Page {
	return s.page.Context(ctx).Timeout(timeout)
}

func (s *session) Navigate(ctx context.Context, url string) error {
	p := s.p(ctx, s.b.timeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.b.logger.Warn("Wait load timeout", zap.String("url", url), zap.Error(err))
	}
	return nil
}

func (s *session) URL(ctx context.Context) (string, error) {
	info, err := s.p(ctx, s.b.timeout).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *session) Title(ctx context.Context) (string, error) {
	info, err := s.p(ctx, s.b.timeout).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (s *session) resolve(ctx context.Context, loc repository.Locator, timeout time.Duration) (string, error) {
	mark := strconv.FormatUint(s.b.marks.Add(1), 10)
	err := s.p(ctx, timeout).Wait(rod.Eval(domscript.Resolve, domscript.Args(loc, mark)))
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
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

func (s *session) element(ctx context.Context, loc repository.Locator) (*rod.Element, error) {
	sel, err := s.resolve(ctx, loc, s.b.timeout)
	if err != nil {
		return nil, err
	}
	return s.p(ctx, s.b.timeout).Element(sel)
}

func (s *session) Click(ctx context.Context, loc repository.Locator) error {
	el, err := s.element(ctx, loc)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *session) ClickPopup(ctx context.Context, loc repository.Locator, timeout time.Duration) (repository.Session, error) {
	el, err := s.element(ctx, loc)
	if err != nil {
		return nil, err
	}

	wait := s.p(ctx, timeout).WaitOpen()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, err
	}
	popup, err := wait()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", repository.ErrPopupTimeout, loc, err)
	}
	if err := popup.Context(ctx).Timeout(timeout).WaitLoad(); err != nil {
		s.b.logger.Warn("Popup wait load timeout", zap.Error(err))
	}
	return &session{b: s.b, page: popup}, nil
}

func (s *session) Fill(ctx context.Context, loc repository.Locator, value string) error {
	el, err := s.element(ctx, loc)
	if err != nil {
		return err
	}
	if _, err := el.Eval(`function() {
  this.value = '';
  this.dispatchEvent(new Event('input', {bubbles: true}));
}`); err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	return el.Input(value)
}

func (s *session) OuterHTML(ctx context.Context, selector string) (string, error) {
	el, err := s.p(ctx, s.b.timeout).Element(selector)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", repository.ErrElementNotFound, selector, err)
	}
	return el.HTML()
}

func (s *session) Close() error {
	return s.page.Close()
}
