package playwright_browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/adapter/profile"
	"github.com/user/pagecheck-service/internal/repository"
)

type Options struct {
	Headless bool
	// Install downloads the driver and Chromium before starting.
	Install       bool
	ActionTimeout time.Duration
	Profile       *profile.Manager
	Logger        *zap.Logger
}

// PlaywrightBrowser drives Chromium through the Playwright driver. Each
// session gets its own browser context.
type PlaywrightBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	timeout time.Duration
	profile *profile.Manager
	logger  *zap.Logger
}

func NewPlaywrightBrowser(o Options) (*PlaywrightBrowser, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 30 * time.Second
	}

	if o.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(o.Headless)}
	if proxy := o.Profile.NextProxy(); proxy != "" {
		launch.Proxy = &playwright.Proxy{Server: proxy}
	}
	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	return &PlaywrightBrowser{pw: pw, browser: browser, timeout: o.ActionTimeout, profile: o.Profile, logger: logger}, nil
}

func (b *PlaywrightBrowser) NewSession(ctx context.Context) (repository.Session, error) {
	var options playwright.BrowserNewContextOptions
	if ua := b.profile.UserAgent(); ua != "" {
		options.UserAgent = playwright.String(ua)
	}
	bctx, err := b.browser.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	bctx.SetDefaultTimeout(ms(b.timeout))
	bctx.SetDefaultNavigationTimeout(ms(b.timeout))

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &session{b: b, page: page, bctx: bctx}, nil
}

func (b *PlaywrightBrowser) Close() error {
	return errors.Join(b.browser.Close(), b.pw.Stop())
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

type session struct {
	b    *PlaywrightBrowser
	page playwright.Page
	// bctx is nil for popup sessions, which share their opener's context.
	bctx playwright.BrowserContext
}

// Playwright calls are not context-aware; ctx is checked before each call.

func (s *session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms(s.b.timeout)),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, url, err)
	}
	if resp != nil && resp.Status() >= 400 {
		return fmt.Errorf("%w: %s: status %d", repository.ErrNavigationFailed, url, resp.Status())
	}
	return nil
}

func (s *session) URL(ctx context.Context) (string, error) {
	return s.page.URL(), ctx.Err()
}

func (s *session) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Title()
}

func (s *session) locate(loc repository.Locator) playwright.Locator {
	var l playwright.Locator
	if loc.Within != "" {
		scope := s.page.Locator(loc.Within).First()
		switch loc.Kind {
		case repository.ByRole:
			l = scope.GetByRole(playwright.AriaRole(loc.Value), playwright.LocatorGetByRoleOptions{Name: loc.Name, Exact: playwright.Bool(true)})
		case repository.ByText:
			l = scope.GetByText(loc.Value)
		default:
			l = scope.Locator(loc.Value)
		}
	} else {
		switch loc.Kind {
		case repository.ByRole:
			l = s.page.GetByRole(playwright.AriaRole(loc.Value), playwright.PageGetByRoleOptions{Name: loc.Name, Exact: playwright.Bool(true)})
		case repository.ByText:
			l = s.page.GetByText(loc.Value)
		default:
			l = s.page.Locator(loc.Value)
		}
	}
	if loc.HasText != "" {
		l = l.Filter(playwright.LocatorFilterOptions{HasText: loc.HasText})
	}
	return l.First()
}

func (s *session) WaitVisible(ctx context.Context, loc repository.Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.locate(loc).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(ms(timeout)),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %s after %s", repository.ErrVisibilityTimeout, loc, timeout)
	}
	return err
}

func (s *session) Click(ctx context.Context, loc repository.Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.locate(loc).Click(playwright.LocatorClickOptions{Timeout: playwright.Float(ms(s.b.timeout))})
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %s", repository.ErrElementNotFound, loc)
	}
	return err
}

func (s *session) ClickPopup(ctx context.Context, loc repository.Locator, timeout time.Duration) (repository.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	popup, err := s.page.ExpectPopup(func() error {
		return s.locate(loc).Click()
	}, playwright.PageExpectPopupOptions{Timeout: playwright.Float(ms(timeout))})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", repository.ErrPopupTimeout, loc, err)
	}
	if err := popup.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(ms(timeout)),
	}); err != nil {
		s.b.logger.Warn("Popup load state timeout", zap.Error(err))
	}
	return &session{b: s.b, page: popup}, nil
}

func (s *session) Fill(ctx context.Context, loc repository.Locator, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.locate(loc).Fill(value, playwright.LocatorFillOptions{Timeout: playwright.Float(ms(s.b.timeout))})
}

func (s *session) OuterHTML(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := s.page.Locator(selector).First().Evaluate("el => el.outerHTML", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", repository.ErrElementNotFound, selector, err)
	}
	html, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("outerHTML of %s: unexpected %T", selector, v)
	}
	return html, nil
}

func (s *session) Close() error {
	err := s.page.Close()
	if s.bctx != nil {
		err = errors.Join(err, s.bctx.Close())
	}
	return err
}
