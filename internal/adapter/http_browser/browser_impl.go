package http_browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/adapter/domscript"
	"github.com/user/pagecheck-service/internal/adapter/profile"
	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/pkg/utils"
)

// HTTPBrowser is a JavaScript-free driver. Pages are fetched with net/http
// and queried with goquery; clicks follow the href of the clicked link.
// The DOM of a fetched page never changes, so visibility waits answer
// immediately.
type HTTPBrowser struct {
	client  *http.Client
	profile *profile.Manager
	logger  *zap.Logger
}

type Options struct {
	Client  *http.Client
	Profile *profile.Manager
	Logger  *zap.Logger
	Timeout time.Duration
}

func NewHTTPBrowser(opts Options) *HTTPBrowser {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
		if proxy := opts.Profile.NextProxy(); proxy != "" {
			if u, err := url.Parse(proxy); err == nil {
				client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
			}
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPBrowser{client: client, profile: opts.Profile, logger: logger}
}

func (b *HTTPBrowser) NewSession(ctx context.Context) (repository.Session, error) {
	return &session{b: b, userAgent: b.profile.UserAgent()}, nil
}

func (b *HTTPBrowser) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

type session struct {
	b         *HTTPBrowser
	userAgent string
	url       *url.URL
	doc       *goquery.Document
}

func (s *session) Navigate(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, target, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s: status %d", repository.ErrNavigationFailed, target, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, target, err)
	}
	s.url = resp.Request.URL
	s.doc = doc
	s.b.logger.Debug("Fetched page", zap.String("url", s.url.String()), zap.Int("status", resp.StatusCode))
	return nil
}

func (s *session) URL(ctx context.Context) (string, error) {
	if s.url == nil {
		return "about:blank", nil
	}
	return s.url.String(), nil
}

func (s *session) Title(ctx context.Context) (string, error) {
	if s.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(s.doc.Find("title").First().Text()), nil
}

func (s *session) WaitVisible(ctx context.Context, loc repository.Locator, timeout time.Duration) error {
	if s.find(loc).Length() == 0 {
		return fmt.Errorf("%w: %s", repository.ErrVisibilityTimeout, loc)
	}
	return nil
}

func (s *session) Click(ctx context.Context, loc repository.Locator) error {
	el := s.find(loc)
	if el.Length() == 0 {
		return fmt.Errorf("%w: %s", repository.ErrElementNotFound, loc)
	}
	href, ok := linkTarget(el)
	if !ok {
		// Nothing to follow without a script engine.
		s.b.logger.Debug("Click without navigation", zap.Stringer("locator", loc))
		return nil
	}
	target, err := utils.ToAbsoluteURL(s.url, href)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, href, err)
	}
	return s.Navigate(ctx, target)
}

func (s *session) ClickPopup(ctx context.Context, loc repository.Locator, timeout time.Duration) (repository.Session, error) {
	el := s.find(loc)
	if el.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrElementNotFound, loc)
	}
	href, ok := linkTarget(el)
	if !ok {
		return nil, fmt.Errorf("%w: %s opens no page", repository.ErrPopupTimeout, loc)
	}
	target, err := utils.ToAbsoluteURL(s.url, href)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, href, err)
	}

	popupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	popup := &session{b: s.b, userAgent: s.userAgent}
	if err := popup.Navigate(popupCtx, target); err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrPopupTimeout, err)
	}
	return popup, nil
}

func (s *session) Fill(ctx context.Context, loc repository.Locator, value string) error {
	return fmt.Errorf("%w: fill %s", repository.ErrUnsupported, loc)
}

func (s *session) OuterHTML(ctx context.Context, selector string) (string, error) {
	if s.doc == nil {
		return "", fmt.Errorf("%w: %s", repository.ErrElementNotFound, selector)
	}
	el := s.doc.Find(selector).First()
	if el.Length() == 0 {
		return "", fmt.Errorf("%w: %s", repository.ErrElementNotFound, selector)
	}
	return goquery.OuterHtml(el)
}

func (s *session) Close() error {
	s.doc = nil
	return nil
}

// find resolves loc on the current document with the same matching rules
// as the in-page resolver.
func (s *session) find(loc repository.Locator) *goquery.Selection {
	if s.doc == nil {
		return &goquery.Selection{}
	}
	scope := s.doc.Selection
	if loc.Within != "" {
		scope = s.doc.Find(loc.Within).First()
	}

	var candidates *goquery.Selection
	switch loc.Kind {
	case repository.ByRole:
		name := domscript.NormalizeSpace(loc.Name)
		candidates = scope.Find(domscript.RoleSelector(loc.Value)).FilterFunction(func(_ int, el *goquery.Selection) bool {
			return accessibleName(el) == name
		})
	case repository.ByText:
		needle := strings.ToLower(domscript.NormalizeSpace(loc.Value))
		candidates = scope.Find("*").FilterFunction(func(_ int, el *goquery.Selection) bool {
			if goquery.NodeName(el) == "script" || goquery.NodeName(el) == "style" || !containsText(el, needle) {
				return false
			}
			inner := false
			el.Children().EachWithBreak(func(_ int, c *goquery.Selection) bool {
				inner = containsText(c, needle)
				return !inner
			})
			return !inner
		})
	default:
		candidates = scope.Find(loc.Value)
	}

	if loc.HasText != "" {
		needle := strings.ToLower(domscript.NormalizeSpace(loc.HasText))
		candidates = candidates.FilterFunction(func(_ int, el *goquery.Selection) bool {
			return containsText(el, needle)
		})
	}
	return candidates.FilterFunction(func(_ int, el *goquery.Selection) bool {
		return !hidden(el)
	}).First()
}

func accessibleName(el *goquery.Selection) string {
	if label, ok := el.Attr("aria-label"); ok && label != "" {
		return domscript.NormalizeSpace(label)
	}
	if text := domscript.NormalizeSpace(el.Text()); text != "" {
		return text
	}
	return domscript.NormalizeSpace(el.AttrOr("value", ""))
}

func containsText(el *goquery.Selection, needle string) bool {
	return strings.Contains(strings.ToLower(domscript.NormalizeSpace(el.Text())), needle)
}

// hidden reports markup-level invisibility of el or an ancestor.
func hidden(el *goquery.Selection) bool {
	for cur := el; cur.Length() > 0; cur = cur.Parent() {
		if _, ok := cur.Attr("hidden"); ok {
			return true
		}
		style := strings.ReplaceAll(strings.ToLower(cur.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
	}
	return false
}

// linkTarget finds the href a click on el follows: el itself, its closest
// link ancestor, or its first link descendant.
func linkTarget(el *goquery.Selection) (string, bool) {
	link := el.Closest("a[href]")
	if link.Length() == 0 {
		link = el.Find("a[href]").First()
	}
	href, ok := link.Attr("href")
	if !ok {
		return "", false
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	return href, true
}
