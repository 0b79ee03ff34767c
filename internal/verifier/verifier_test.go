package verifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/user/pagecheck-service/internal/adapter/http_browser"
	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/internal/testutil/fakeblog"
	"github.com/user/pagecheck-service/pkg/metrics"
)

func builtin(t *testing.T, name string) *scenario.Scenario {
	t.Helper()
	c, err := scenario.NewCatalog("")
	require.NoError(t, err)
	sc, err := c.Get(name)
	require.NoError(t, err)
	return sc
}

func runAgainst(t *testing.T, opts fakeblog.Options, name string, vopts Options) (*Report, error) {
	t.Helper()
	srv := fakeblog.NewServer(t, opts)

	browser := http_browser.NewHTTPBrowser(http_browser.Options{Client: srv.Client()})
	sess, err := browser.NewSession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	if vopts.Logger == nil {
		vopts.Logger = zaptest.NewLogger(t)
	}
	vopts.NavigationTimeout = 300 * time.Millisecond
	return New(vopts).Run(context.Background(), sess, builtin(t, name), srv.URL)
}

func TestRun_PaginationPasses(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	report, err := runAgainst(t, fakeblog.Options{}, "pagination", Options{Metrics: m})
	require.NoError(t, err)

	assert.True(t, report.Passed)
	require.Len(t, report.Snapshots, 6)

	var pages []int
	for _, s := range report.Snapshots {
		pages = append(pages, s.PageIndex)
		assert.Len(t, s.Titles, 5)
		assert.Len(t, s.Dates, 5)
	}
	assert.Equal(t, []int{1, 2, 3, 11, 10, 11}, pages)
	assert.Equal(t, "Post 001: VR training insights", report.Snapshots[0].Titles[0])
	assert.Equal(t, "Oct 30, 2025", report.Snapshots[0].Dates[0])
	assert.Contains(t, report.Snapshots[1].URL, "/blog/page/2")

	require.Len(t, report.Annotations, 2)
	summary := report.Annotations[1]
	assert.Equal(t, "Test Summary", summary.Type)
	assert.Contains(t, summary.Description, `- Page 11: "Post 051: VR training insights"`)
	assert.Contains(t, summary.Description, "- Page 10 >= Page 11")
	assert.Contains(t, summary.Description, "- ❯: Page 1->2, 10->11")
	assert.Contains(t, summary.Description, "- Page 11 content consistent on revisit")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvariantChecks.WithLabelValues(CheckRevisit, "pass")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.InvariantChecks.WithLabelValues(CheckDistinct, "pass")))
}

func TestRun_PaginationFailures(t *testing.T) {
	tests := []struct {
		name  string
		opts  fakeblog.Options
		vopts Options
		check string
	}{
		{"stale pages", fakeblog.Options{Stale: true}, Options{}, CheckDistinct},
		{"empty page", fakeblog.Options{EmptyPage: 3}, Options{}, CheckNonEmpty},
		{"newer dates on page 2", fakeblog.Options{NewerPage: 2}, Options{}, CheckOrder},
		{"content shifts on revisit", fakeblog.Options{ShiftOnRevisit: true}, Options{}, CheckRevisit},
		{"strict unparseable dates", fakeblog.Options{GarbledDates: true}, Options{Dates: DateComparator{Policy: DatePolicyStrict}}, CheckOrder},
		{"too few items", fakeblog.Options{PerPage: 3}, Options{}, CheckMinItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := runAgainst(t, tt.opts, "pagination", tt.vopts)
			require.ErrorIs(t, err, ErrAssertionMismatch)
			assert.Equal(t, KindAssertionMismatch, ErrorKind(err))

			var m *AssertionMismatch
			require.ErrorAs(t, err, &m)
			assert.Equal(t, tt.check, m.Check)

			assert.False(t, report.Passed)
			assert.Empty(t, report.Annotations)
			assert.Equal(t, err, report.Err)
			last := report.Checks[len(report.Checks)-1]
			assert.False(t, last.Passed)
		})
	}
}

func TestRun_LenientUnparseableDatesPass(t *testing.T) {
	report, err := runAgainst(t, fakeblog.Options{GarbledDates: true}, "pagination", Options{})
	require.NoError(t, err)
	assert.True(t, report.Passed)
}

func TestRun_MissingControlIsVisibilityTimeout(t *testing.T) {
	_, err := runAgainst(t, fakeblog.Options{Pages: 5}, "pagination", Options{})
	require.Error(t, err)

	// Page 3 has no link to page 11.
	assert.Equal(t, KindVisibilityTimeout, ErrorKind(err))
	assert.Contains(t, err.Error(), `"jump to page 11"`)
}

func TestRun_DismissSkipsAbsentBanner(t *testing.T) {
	report, err := runAgainst(t, fakeblog.Options{NoBanner: true}, "pagination", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"accept cookies"}, report.Skipped)
}

func TestRun_JourneyPassesThroughPopup(t *testing.T) {
	report, err := runAgainst(t, fakeblog.Options{}, "journey", Options{})
	require.NoError(t, err)

	require.Len(t, report.Snapshots, 1)
	assert.Contains(t, report.Snapshots[0].URL, "/blog")
	require.Len(t, report.Annotations, 1)
	assert.Contains(t, report.Annotations[0].Description, "Found 5 items on page 1:\n1. Post 001")
}

func TestRun_SigninWithoutScriptsNeverShowsErrors(t *testing.T) {
	report, err := runAgainst(t, fakeblog.Options{}, "signin-negative", Options{})
	require.ErrorIs(t, err, repository.ErrVisibilityTimeout)
	assert.Contains(t, err.Error(), `"email required"`)

	// The region confirmation is conditional and absent.
	assert.Contains(t, report.Skipped, "confirm region")
}

func TestRun_FillUnsupportedByHTTPDriver(t *testing.T) {
	sc := &scenario.Scenario{
		Name: "fill",
		Steps: []scenario.Step{
			{Name: "login", Action: scenario.ActionGoto, URL: "/login"},
			{Name: "email", Action: scenario.ActionFill, Target: repository.CSS(`input[placeholder="Email Address"]`), Value: "a@b.co"},
		},
	}
	require.NoError(t, sc.Compile())

	srv := fakeblog.NewServer(t, fakeblog.Options{})
	sess, err := http_browser.NewHTTPBrowser(http_browser.Options{Client: srv.Client()}).NewSession(context.Background())
	require.NoError(t, err)

	_, err = New(Options{}).Run(context.Background(), sess, sc, srv.URL)
	require.ErrorIs(t, err, repository.ErrUnsupported)
	assert.Equal(t, KindUnsupported, ErrorKind(err))
}

func TestRun_WrongTitleIsMismatch(t *testing.T) {
	sc := &scenario.Scenario{
		Name: "title",
		Steps: []scenario.Step{
			{Name: "home", Action: scenario.ActionGoto, URL: "/", ExpectTitle: "^Nothing like this$"},
		},
	}
	require.NoError(t, sc.Compile())

	srv := fakeblog.NewServer(t, fakeblog.Options{})
	sess, err := http_browser.NewHTTPBrowser(http_browser.Options{Client: srv.Client()}).NewSession(context.Background())
	require.NoError(t, err)

	v := New(Options{NavigationTimeout: 250 * time.Millisecond})
	_, err = v.Run(context.Background(), sess, sc, srv.URL)

	var m *AssertionMismatch
	require.ErrorAs(t, err, &m)
	assert.Equal(t, "title", m.Check)
	assert.Equal(t, "SkillsVR Demo | Immersive Training", m.Actual)
}

func TestRun_StepsAnnotationWithoutCaptures(t *testing.T) {
	sc := &scenario.Scenario{
		Name: "home",
		Steps: []scenario.Step{
			{Name: "home", Action: scenario.ActionGoto, URL: "/", ExpectTitle: "SkillsVR"},
			{Name: "nav", Action: scenario.ActionWaitVisible, Target: repository.Role("link", "VR Training")},
		},
	}
	require.NoError(t, sc.Compile())

	srv := fakeblog.NewServer(t, fakeblog.Options{})
	sess, err := http_browser.NewHTTPBrowser(http_browser.Options{Client: srv.Client()}).NewSession(context.Background())
	require.NoError(t, err)

	report, err := New(Options{}).Run(context.Background(), sess, sc, srv.URL)
	require.NoError(t, err)
	require.Len(t, report.Annotations, 1)
	assert.Equal(t, "Verified 2 steps:\n- home\n- nav", report.Annotations[0].Description)
}

// scriptedSession succeeds at every action except ClickPopup when popupErr
// is set.
type scriptedSession struct {
	repository.Session
	popupErr error
	popup    *scriptedSession
	closed   int
}

func (s *scriptedSession) Navigate(context.Context, string) error { return nil }

func (s *scriptedSession) URL(context.Context) (string, error) { return "https://x.test/", nil }

func (s *scriptedSession) Title(context.Context) (string, error) { return "x", nil }

func (s *scriptedSession) Click(context.Context, repository.Locator) error { return nil }

func (s *scriptedSession) WaitVisible(context.Context, repository.Locator, time.Duration) error {
	return nil
}

func (s *scriptedSession) ClickPopup(context.Context, repository.Locator, time.Duration) (repository.Session, error) {
	if s.popupErr != nil {
		return nil, s.popupErr
	}
	s.popup = &scriptedSession{}
	return s.popup, nil
}

func (s *scriptedSession) Close() error {
	s.closed++
	return nil
}

func TestRun_ClosesPopupSessions(t *testing.T) {
	sc := &scenario.Scenario{
		Name: "popup",
		Steps: []scenario.Step{
			{Name: "open", Action: scenario.ActionClickPopup, Target: repository.Role("link", "Sign In")},
			{Name: "menu", Action: scenario.ActionClick, Target: repository.Text("Resources")},
		},
	}
	require.NoError(t, sc.Compile())

	sess := &scriptedSession{}
	_, err := New(Options{}).Run(context.Background(), sess, sc, "https://x.test")
	require.NoError(t, err)

	require.NotNil(t, sess.popup)
	assert.Equal(t, 1, sess.popup.closed)
	assert.Zero(t, sess.closed)
}

func TestRun_PopupTimeoutKind(t *testing.T) {
	sc := &scenario.Scenario{
		Name:  "popup",
		Steps: []scenario.Step{{Name: "open", Action: scenario.ActionClickPopup, Target: repository.Role("link", "Sign In")}},
	}
	require.NoError(t, sc.Compile())

	sess := &scriptedSession{popupErr: repository.ErrPopupTimeout}
	_, err := New(Options{Logger: zap.NewNop()}).Run(context.Background(), sess, sc, "https://x.test")
	assert.Equal(t, KindPopupTimeout, ErrorKind(err))
}

func TestRun_CancelledContext(t *testing.T) {
	sc := builtin(t, "pagination")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).Run(ctx, &scriptedSession{}, sc, "https://x.test")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, KindTimeout, ErrorKind(err))
}
