// Package browsertest checks a repository.Browser implementation against the
// fake site. Driver packages call Run from their e2e tests.
package browsertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/internal/testutil/fakeblog"
	"github.com/user/pagecheck-service/internal/verifier"
)

// Run exercises b with the builtin scenarios and a few direct session calls.
// Open b with a short action timeout; the missing element case waits it out.
func Run(t *testing.T, b repository.Browser) {
	t.Helper()
	catalog, err := scenario.NewCatalog("")
	require.NoError(t, err)

	for _, name := range []string{"pagination", "journey", "signin-negative"} {
		t.Run(name, func(t *testing.T) {
			srv := fakeblog.NewServer(t, fakeblog.Options{})
			sc, err := catalog.Get(name)
			require.NoError(t, err)

			report, err := verifier.New(verifier.Options{Logger: zaptest.NewLogger(t)}).
				Run(context.Background(), newSession(t, b), sc, srv.URL)
			require.NoError(t, err)
			assert.True(t, report.Passed)
			assert.NotEmpty(t, report.Annotations)
		})
	}

	t.Run("stale listing fails", func(t *testing.T) {
		srv := fakeblog.NewServer(t, fakeblog.Options{Stale: true})
		sc, err := catalog.Get("pagination")
		require.NoError(t, err)

		_, err = verifier.New(verifier.Options{Logger: zaptest.NewLogger(t)}).
			Run(context.Background(), newSession(t, b), sc, srv.URL)
		assert.ErrorIs(t, err, verifier.ErrAssertionMismatch)
	})

	t.Run("session", func(t *testing.T) {
		srv := fakeblog.NewServer(t, fakeblog.Options{})
		sess := newSession(t, b)
		ctx := context.Background()

		require.NoError(t, sess.Navigate(ctx, srv.URL+"/blog"))
		title, err := sess.Title(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Blog - Page 1 | SkillsVR Demo", title)

		err = sess.WaitVisible(ctx, repository.Role("link", "Nonexistent"), 300*time.Millisecond)
		assert.True(t, errors.Is(err, repository.ErrVisibilityTimeout), "got %v", err)

		require.NoError(t, sess.Click(ctx, repository.Role("link", "2")))
		listing := &scenario.Listing{Path: "/blog"}
		require.Eventually(t, func() bool {
			u, err := sess.URL(ctx)
			return err == nil && listing.PageURLPattern(2).MatchString(u)
		}, 5*time.Second, 50*time.Millisecond)

		html, err := sess.OuterHTML(ctx, "#_dynamic_list-199-247")
		require.NoError(t, err)
		assert.Contains(t, html, "Post 006")

		_, err = sess.OuterHTML(ctx, "#missing")
		assert.ErrorIs(t, err, repository.ErrElementNotFound)
	})
}

func newSession(t *testing.T, b repository.Browser) repository.Session {
	t.Helper()
	sess, err := b.NewSession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}
