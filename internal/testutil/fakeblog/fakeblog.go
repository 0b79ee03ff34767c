// Package fakeblog serves a small site with the markup of a paginated blog,
// a marketplace journey and a sign-in form. It backs the hermetic tests of
// the verifier, the drivers, the CLI and the workers.
package fakeblog

import (
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// Options shape the listing. The zero value serves 11 pages of 5 posts with
// strictly descending dates.
type Options struct {
	Pages    int
	PerPage  int
	Newest   time.Time
	DaysStep int
	// DateLayout formats post dates; defaults to "Jan 2, 2006".
	DateLayout string

	// Stale makes every page list page 1's posts.
	Stale bool
	// EmptyPage renders no posts on that page.
	EmptyPage int
	// NewerPage dates that page's posts after page 1's.
	NewerPage int
	// ShiftOnRevisit changes a page's posts on every request after the first.
	ShiftOnRevisit bool
	// GarbledDates replaces post dates with unparseable text.
	GarbledDates bool
	// NoBanner drops the cookie consent banner.
	NoBanner bool
}

func (o *Options) defaults() {
	if o.Pages <= 0 {
		o.Pages = 11
	}
	if o.PerPage <= 0 {
		o.PerPage = 5
	}
	if o.Newest.IsZero() {
		o.Newest = time.Date(2025, time.October, 30, 0, 0, 0, 0, time.UTC)
	}
	if o.DaysStep <= 0 {
		o.DaysStep = 3
	}
	if o.DateLayout == "" {
		o.DateLayout = "Jan 2, 2006"
	}
}

// Post is one listing item.
type Post struct {
	Title string
	Date  string
	Index int
}

// Site is the fake site handler.
type Site struct {
	opts Options

	mu     sync.Mutex
	visits map[int]int
}

func NewSite(opts Options) *Site {
	opts.defaults()
	return &Site{opts: opts, visits: make(map[int]int)}
}

// NewServer starts a test server for opts and closes it on test cleanup.
func NewServer(t testing.TB, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewSite(opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func (s *Site) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.page(homeTmpl, nil))
	mux.HandleFunc("GET /marketplace", s.page(marketplaceTmpl, nil))
	mux.HandleFunc("GET /course/demo", s.page(courseTmpl, nil))
	mux.HandleFunc("GET /login", s.page(loginTmpl, nil))
	mux.HandleFunc("GET /blog", s.listing)
	mux.HandleFunc("GET /blog/page/{n}", s.listing)
	return mux
}

// Posts returns the posts page n lists on its first visit.
func (s *Site) Posts(n int) []Post {
	return s.posts(n, 0)
}

func (s *Site) posts(n, visit int) []Post {
	if n == s.opts.EmptyPage {
		return nil
	}
	src := n
	if s.opts.Stale {
		src = 1
	}
	first := (src - 1) * s.opts.PerPage
	if s.opts.ShiftOnRevisit {
		first += visit
	}

	out := make([]Post, 0, s.opts.PerPage)
	for i := first; i < first+s.opts.PerPage; i++ {
		date := s.opts.Newest.AddDate(0, 0, -s.opts.DaysStep*i)
		if n == s.opts.NewerPage {
			date = s.opts.Newest.AddDate(0, 0, s.opts.DaysStep*(s.opts.PerPage-(i-first)))
		}
		p := Post{Title: fmt.Sprintf("Post %03d: VR training insights", i+1), Date: date.Format(s.opts.DateLayout), Index: i + 1}
		if s.opts.GarbledDates {
			p.Date = "sometime soon"
		}
		out = append(out, p)
	}
	return out
}

type pageLink struct {
	Label string
	Href  string
}

func pageHref(n int) string {
	if n == 1 {
		return "/blog"
	}
	return "/blog/page/" + strconv.Itoa(n)
}

func (s *Site) listing(w http.ResponseWriter, r *http.Request) {
	n := 1
	if v := r.PathValue("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > s.opts.Pages {
			http.NotFound(w, r)
			return
		}
		n = parsed
	}

	s.mu.Lock()
	visit := s.visits[n]
	s.visits[n]++
	s.mu.Unlock()

	var links []pageLink
	if n > 1 {
		links = append(links, pageLink{"❮", pageHref(n - 1)})
	}
	for i := 1; i <= s.opts.Pages; i++ {
		links = append(links, pageLink{strconv.Itoa(i), pageHref(i)})
	}
	if n < s.opts.Pages {
		links = append(links, pageLink{"❯", pageHref(n + 1)})
	}

	s.page(listingTmpl, map[string]any{
		"Page":  n,
		"Posts": s.posts(n, visit),
		"Links": links,
	})(w, r)
}

func (s *Site) page(tmpl *template.Template, data map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := map[string]any{"Banner": !s.opts.NoBanner}
		for k, v := range data {
			vars[k] = v
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, vars); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
