// Package scenario describes browser verification scenarios as an explicit
// sequence of steps, each an action plus the location it is expected to
// land on.
package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/user/pagecheck-service/internal/repository"
)

// DefaultDatePattern matches human dates such as "Oct 30, 2025".
const DefaultDatePattern = `[A-Za-z]{3,9}\s+\d{1,2},\s*\d{4}`

type Action string

const (
	ActionGoto        Action = "goto"
	ActionClick       Action = "click"
	ActionClickPopup  Action = "click_popup"
	ActionDismiss     Action = "dismiss"
	ActionWaitVisible Action = "wait_visible"
	ActionFill        Action = "fill"
	ActionCapture     Action = "capture"
)

func (a Action) needsTarget() bool {
	switch a {
	case ActionClick, ActionClickPopup, ActionDismiss, ActionWaitVisible, ActionFill:
		return true
	}
	return false
}

func (a Action) valid() bool {
	return a == ActionGoto || a == ActionCapture || a.needsTarget()
}

// Listing holds the selectors of a paginated content listing.
type Listing struct {
	// Path is the page-1 path of the listing, e.g. "/blog". Page N>=2 lives
	// at Path + "/page/N".
	Path        string `yaml:"path"`
	Container   string `yaml:"container"`
	Title       string `yaml:"title"`
	Date        string `yaml:"date"`
	DatePattern string `yaml:"date_pattern"`

	datePattern *regexp.Regexp
}

// DateRegexp returns the compiled date pattern.
func (l *Listing) DateRegexp() *regexp.Regexp {
	return l.datePattern
}

// PageURLPattern returns the location contract of logical page n.
func (l *Listing) PageURLPattern(n int) *regexp.Regexp {
	base := regexp.QuoteMeta(strings.TrimSuffix(l.Path, "/"))
	if n > 1 {
		base += "/page/" + strconv.Itoa(n)
	}
	return regexp.MustCompile(base + `/?(?:[?#].*)?$`)
}

func (l *Listing) compile() error {
	if l.Path == "" || !strings.HasPrefix(l.Path, "/") {
		return fmt.Errorf("listing path %q must start with /", l.Path)
	}
	if l.Container == "" || l.Title == "" || l.Date == "" {
		return errors.New("listing needs container, title and date selectors")
	}
	if l.DatePattern == "" {
		l.DatePattern = DefaultDatePattern
	}
	re, err := regexp.Compile(l.DatePattern)
	if err != nil {
		return fmt.Errorf("listing date_pattern: %w", err)
	}
	l.datePattern = re
	return nil
}

// Step is one action of a scenario followed by its expectations.
type Step struct {
	Name   string              `yaml:"name"`
	Action Action              `yaml:"action"`
	Target repository.Locator  `yaml:"target"`
	URL    string              `yaml:"url,omitempty"`
	Value  string              `yaml:"value,omitempty"`
	When   *repository.Locator `yaml:"when,omitempty"`
	// Timeout overrides the visibility timeout for this step.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	ExpectPage  int    `yaml:"expect_page,omitempty"`
	ExpectURL   string `yaml:"expect_url,omitempty"`
	ExpectTitle string `yaml:"expect_title,omitempty"`

	// Capture is the logical page index to snapshot after the action; 0
	// means no capture.
	Capture  int `yaml:"capture,omitempty"`
	MinItems int `yaml:"min_items,omitempty"`

	urlPattern   *regexp.Regexp
	titlePattern *regexp.Regexp
}

// URLPattern is the location the step must land on, or nil.
func (s *Step) URLPattern() *regexp.Regexp { return s.urlPattern }

// TitlePattern is the document title the step must land on, or nil.
func (s *Step) TitlePattern() *regexp.Regexp { return s.titlePattern }

// Scenario is a named, finite sequence of steps.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	Listing     *Listing `yaml:"listing,omitempty"`
	Steps       []Step   `yaml:"steps"`
}

// BaseURLFor picks the base URL of a run: the explicit override, then the
// scenario's own, then fallback.
func (s *Scenario) BaseURLFor(override, fallback string) string {
	switch {
	case override != "":
		return override
	case s.BaseURL != "":
		return s.BaseURL
	default:
		return fallback
	}
}

// Compile validates the scenario and compiles its patterns. It must be
// called before the scenario is run; Load does it.
func (s *Scenario) Compile() error {
	if s.Name == "" {
		return errors.New("scenario needs a name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	if s.Listing != nil {
		if err := s.Listing.compile(); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	for i := range s.Steps {
		if err := s.compileStep(&s.Steps[i], i); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	return nil
}

func (s *Scenario) compileStep(st *Step, i int) error {
	if st.Name == "" {
		st.Name = fmt.Sprintf("step %d", i+1)
	}
	if !st.Action.valid() {
		return fmt.Errorf("step %q: unknown action %q", st.Name, st.Action)
	}
	if st.Action == ActionGoto && st.URL == "" {
		return fmt.Errorf("step %q: goto needs a url", st.Name)
	}
	if st.Action.needsTarget() {
		if err := checkLocator(st.Target); err != nil {
			return fmt.Errorf("step %q: target: %w", st.Name, err)
		}
	}
	if st.When != nil {
		if err := checkLocator(*st.When); err != nil {
			return fmt.Errorf("step %q: when: %w", st.Name, err)
		}
	}
	if st.Action == ActionCapture && st.Capture < 1 {
		return fmt.Errorf("step %q: capture action needs a positive capture page", st.Name)
	}
	if st.Capture < 0 || st.ExpectPage < 0 || st.MinItems < 0 {
		return fmt.Errorf("step %q: page numbers and min_items must not be negative", st.Name)
	}
	if (st.Capture > 0 || st.ExpectPage > 0) && s.Listing == nil {
		return fmt.Errorf("step %q: capture and expect_page need a listing", st.Name)
	}

	switch {
	case st.ExpectURL != "" && st.ExpectPage > 0:
		return fmt.Errorf("step %q: expect_url and expect_page are exclusive", st.Name)
	case st.ExpectURL != "":
		re, err := regexp.Compile(st.ExpectURL)
		if err != nil {
			return fmt.Errorf("step %q: expect_url: %w", st.Name, err)
		}
		st.urlPattern = re
	case st.ExpectPage > 0:
		st.urlPattern = s.Listing.PageURLPattern(st.ExpectPage)
	}
	if st.ExpectTitle != "" {
		re, err := regexp.Compile(st.ExpectTitle)
		if err != nil {
			return fmt.Errorf("step %q: expect_title: %w", st.Name, err)
		}
		st.titlePattern = re
	}
	return nil
}

func checkLocator(l repository.Locator) error {
	switch l.Kind {
	case repository.ByCSS, repository.ByText:
		if l.Value == "" {
			return fmt.Errorf("%s locator needs a value", l.Kind)
		}
	case repository.ByRole:
		if l.Value == "" || l.Name == "" {
			return errors.New("role locator needs a role and a name")
		}
	default:
		return fmt.Errorf("unknown locator kind %q", l.Kind)
	}
	return nil
}
