package repository

import (
	"context"
	"fmt"
	"time"
)

type LocatorKind string

const (
	ByCSS  LocatorKind = "css"
	ByRole LocatorKind = "role"
	ByText LocatorKind = "text"
)

// Locator identifies an element on the current page.
//
// For ByCSS, Value is a CSS selector. For ByRole, Value is an ARIA role
// (link, button, heading, ...) and Name the accessible name, matched exactly
// after whitespace normalisation. For ByText, Value is matched as a
// case-insensitive substring of the element text.
// Within optionally scopes the search to the first element matching a CSS
// selector, and HasText keeps only candidates whose text contains it.
type Locator struct {
	Kind    LocatorKind `yaml:"kind" json:"kind"`
	Value   string      `yaml:"value" json:"value"`
	Name    string      `yaml:"name,omitempty" json:"name,omitempty"`
	Within  string      `yaml:"within,omitempty" json:"within,omitempty"`
	HasText string      `yaml:"has_text,omitempty" json:"has_text,omitempty"`
}

func CSS(selector string) Locator { return Locator{Kind: ByCSS, Value: selector} }

func Role(role, name string) Locator { return Locator{Kind: ByRole, Value: role, Name: name} }

func Text(text string) Locator { return Locator{Kind: ByText, Value: text} }

func (l Locator) String() string {
	var s string
	switch l.Kind {
	case ByRole:
		s = fmt.Sprintf("role=%s[name=%q]", l.Value, l.Name)
	case ByText:
		s = fmt.Sprintf("text=%q", l.Value)
	default:
		s = l.Value
	}
	if l.HasText != "" {
		s += fmt.Sprintf(" >> has-text=%q", l.HasText)
	}
	if l.Within != "" {
		s = l.Within + " >> " + s
	}
	return s
}

// Browser is the browser control capability. Implementations must allow
// concurrent NewSession calls.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session is a single page handle. A Session is used by one goroutine at a
// time; every blocking call honours ctx.
type Session interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// WaitVisible returns an error wrapping ErrVisibilityTimeout when the
	// locator is not visible within timeout.
	WaitVisible(ctx context.Context, loc Locator, timeout time.Duration) error
	Click(ctx context.Context, loc Locator) error
	// ClickPopup clicks loc and waits for the page it opens. The returned
	// session is owned by the caller.
	ClickPopup(ctx context.Context, loc Locator, timeout time.Duration) (Session, error)
	Fill(ctx context.Context, loc Locator, value string) error
	// OuterHTML returns the outer HTML of the first element matching selector.
	OuterHTML(ctx context.Context, selector string) (string, error)
	Close() error
}
