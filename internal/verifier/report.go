package verifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/user/pagecheck-service/internal/entity"
	"github.com/user/pagecheck-service/internal/scenario"
)

// Transition records a pagination control that moved between two captured
// pages.
type Transition struct {
	Control string `json:"control"`
	From    int    `json:"from"`
	To      int    `json:"to"`
}

// Report is the outcome of one scenario run.
type Report struct {
	Scenario    string                `json:"scenario"`
	BaseURL     string                `json:"base_url"`
	Passed      bool                  `json:"passed"`
	Completed   []string              `json:"completed_steps"`
	Skipped     []string              `json:"skipped_steps,omitempty"`
	Snapshots   []entity.PageSnapshot `json:"snapshots"`
	Checks      []CheckResult         `json:"checks"`
	Transitions []Transition          `json:"transitions,omitempty"`
	Annotations []entity.Annotation   `json:"annotations,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
	Err         error                 `json:"-"`
}

// Failure returns the failure message, or "" for a passed run.
func (r *Report) Failure() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// buildAnnotations summarises a passed run.
func buildAnnotations(sc *scenario.Scenario, r *Report) []entity.Annotation {
	if len(r.Snapshots) == 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Verified %d steps:", len(r.Completed))
		for _, name := range r.Completed {
			fmt.Fprintf(&b, "\n- %s", name)
		}
		return []entity.Annotation{{Type: "Steps", Description: b.String()}}
	}

	var out []entity.Annotation
	if snap, ok := firstListing(sc, r); ok {
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d items on page %d:", len(snap.Titles), snap.PageIndex)
		for n, title := range snap.Titles {
			fmt.Fprintf(&b, "\n%d. %s", n+1, title)
		}
		out = append(out, entity.Annotation{Type: "Listing", Description: b.String()})
	}

	if len(r.Snapshots) > 1 {
		out = append(out, entity.Annotation{Type: "Test Summary", Description: paginationSummary(r)})
	}
	return out
}

// firstListing returns the snapshot of the first capture step that asked for
// a minimum item count.
func firstListing(sc *scenario.Scenario, r *Report) (entity.PageSnapshot, bool) {
	for _, st := range sc.Steps {
		if st.Capture == 0 || st.MinItems == 0 {
			continue
		}
		for _, snap := range r.Snapshots {
			if snap.PageIndex == st.Capture {
				return snap, true
			}
		}
		break
	}
	return entity.PageSnapshot{}, false
}

func paginationSummary(r *Report) string {
	var b strings.Builder

	first := make(map[int]entity.PageSnapshot)
	for _, snap := range r.Snapshots {
		if _, ok := first[snap.PageIndex]; !ok {
			first[snap.PageIndex] = snap
		}
	}
	pages := make([]int, 0, len(first))
	for p := range first {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	b.WriteString("Navigation & Content Verification:")
	for _, p := range pages {
		title, _ := first[p].FirstTitle()
		date, _ := first[p].FirstDate()
		fmt.Fprintf(&b, "\n- Page %d: %q - %s", p, title, date)
	}

	b.WriteString("\n\nDate Progression Verified:")
	seen := make(map[string]bool)
	for _, c := range r.Checks {
		if c.Invariant != CheckOrder || !c.Passed {
			continue
		}
		line := fmt.Sprintf("- Page %d >= Page %d", c.Pages[0], c.Pages[1])
		if !seen[line] {
			seen[line] = true
			fmt.Fprintf(&b, "\n%s", line)
		}
	}

	b.WriteString("\n\nNavigation Verified:")
	var controls []string
	moves := make(map[string][]string)
	for _, t := range r.Transitions {
		if _, ok := moves[t.Control]; !ok {
			controls = append(controls, t.Control)
		}
		moves[t.Control] = append(moves[t.Control], fmt.Sprintf("%d->%d", t.From, t.To))
	}
	for _, c := range controls {
		fmt.Fprintf(&b, "\n- %s: Page %s", c, strings.Join(moves[c], ", "))
	}
	b.WriteString("\n- Content changes between all pages")
	for _, c := range r.Checks {
		if c.Invariant == CheckRevisit && c.Passed {
			fmt.Fprintf(&b, "\n- Page %d content consistent on revisit", c.Pages[0])
		}
	}
	return b.String()
}
