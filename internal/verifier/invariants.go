package verifier

import (
	"fmt"
	"strconv"

	"github.com/user/pagecheck-service/internal/entity"
)

// Invariant names used in CheckResult and metrics.
const (
	CheckNonEmpty = "non_empty"
	CheckMinItems = "min_items"
	CheckDistinct = "distinct"
	CheckOrder    = "order"
	CheckRevisit  = "revisit"
)

// CheckResult is the outcome of one invariant evaluation.
type CheckResult struct {
	Step      string `json:"step"`
	Invariant string `json:"invariant"`
	Pages     []int  `json:"pages"`
	Passed    bool   `json:"passed"`
	Detail    string `json:"detail,omitempty"`
}

// tracker evaluates the cross-page invariants as snapshots arrive.
type tracker struct {
	dates     DateComparator
	history   []entity.PageSnapshot
	firstSeen map[int]entity.PageSnapshot
}

func newTracker(dates DateComparator) *tracker {
	return &tracker{dates: dates, firstSeen: make(map[int]entity.PageSnapshot)}
}

// observe adds snap and checks it against earlier captures. It stops at the
// first failing invariant; the failing result is included in the returned
// slice.
func (t *tracker) observe(step string, snap entity.PageSnapshot, minItems int) ([]CheckResult, error) {
	prev, hasPrev := t.previousDistinct(snap.PageIndex)
	t.history = append(t.history, snap)

	var results []CheckResult
	check := func(res CheckResult, mismatch *AssertionMismatch) error {
		res.Step = step
		res.Passed = mismatch == nil
		if mismatch != nil {
			mismatch.Step = step
			res.Detail = mismatch.Error()
		}
		results = append(results, res)
		if mismatch != nil {
			return mismatch
		}
		return nil
	}
	pages := []int{snap.PageIndex}

	if snap.PageIndex > 1 {
		var m *AssertionMismatch
		if snap.Empty() {
			m = &AssertionMismatch{Check: CheckNonEmpty, Expected: "at least one item", Actual: "none"}
		}
		if err := check(CheckResult{Invariant: CheckNonEmpty, Pages: pages}, m); err != nil {
			return results, err
		}
	}

	if minItems > 0 {
		var m *AssertionMismatch
		if len(snap.Titles) < minItems {
			m = &AssertionMismatch{
				Check:    CheckMinItems,
				Expected: fmt.Sprintf("at least %d items", minItems),
				Actual:   strconv.Itoa(len(snap.Titles)),
			}
		}
		if err := check(CheckResult{Invariant: CheckMinItems, Pages: pages}, m); err != nil {
			return results, err
		}
	}

	if hasPrev {
		pair := []int{prev.PageIndex, snap.PageIndex}

		var m *AssertionMismatch
		a, _ := prev.FirstTitle()
		b, _ := snap.FirstTitle()
		if a == b {
			m = &AssertionMismatch{
				Check:    CheckDistinct,
				Expected: fmt.Sprintf("first title of page %d to differ from page %d", snap.PageIndex, prev.PageIndex),
				Actual:   strconv.Quote(b),
			}
		}
		if err := check(CheckResult{Invariant: CheckDistinct, Pages: pair}, m); err != nil {
			return results, err
		}

		if err := check(t.order(prev, snap)); err != nil {
			return results, err
		}
	}

	if orig, seen := t.firstSeen[snap.PageIndex]; seen {
		var m *AssertionMismatch
		ot, _ := orig.FirstTitle()
		st, _ := snap.FirstTitle()
		od, _ := orig.FirstDate()
		sd, _ := snap.FirstDate()
		if ot != st || od != sd {
			m = &AssertionMismatch{
				Check:    CheckRevisit,
				Expected: fmt.Sprintf("page %d to show %q (%s) again", snap.PageIndex, ot, od),
				Actual:   fmt.Sprintf("%q (%s)", st, sd),
			}
		}
		if err := check(CheckResult{Invariant: CheckRevisit, Pages: pages}, m); err != nil {
			return results, err
		}
	} else {
		t.firstSeen[snap.PageIndex] = snap
	}
	return results, nil
}

// order checks that the lower-numbered page lists the newer-or-equal first
// date.
func (t *tracker) order(x, y entity.PageSnapshot) (CheckResult, *AssertionMismatch) {
	earlier, later := x, y
	if later.PageIndex < earlier.PageIndex {
		earlier, later = later, earlier
	}
	res := CheckResult{Invariant: CheckOrder, Pages: []int{earlier.PageIndex, later.PageIndex}}

	de, _ := earlier.FirstDate()
	dl, _ := later.FirstDate()
	ok, err := t.dates.NewerOrEqual(de, dl)
	switch {
	case err != nil:
		return res, &AssertionMismatch{Check: CheckOrder, Expected: "parseable dates", Actual: err.Error()}
	case !ok:
		return res, &AssertionMismatch{
			Check:    CheckOrder,
			Expected: fmt.Sprintf("page %d date %q on or after page %d date %q", earlier.PageIndex, de, later.PageIndex, dl),
			Actual:   "older",
		}
	}
	return res, nil
}

func (t *tracker) previousDistinct(page int) (entity.PageSnapshot, bool) {
	for i := len(t.history) - 1; i >= 0; i-- {
		if t.history[i].PageIndex != page {
			return t.history[i], true
		}
	}
	return entity.PageSnapshot{}, false
}

func (t *tracker) snapshots() []entity.PageSnapshot {
	return t.history
}
