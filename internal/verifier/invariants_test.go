package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pagecheck-service/internal/entity"
)

func snap(page int, title, date string) entity.PageSnapshot {
	s := entity.PageSnapshot{PageIndex: page, Titles: []string{}, Dates: []string{}}
	if title != "" {
		s.Titles = append(s.Titles, title, title+" (2)")
	}
	if date != "" {
		s.Dates = append(s.Dates, date)
	}
	return s
}

func observeAll(t *testing.T, tr *tracker, snaps ...entity.PageSnapshot) error {
	t.Helper()
	for _, s := range snaps {
		if _, err := tr.observe("capture", s, 0); err != nil {
			return err
		}
	}
	return nil
}

func TestTracker_PaginationSequencePasses(t *testing.T) {
	tr := newTracker(DateComparator{Policy: DatePolicyLenient})
	err := observeAll(t, tr,
		snap(1, "A", "Oct 30, 2025"),
		snap(2, "B", "Oct 15, 2025"),
		snap(3, "C", "Oct 1, 2025"),
		snap(11, "K", "Mar 1, 2025"),
		snap(10, "J", "Mar 15, 2025"),
		snap(11, "K", "Mar 1, 2025"),
	)
	require.NoError(t, err)
	assert.Len(t, tr.snapshots(), 6)
}

func TestTracker_Failures(t *testing.T) {
	tests := []struct {
		name  string
		snaps []entity.PageSnapshot
		check string
	}{
		{"same content", []entity.PageSnapshot{snap(1, "A", "Oct 30, 2025"), snap(2, "A", "Oct 29, 2025")}, CheckDistinct},
		{"empty page", []entity.PageSnapshot{snap(1, "A", "Oct 30, 2025"), snap(2, "", "")}, CheckNonEmpty},
		{"newer later page", []entity.PageSnapshot{snap(1, "A", "Oct 1, 2025"), snap(2, "B", "Oct 30, 2025")}, CheckOrder},
		{"backward move compares by index", []entity.PageSnapshot{snap(11, "K", "Oct 30, 2025"), snap(10, "J", "Oct 1, 2025")}, CheckOrder},
		{"revisit changed title", []entity.PageSnapshot{snap(10, "J", "Mar 15, 2025"), snap(11, "K", "Mar 1, 2025"), snap(10, "J", "Mar 15, 2025"), snap(11, "X", "Mar 1, 2025")}, CheckRevisit},
		{"revisit changed date", []entity.PageSnapshot{snap(10, "J", "Mar 15, 2025"), snap(11, "K", "Mar 1, 2025"), snap(10, "J", "Mar 15, 2025"), snap(11, "K", "Feb 1, 2025")}, CheckRevisit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := observeAll(t, newTracker(DateComparator{Policy: DatePolicyLenient}), tt.snaps...)
			require.ErrorIs(t, err, ErrAssertionMismatch)

			var m *AssertionMismatch
			require.ErrorAs(t, err, &m)
			assert.Equal(t, tt.check, m.Check)
			assert.Equal(t, "capture", m.Step)
		})
	}
}

func TestTracker_FirstPageMayBeEmptyButNotAfter(t *testing.T) {
	tr := newTracker(DateComparator{Policy: DatePolicyLenient})
	_, err := tr.observe("first", snap(1, "", ""), 0)
	require.NoError(t, err)

	_, err = tr.observe("second", snap(2, "", ""), 0)
	var m *AssertionMismatch
	require.ErrorAs(t, err, &m)
	assert.Equal(t, CheckNonEmpty, m.Check)
}

func TestTracker_MinItems(t *testing.T) {
	tr := newTracker(DateComparator{Policy: DatePolicyLenient})
	results, err := tr.observe("first", snap(1, "A", "Oct 30, 2025"), 4)

	var m *AssertionMismatch
	require.ErrorAs(t, err, &m)
	assert.Equal(t, CheckMinItems, m.Check)
	assert.Equal(t, "2", m.Actual)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
}

func TestTracker_StrictDatesFailOrder(t *testing.T) {
	tr := newTracker(DateComparator{Policy: DatePolicyStrict})
	err := observeAll(t, tr, snap(1, "A", "soon"), snap(2, "B", "later"))

	var m *AssertionMismatch
	require.ErrorAs(t, err, &m)
	assert.Equal(t, CheckOrder, m.Check)
	assert.Contains(t, m.Actual, "unparseable date")
}

func TestTracker_ResultsRecordPages(t *testing.T) {
	tr := newTracker(DateComparator{Policy: DatePolicyLenient})
	_, err := tr.observe("p3", snap(3, "C", "Oct 1, 2025"), 0)
	require.NoError(t, err)

	results, err := tr.observe("p2", snap(2, "B", "Oct 15, 2025"), 0)
	require.NoError(t, err)

	var invariants []string
	for _, r := range results {
		invariants = append(invariants, r.Invariant)
		assert.True(t, r.Passed)
	}
	assert.Equal(t, []string{CheckNonEmpty, CheckDistinct, CheckOrder}, invariants)
	assert.Equal(t, []int{2, 3}, results[2].Pages)
}
