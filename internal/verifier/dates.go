package verifier

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/pagecheck-service/pkg/metrics"
)

// dateLayouts are tried in order. Parsing never depends on the host locale.
var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01-02",
}

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	commaSpace = regexp.MustCompile(`\s*,\s*`)
	monthDot   = regexp.MustCompile(`^([A-Za-z]{3,9})\.`)
)

// ExtractDate returns the first match of pattern in raw, or raw trimmed when
// nothing matches.
func ExtractDate(pattern *regexp.Regexp, raw string) string {
	if pattern != nil {
		if m := pattern.FindString(raw); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return strings.TrimSpace(raw)
}

// ParseDate parses a human date such as "Oct 30, 2025" to midnight UTC of
// that calendar day.
func ParseDate(s string) (time.Time, error) {
	v := strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
	v = commaSpace.ReplaceAllString(v, ", ")
	v = monthDot.ReplaceAllString(v, "$1")
	if strings.HasPrefix(strings.ToLower(v), "sept ") {
		v = "Sep" + v[4:]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
}

// IsNewerOrEqual reports whether date a is on or after date b. When either
// side does not parse it returns true, so an unparseable pair never fails an
// ordering check on its own.
func IsNewerOrEqual(a, b string) bool {
	ok, _ := DateComparator{Policy: DatePolicyLenient}.NewerOrEqual(a, b)
	return ok
}

type DatePolicy string

const (
	// DatePolicyLenient treats unparseable pairs as ordered.
	DatePolicyLenient DatePolicy = "lenient"
	// DatePolicyStrict fails the ordering check on unparseable pairs.
	DatePolicyStrict DatePolicy = "strict"
)

func ParseDatePolicy(s string) (DatePolicy, error) {
	switch DatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DatePolicyLenient:
		return DatePolicyLenient, nil
	case DatePolicyStrict:
		return DatePolicyStrict, nil
	}
	return "", fmt.Errorf("unknown date policy %q", s)
}

// DateComparator orders listing dates under a DatePolicy.
type DateComparator struct {
	Policy  DatePolicy
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// NewerOrEqual reports whether a is on or after b. Under the strict policy an
// unparseable side yields an error wrapping ErrUnparseableDate; under the
// lenient policy it yields true with a warning.
func (c DateComparator) NewerOrEqual(a, b string) (bool, error) {
	ta, errA := ParseDate(a)
	tb, errB := ParseDate(b)
	if errA == nil && errB == nil {
		return !ta.Before(tb), nil
	}
	if c.Policy == DatePolicyStrict {
		if errA != nil {
			return false, errA
		}
		return false, errB
	}

	c.Metrics.IncUnparseableDates()
	if c.Logger != nil {
		c.Logger.Warn("Unparseable date pair treated as ordered",
			zap.String("newer", a),
			zap.String("older", b),
		)
	}
	return true, nil
}
