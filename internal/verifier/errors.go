package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/pagecheck-service/internal/repository"
)

var (
	ErrAssertionMismatch = errors.New("assertion mismatch")
	ErrUnparseableDate   = errors.New("unparseable date")
)

// AssertionMismatch reports a check whose observed value differs from the
// expected one.
type AssertionMismatch struct {
	Step     string
	Check    string
	Expected string
	Actual   string
}

func (e *AssertionMismatch) Error() string {
	return fmt.Sprintf("step %q: %s: expected %s, got %s", e.Step, e.Check, e.Expected, e.Actual)
}

func (e *AssertionMismatch) Is(target error) bool {
	return target == ErrAssertionMismatch
}

// Error kinds reported on failed runs.
const (
	KindVisibilityTimeout = "visibility_timeout"
	KindPopupTimeout      = "popup_timeout"
	KindAssertionMismatch = "assertion_mismatch"
	KindNavigation        = "navigation"
	KindUnsupported       = "unsupported"
	KindTimeout           = "timeout"
	KindUnknown           = "unknown"
)

// ErrorKind classifies a run failure.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAssertionMismatch), errors.Is(err, ErrUnparseableDate):
		return KindAssertionMismatch
	case errors.Is(err, repository.ErrVisibilityTimeout), errors.Is(err, repository.ErrElementNotFound):
		return KindVisibilityTimeout
	case errors.Is(err, repository.ErrPopupTimeout):
		return KindPopupTimeout
	case errors.Is(err, repository.ErrNavigationFailed):
		return KindNavigation
	case errors.Is(err, repository.ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	default:
		return KindUnknown
	}
}
