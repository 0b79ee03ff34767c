package repository

import "errors"

var (
	ErrVisibilityTimeout = errors.New("element did not become visible in time")
	ErrPopupTimeout      = errors.New("popup did not open in time")
	ErrNavigationFailed  = errors.New("navigation failed")
	ErrElementNotFound   = errors.New("element not found")
	ErrUnsupported       = errors.New("operation not supported by this browser driver")

	ErrRunNotFound = errors.New("verification run not found")
	ErrQueueEmpty  = errors.New("run queue is empty")
)
