package repository

import (
	"context"
	"time"
)

// CooldownRepository prevents the same target from being verified again
// too soon.
type CooldownRepository interface {
	// Mark starts the cooldown window for key.
	Mark(ctx context.Context, key string, window time.Duration) error
	// MarkIfAbsent starts the window only when key has none, atomically.
	// It reports false when key was already inside its window.
	MarkIfAbsent(ctx context.Context, key string, window time.Duration) (bool, error)
	// Active reports whether key is inside its cooldown window.
	Active(ctx context.Context, key string) (bool, error)
	// Clear ends the cooldown for key.
	Clear(ctx context.Context, key string) error
}
