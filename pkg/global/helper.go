package global

import (
	"context"
	"time"
)

const defaultTimeout = 10 * time.Second

// GetDefaultTimer is used by one-shot CLI commands that have no request context.
func GetDefaultTimer() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultTimeout)
}

// WithTimeout bounds ctx by d, falling back to the default upstream timeout.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
