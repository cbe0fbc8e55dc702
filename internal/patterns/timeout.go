package patterns

import (
	"context"
	"time"
)

// DefaultTimeout is the default timeout for outbound HTTP requests
const DefaultTimeout = 5 * time.Second

// WithTimeout derives a fail-fast context from parent. A non-positive
// duration falls back to DefaultTimeout.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(parent, d)
}
