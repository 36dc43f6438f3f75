package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds single database round trips made outside a request.
	DefaultTimeout = 10 * time.Second

	// ShortTimeout bounds cache and limiter lookups on the request path.
	ShortTimeout = 2 * time.Second
)

func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
