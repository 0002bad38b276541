// Package ratelimit provides per-identity admission control.
package ratelimit

import (
	"context"
	"time"
)

// Limiter admits or rejects a request for an identity.
// Implementations never return errors; infrastructure failures are resolved
// inside the implementation.
type Limiter interface {
	Admit(ctx context.Context, key string) bool
}

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time
