// Package dedup keeps duplicate work out: a lock so one processing run per
// book starts at a time, and a store of responses keyed by Idempotency-Key
// so replayed requests get the original answer.
package dedup

import (
	"context"
	"time"
)

const (
	DefaultLockTTL        = 10 * time.Minute
	DefaultIdempotencyTTL = 24 * time.Hour
)

// Locker grants short-lived exclusive locks.
type Locker interface {
	// Acquire takes key for ttl. ok is false when someone else holds it.
	// release frees the lock only if it is still ours.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Response is a stored reply to an idempotent request.
type Response struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
	// Fingerprint identifies the request the response was for, so a key
	// reused with a different body can be rejected.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Responses stores idempotent responses.
type Responses interface {
	Get(ctx context.Context, key string) (*Response, bool, error)
	Put(ctx context.Context, key string, resp *Response, ttl time.Duration) error
}
