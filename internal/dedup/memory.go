package dedup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// MemoryLocker is an in-process Locker.
type MemoryLocker struct {
	c *cache.Cache
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{c: cache.New(DefaultLockTTL, time.Minute)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	token := uuid.NewString()
	if err := l.c.Add(key, token, ttl); err != nil {
		return func() {}, false, nil
	}
	return func() {
		if v, ok := l.c.Get(key); ok && v.(string) == token {
			l.c.Delete(key)
		}
	}, true, nil
}

// MemoryResponses is an in-process Responses store.
type MemoryResponses struct {
	c *cache.Cache
}

// NewMemoryResponses creates an in-process response store.
func NewMemoryResponses() *MemoryResponses {
	return &MemoryResponses{c: cache.New(DefaultIdempotencyTTL, 10*time.Minute)}
}

func (m *MemoryResponses) Get(ctx context.Context, key string) (*Response, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	r := *v.(*Response)
	return &r, true, nil
}

func (m *MemoryResponses) Put(ctx context.Context, key string, resp *Response, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	r := *resp
	m.c.Set(key, &r, ttl)
	return nil
}

var (
	_ Locker    = (*MemoryLocker)(nil)
	_ Responses = (*MemoryResponses)(nil)
)
