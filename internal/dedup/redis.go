package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix        = "lectern:lock:"
	idempotencyPrefix = "lectern:idem:"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements Locker and Responses on a shared Redis, so several
// server instances agree.
type Redis struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewRedis connects to url (redis://...) and pings it.
func NewRedis(ctx context.Context, url string, logger *slog.Logger) (*Redis, error) {
	if url == "" {
		return nil, fmt.Errorf("empty redis url")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("could not parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis: %w", err)
	}
	logger.Info("connected to redis", "addr", opt.Addr)
	return &Redis{rdb: rdb, logger: logger}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	k := lockPrefix + key
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.rdb, []string{k}, token).Err(); err != nil {
			r.logger.Warn("failed to release lock", "key", key, "error", err)
		}
	}, true, nil
}

func (r *Redis) Get(ctx context.Context, key string) (*Response, bool, error) {
	data, err := r.rdb.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotent response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("failed to decode idempotent response: %w", err)
	}
	return &resp, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, resp *Response, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode idempotent response: %w", err)
	}
	return r.rdb.Set(ctx, idempotencyPrefix+key, data, ttl).Err()
}

var (
	_ Locker    = (*Redis)(nil)
	_ Responses = (*Redis)(nil)
)
