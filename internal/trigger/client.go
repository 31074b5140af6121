// Package trigger is the HTTP client every outbound call goes through. It
// applies one retry policy (exponential backoff with jitter, Retry-After
// aware) and reports failures as a structured Result instead of an error.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/jackzampolin/lectern/internal/errs"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultJitter      = 0.3

	// IdempotencyHeader carries the key that lets a receiver drop replays.
	IdempotencyHeader = "Idempotency-Key"
)

// Config configures a Client. Zero values take the defaults above.
type Config struct {
	Timeout     time.Duration // per attempt
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // fraction of the backoff added at random

	// BearerToken is sent as Authorization: Bearer when set and the request
	// carries no Authorization header of its own.
	BearerToken string

	HTTPClient *http.Client
	Logger     *slog.Logger

	// Rand returns a value in [0,1) for jitter. Defaults to math/rand.
	Rand func() float64
}

// Client sends HTTP requests with retries.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// Request is one logical call. Attempts share the same body and idempotency key.
type Request struct {
	Method         string
	URL            string
	Body           []byte
	Header         http.Header
	IdempotencyKey string

	// ResolveURL, when set, supplies the URL before every attempt, so a
	// short-lived signed URL is fresh on each retry.
	ResolveURL func(ctx context.Context) (string, error)
}

// Result describes the outcome of a logical call.
type Result struct {
	OK             bool
	StatusCode     int
	Attempts       int
	Body           []byte
	Header         http.Header
	IdempotencyKey string
	Err            error
}

// Decode unmarshals the response body into v.
func (r *Result) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	} else if cfg.Jitter == 0 {
		cfg.Jitter = DefaultJitter
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Do sends req, retrying transient failures. It never returns nil.
func (c *Client) Do(ctx context.Context, req Request) *Result {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	key := req.IdempotencyKey
	if key == "" && req.Method != http.MethodGet && req.Method != http.MethodHead {
		key = uuid.NewString()
	}
	res := &Result{IdempotencyKey: key}

	err := retry.Do(
		func() error {
			res.Attempts++
			return c.attempt(ctx, req, key, res)
		},
		c.options(ctx, req.Method+" "+req.URL)...,
	)
	if err != nil {
		res.Err = err
		return res
	}
	res.OK = true
	return res
}

// Get is shorthand for a GET request.
func (c *Client) Get(ctx context.Context, url string) *Result {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url})
}

// PostJSON marshals body and posts it with a JSON content type.
func (c *Client) PostJSON(ctx context.Context, url string, body any, key string) *Result {
	data, err := json.Marshal(body)
	if err != nil {
		return &Result{Err: errs.Validation("trigger.PostJSON", "marshal body: %v", err)}
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return c.Do(ctx, Request{
		Method:         http.MethodPost,
		URL:            url,
		Body:           data,
		Header:         header,
		IdempotencyKey: key,
	})
}

// Retry runs fn under the same policy as Do. fn reports HTTP failures as
// *StatusError so they are classified like ordinary responses.
func (c *Client) Retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
			err := fn(attemptCtx)
			if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return errs.Timeout(op, err)
			}
			return err
		},
		c.options(ctx, op)...,
	)
}

func (c *Client) options(ctx context.Context, op string) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxAttempts)),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return c.NextDelay(int(n)+1, err)
		}),
		retry.RetryIf(Retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying request",
				"op", op,
				"attempt", n+1,
				"max_attempts", c.cfg.MaxAttempts,
				"error", err)
		}),
	}
}

func (c *Client) attempt(ctx context.Context, req Request, key string, res *Result) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if req.ResolveURL != nil {
		u, err := req.ResolveURL(attemptCtx)
		if err != nil {
			return err
		}
		req.URL = u
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, body)
	if err != nil {
		return retry.Unrecoverable(errs.Validation("trigger", "build request: %v", err))
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if key != "" {
		httpReq.Header.Set(IdempotencyHeader, key)
	}
	if c.cfg.BearerToken != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return classifyTransport(ctx, attemptCtx, req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(ctx, attemptCtx, req, err)
	}

	res.StatusCode = resp.StatusCode
	res.Header = resp.Header
	res.Body = data

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		Body:       truncate(string(data), 512),
	}
}

func classifyTransport(parent, attemptCtx context.Context, req Request, err error) error {
	op := req.Method + " " + req.URL
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return errs.Timeout(op, err)
	}
	return errs.Network(op, err)
}

// NextDelay is the wait before the attempt that follows failed attempt n
// (1-based). A Retry-After carried by err replaces the computed backoff.
func (c *Client) NextDelay(n int, err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter
	}
	d := Backoff(n, c.cfg.BaseDelay, c.cfg.MaxDelay)
	return d + time.Duration(float64(d)*c.cfg.Jitter*c.cfg.Rand())
}

// Backoff returns min(max, base*2^(n-1)) for failed attempt n.
func Backoff(n int, base, max time.Duration) time.Duration {
	if n < 1 {
		n = 1
	}
	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
