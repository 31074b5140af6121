package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/lectern/internal/errs"
)

func fastClient(t *testing.T) *Client {
	t.Helper()
	return New(Config{
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Rand:        func() float64 { return 0 },
	})
}

func TestBackoff(t *testing.T) {
	base, max := 500*time.Millisecond, 5*time.Second
	tests := []struct {
		n    int
		want time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second},
		{12, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.n, base, max); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestNextDelay(t *testing.T) {
	t.Run("jitter bounded by thirty percent", func(t *testing.T) {
		c := New(Config{Rand: func() float64 { return 0.999 }})
		got := c.NextDelay(2, errors.New("x"))
		lo, hi := time.Second, time.Second+300*time.Millisecond
		if got < lo || got > hi {
			t.Errorf("NextDelay(2) = %v, want within [%v, %v]", got, lo, hi)
		}
	})

	t.Run("retry-after overrides backoff", func(t *testing.T) {
		c := New(Config{Rand: func() float64 { return 0.5 }})
		err := &StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 2 * time.Second}
		if got := c.NextDelay(1, err); got != 2*time.Second {
			t.Errorf("NextDelay() = %v, want 2s", got)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if got := ParseRetryAfter("2", now); got != 2*time.Second {
		t.Errorf("ParseRetryAfter(2) = %v, want 2s", got)
	}
	if got := ParseRetryAfter("", now); got != 0 {
		t.Errorf("ParseRetryAfter(empty) = %v, want 0", got)
	}
	if got := ParseRetryAfter("soon", now); got != 0 {
		t.Errorf("ParseRetryAfter(soon) = %v, want 0", got)
	}
	date := now.Add(3 * time.Second).Format(http.TimeFormat)
	if got := ParseRetryAfter(date, now); got != 3*time.Second {
		t.Errorf("ParseRetryAfter(date) = %v, want 3s", got)
	}
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var keys []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(IdempotencyHeader))
		mu.Unlock()
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res := fastClient(t).PostJSON(context.Background(), srv.URL, map[string]string{"a": "b"}, "")
	if !res.OK {
		t.Fatalf("OK = false, err = %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Errorf("StatusCode = %d, want %d", res.StatusCode, http.StatusAccepted)
	}
	if res.IdempotencyKey == "" {
		t.Fatal("IdempotencyKey is empty")
	}
	for i, k := range keys {
		if k != res.IdempotencyKey {
			t.Errorf("attempt %d key = %q, want %q", i+1, k, res.IdempotencyKey)
		}
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	res := fastClient(t).Get(context.Background(), srv.URL)
	if res.OK {
		t.Fatal("OK = true, want false")
	}
	if res.Attempts != 3 || calls.Load() != 3 {
		t.Errorf("Attempts = %d, calls = %d, want 3", res.Attempts, calls.Load())
	}
	if res.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", res.StatusCode, http.StatusBadGateway)
	}
	if string(res.Body) != "upstream down" {
		t.Errorf("Body = %q", res.Body)
	}
	if !errors.Is(res.Err, errs.ErrExternal) {
		t.Errorf("Err = %v, want external", res.Err)
	}
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := fastClient(t).Get(context.Background(), srv.URL)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if !errors.Is(res.Err, errs.ErrNotFound) {
		t.Errorf("Err = %v, want not found", res.Err)
	}
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	var first, second time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			first = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		second = time.Now()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := fastClient(t).Get(context.Background(), srv.URL)
	if !res.OK {
		t.Fatalf("OK = false, err = %v", res.Err)
	}
	if gap := second.Sub(first); gap < 900*time.Millisecond {
		t.Errorf("gap between attempts = %v, want about 1s", gap)
	}
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{
		Timeout:     20 * time.Millisecond,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Rand:        func() float64 { return 0 },
	})
	res := c.Get(context.Background(), srv.URL)
	if res.OK {
		t.Fatal("OK = true, want false")
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if !errors.Is(res.Err, errs.ErrTimeout) {
		t.Errorf("Err = %v, want timeout", res.Err)
	}
}

func TestTriggerProcessing(t *testing.T) {
	var got ProcessRequest
	var auth, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ProcessPath {
			t.Errorf("path = %q, want %q", r.URL.Path, ProcessPath)
		}
		auth = r.Header.Get("Authorization")
		key = r.Header.Get(IdempotencyHeader)
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(Config{BearerToken: "secret"})
	res := c.TriggerProcessing(context.Background(), srv.URL+"/", "book-1", true, "key-1")
	if !res.OK {
		t.Fatalf("OK = false, err = %v", res.Err)
	}
	if got.BookID != "book-1" || !got.Force {
		t.Errorf("body = %+v", got)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if key != "key-1" {
		t.Errorf("Idempotency-Key = %q, want key-1", key)
	}
}

func TestRetry_StatusErrors(t *testing.T) {
	c := fastClient(t)
	var calls int
	err := c.Retry(context.Background(), "embed", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &StatusError{StatusCode: http.StatusTooManyRequests}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	calls = 0
	err = c.Retry(context.Background(), "embed", func(ctx context.Context) error {
		calls++
		return &StatusError{StatusCode: http.StatusBadRequest}
	})
	if err == nil || calls != 1 {
		t.Errorf("Retry() err = %v, calls = %d, want error after 1 call", err, calls)
	}
}

func TestDo_ResolveURL(t *testing.T) {
	t.Run("resolved before every attempt", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(r.URL.Query().Get("n")))
		}))
		defer srv.Close()

		var resolved atomic.Int32
		res := fastClient(t).Do(context.Background(), Request{
			ResolveURL: func(ctx context.Context) (string, error) {
				n := resolved.Add(1)
				return srv.URL + "/doc?n=" + string(rune('0'+n)), nil
			},
		})
		if !res.OK {
			t.Fatalf("OK = false, err = %v", res.Err)
		}
		if resolved.Load() != 2 || string(res.Body) != "2" {
			t.Errorf("resolved %d times, body %q; want 2 and \"2\"", resolved.Load(), res.Body)
		}
	})

	t.Run("resolve failure is not retried", func(t *testing.T) {
		res := fastClient(t).Do(context.Background(), Request{
			ResolveURL: func(ctx context.Context) (string, error) {
				return "", errs.NotFound("sign", "object missing")
			},
		})
		if res.OK || !errors.Is(res.Err, errs.ErrNotFound) {
			t.Errorf("Result = %+v, want not found", res)
		}
		if res.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", res.Attempts)
		}
	})
}
