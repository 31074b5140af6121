package dedup

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testLocker(t *testing.T, l Locker) {
	ctx := context.Background()
	key := "book-" + uuid.NewString()

	release, ok, err := l.Acquire(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v; want lock", ok, err)
	}

	_, ok, err = l.Acquire(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if ok {
		t.Fatal("second Acquire() succeeded while lock held")
	}

	release()
	release2, ok, _ := l.Acquire(ctx, key, time.Minute)
	if !ok {
		t.Fatal("Acquire() after release failed")
	}
	release2()
}

func testResponses(t *testing.T, r Responses) {
	ctx := context.Background()
	key := uuid.NewString()

	if _, ok, err := r.Get(ctx, key); ok || err != nil {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}
	want := &Response{StatusCode: 202, Body: []byte(`{"job_id":"j1"}`), Fingerprint: "fp"}
	if err := r.Put(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.StatusCode != 202 || string(got.Body) != string(want.Body) || got.Fingerprint != "fp" {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestMemoryLocker(t *testing.T) {
	testLocker(t, NewMemoryLocker())

	t.Run("expires", func(t *testing.T) {
		l := NewMemoryLocker()
		_, ok, _ := l.Acquire(context.Background(), "k", 10*time.Millisecond)
		if !ok {
			t.Fatal("Acquire() failed")
		}
		time.Sleep(20 * time.Millisecond)
		if _, ok, _ := l.Acquire(context.Background(), "k", time.Minute); !ok {
			t.Error("expired lock still held")
		}
	})

	t.Run("stale release keeps new holder", func(t *testing.T) {
		l := NewMemoryLocker()
		release, _, _ := l.Acquire(context.Background(), "k", 10*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		_, ok, _ := l.Acquire(context.Background(), "k", time.Minute)
		if !ok {
			t.Fatal("Acquire() failed")
		}
		release()
		if _, ok, _ := l.Acquire(context.Background(), "k", time.Minute); ok {
			t.Error("stale release freed another holder's lock")
		}
	})
}

func TestMemoryResponses(t *testing.T) {
	testResponses(t, NewMemoryResponses())
}

func TestRedis(t *testing.T) {
	url := os.Getenv("LECTERN_TEST_REDIS_URL")
	if url == "" || testing.Short() {
		t.Skip("LECTERN_TEST_REDIS_URL not set")
	}
	r, err := NewRedis(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer r.Close()

	t.Run("locker", func(t *testing.T) { testLocker(t, r) })
	t.Run("responses", func(t *testing.T) { testResponses(t, r) })
}
