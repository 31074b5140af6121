package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/trigger"
)

type fakeSigner struct {
	base string
	keys []string
	ttls []time.Duration
}

func (f *fakeSigner) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.keys = append(f.keys, key)
	f.ttls = append(f.ttls, ttl)
	return f.base + "/" + key + "?sig=abc", nil
}

func TestKeys(t *testing.T) {
	if got := DocumentKey("b1"); got != "b1/b1.pdf" {
		t.Errorf("DocumentKey() = %q", got)
	}
	if got := CoverKey("b1"); got != "b1/cover.jpg" {
		t.Errorf("CoverKey() = %q", got)
	}
}

func TestLoader_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/b1/b1.pdf" && r.URL.Query().Get("sig") == "abc" {
			w.Write([]byte("%PDF-1.4"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	signer := &fakeSigner{base: srv.URL}
	l := &Loader{
		Signer: signer,
		HTTP:   trigger.New(trigger.Config{BaseDelay: time.Millisecond}),
		TTL:    DefaultSignedURLTTL,
	}

	data, err := l.Load(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("data = %q", data)
	}
	if signer.ttls[0] != 60*time.Second {
		t.Errorf("ttl = %v, want 60s", signer.ttls[0])
	}

	if _, err := l.Load(context.Background(), "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want not found", err)
	}
}

func TestLoader_LoadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := &Loader{
		Signer: &fakeSigner{base: srv.URL},
		HTTP:   trigger.New(trigger.Config{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	}
	_, err := l.Load(context.Background(), "b1")
	if !errors.Is(err, errs.ErrExternal) {
		t.Errorf("Load() error = %v, want external", err)
	}
}

// seqSigner issues a new signature on every call.
type seqSigner struct {
	base  string
	calls int
}

func (s *seqSigner) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.calls++
	return fmt.Sprintf("%s/%s?sig=%d", s.base, key, s.calls), nil
}

func TestLoader_ResignsEachAttempt(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig := r.URL.Query().Get("sig")
		seen = append(seen, sig)
		if sig == "1" {
			// first signature has expired by the time it is used
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	signer := &seqSigner{base: srv.URL}
	l := &Loader{
		Signer: signer,
		HTTP:   trigger.New(trigger.Config{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	}
	data, err := l.Load(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("data = %q", data)
	}
	if signer.calls != 2 {
		t.Errorf("signed %d times, want 2", signer.calls)
	}
	if len(seen) != 2 || seen[0] != "1" || seen[1] != "2" {
		t.Errorf("signatures used = %v, want [1 2]", seen)
	}
}

func TestNewMinio_Validation(t *testing.T) {
	if _, err := NewMinio(Config{}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("NewMinio() error = %v, want validation", err)
	}
}
