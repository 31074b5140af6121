package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jackzampolin/lectern/internal/errs"
)

func embeddingsHandler(t *testing.T, calls *atomic.Int32, failFirst int, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if int(n) <= failFirst {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"try later","type":"server_error"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		// Return data out of order to exercise index sorting.
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(i), 0.5, -0.5},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	t.Run("returns vectors in input order", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(embeddingsHandler(t, &calls, 0, 0))
		defer server.Close()

		e := NewOpenAIEmbedder(OpenAIEmbedderConfig{
			APIKey:     "k",
			BaseURL:    server.URL,
			Dimensions: 3,
			Retry:      fastHTTP(),
		})
		vecs, err := e.Embed(context.Background(), []string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
		if len(vecs) != 3 {
			t.Fatalf("len(vecs) = %d, want 3", len(vecs))
		}
		for i, v := range vecs {
			if v[0] != float32(i) {
				t.Errorf("vecs[%d][0] = %v, want %d", i, v[0], i)
			}
		}
	})

	t.Run("retries 503 once then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(embeddingsHandler(t, &calls, 1, http.StatusServiceUnavailable))
		defer server.Close()

		e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "k", BaseURL: server.URL, Retry: fastHTTP()})
		if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("calls = %d, want 2", calls.Load())
		}
	})

	t.Run("bad request is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(embeddingsHandler(t, &calls, 10, http.StatusBadRequest))
		defer server.Close()

		e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "k", BaseURL: server.URL, Retry: fastHTTP()})
		_, err := e.Embed(context.Background(), []string{"a"})
		if !errors.Is(err, errs.ErrValidation) {
			t.Errorf("error = %v, want validation", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(16)
	vecs, err := e.Embed(context.Background(), []string{"same", "same", "other"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	for i := range vecs[0] {
		if vecs[0][i] != vecs[1][i] {
			t.Fatal("equal texts should give equal vectors")
		}
	}
	if len(vecs[2]) != 16 {
		t.Errorf("len = %d, want 16", len(vecs[2]))
	}

	e.FailOn = "boom"
	if _, err := e.Embed(context.Background(), []string{"ok", "boom"}); err == nil {
		t.Error("expected failure")
	}
}
