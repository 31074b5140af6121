package providers

import (
	"context"
	"testing"
)

func TestRegistry(t *testing.T) {
	t.Run("delegates to active clients", func(t *testing.T) {
		mock := NewMockClient()
		mock.ResponseText = "hello"
		r := NewRegistry(mock, NewMockEmbedder(4))

		res, err := r.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if res.Content != "hello" {
			t.Errorf("Content = %q, want hello", res.Content)
		}

		vecs, err := r.Embed(context.Background(), []string{"a", "b"})
		if err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
		if len(vecs) != 2 || len(vecs[0]) != 4 {
			t.Errorf("Embed() shape = %d x %d, want 2 x 4", len(vecs), len(vecs[0]))
		}
		if r.Dimensions() != 4 {
			t.Errorf("Dimensions() = %d, want 4", r.Dimensions())
		}
	})

	t.Run("empty registry errors", func(t *testing.T) {
		r := NewRegistry(nil, nil)
		if _, err := r.Chat(context.Background(), &ChatRequest{}); err == nil {
			t.Error("expected error without LLM client")
		}
		if _, err := r.Embed(context.Background(), []string{"x"}); err == nil {
			t.Error("expected error without embedder")
		}
	})

	t.Run("from config", func(t *testing.T) {
		r, err := NewRegistryFromConfig(RegistryConfig{
			LLM:        LLMProviderConfig{Type: "openrouter", APIKey: "k", Model: "m"},
			Embeddings: EmbedderProviderConfig{Type: "openai", APIKey: "k", Dimensions: 256},
		})
		if err != nil {
			t.Fatalf("NewRegistryFromConfig() error = %v", err)
		}
		if r.LLM().Name() != OpenRouterName {
			t.Errorf("LLM = %s, want %s", r.LLM().Name(), OpenRouterName)
		}
		if r.Dimensions() != 256 {
			t.Errorf("Dimensions() = %d, want 256", r.Dimensions())
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewRegistryFromConfig(RegistryConfig{LLM: LLMProviderConfig{Type: "carrier-pigeon"}})
		if err == nil {
			t.Error("expected error for unknown provider type")
		}
	})

	t.Run("reload swaps changed providers", func(t *testing.T) {
		cfg := RegistryConfig{
			LLM:        LLMProviderConfig{Type: "openrouter", Model: "a"},
			Embeddings: EmbedderProviderConfig{Type: "mock", Dimensions: 8},
		}
		r, err := NewRegistryFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewRegistryFromConfig() error = %v", err)
		}
		before := r.LLM()
		embBefore := r.Embedder()

		cfg.LLM.Model = "b"
		if err := r.Reload(cfg); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		if r.LLM() == before {
			t.Error("LLM client not replaced after model change")
		}
		if r.Embedder() != embBefore {
			t.Error("embedder replaced although unchanged")
		}
	})

	t.Run("reload keeps embedder when dimensions change", func(t *testing.T) {
		cfg := RegistryConfig{
			LLM:        LLMProviderConfig{Type: "mock"},
			Embeddings: EmbedderProviderConfig{Type: "mock", Dimensions: 8},
		}
		r, err := NewRegistryFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewRegistryFromConfig() error = %v", err)
		}
		cfg.Embeddings.Dimensions = 16
		if err := r.Reload(cfg); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		if r.Dimensions() != 8 {
			t.Errorf("Dimensions() = %d, want 8", r.Dimensions())
		}
	})
}
