package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackzampolin/lectern/internal/trigger"
)

// Registry holds the active chat client and embedder. It implements both
// LLMClient and Embedder by delegation, so holders keep working across
// config reloads.
type Registry struct {
	mu       sync.RWMutex
	llm      LLMClient
	embedder Embedder
	cfg      RegistryConfig
	logger   *slog.Logger
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLM        LLMProviderConfig
	Embeddings EmbedderProviderConfig

	// HTTP carries the shared retry policy into every provider.
	HTTP *trigger.Client `json:"-"`
}

// LLMProviderConfig is config.LLMConfig with the API key resolved.
type LLMProviderConfig struct {
	Type    string // "openrouter"
	Model   string
	APIKey  string
	BaseURL string
	RPM     int
}

// EmbedderProviderConfig is config.EmbeddingsConfig with the API key resolved.
type EmbedderProviderConfig struct {
	Type       string // "openai", "ollama"
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewRegistry creates a registry around existing clients.
func NewRegistry(llm LLMClient, embedder Embedder) *Registry {
	return &Registry{llm: llm, embedder: embedder, logger: slog.Default()}
}

// NewRegistryFromConfig creates a registry with providers built from cfg.
func NewRegistryFromConfig(cfg RegistryConfig) (*Registry, error) {
	llm, err := createLLMClient(cfg.LLM, cfg.HTTP)
	if err != nil {
		return nil, err
	}
	embedder, err := createEmbedder(cfg.Embeddings, cfg.HTTP)
	if err != nil {
		return nil, err
	}
	r := NewRegistry(llm, embedder)
	r.cfg = cfg
	return r, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Reload rebuilds providers whose settings changed. The embedder is kept
// when the new config would change vector dimensions, since stored
// embeddings would no longer be comparable.
func (r *Registry) Reload(cfg RegistryConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.HTTP == nil {
		cfg.HTTP = r.cfg.HTTP
	}

	if cfg.LLM != r.cfg.LLM || r.llm == nil {
		llm, err := createLLMClient(cfg.LLM, cfg.HTTP)
		if err != nil {
			return err
		}
		r.llm = llm
		r.logger.Info("updated LLM client", "type", cfg.LLM.Type, "model", cfg.LLM.Model)
	}

	if cfg.Embeddings != r.cfg.Embeddings || r.embedder == nil {
		embedder, err := createEmbedder(cfg.Embeddings, cfg.HTTP)
		if err != nil {
			return err
		}
		if r.embedder != nil && embedder.Dimensions() != r.embedder.Dimensions() {
			r.logger.Warn("ignoring embedder change with different dimensions",
				"current", r.embedder.Dimensions(), "new", embedder.Dimensions())
			cfg.Embeddings = r.cfg.Embeddings
		} else {
			r.embedder = embedder
			r.logger.Info("updated embedder", "type", cfg.Embeddings.Type, "model", cfg.Embeddings.Model)
		}
	}

	r.cfg = cfg
	return nil
}

// LLM returns the active chat client.
func (r *Registry) LLM() LLMClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm
}

// Embedder returns the active embedder.
func (r *Registry) Embedder() Embedder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.embedder
}

// Chat delegates to the active chat client.
func (r *Registry) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	llm := r.LLM()
	if llm == nil {
		return nil, fmt.Errorf("no LLM client configured")
	}
	return llm.Chat(ctx, req)
}

// Embed delegates to the active embedder.
func (r *Registry) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e := r.Embedder()
	if e == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	return e.Embed(ctx, texts)
}

// Dimensions reports the active embedder's vector length.
func (r *Registry) Dimensions() int {
	if e := r.Embedder(); e != nil {
		return e.Dimensions()
	}
	return 0
}

// Name returns the registry identifier.
func (r *Registry) Name() string {
	return "registry"
}

func createLLMClient(cfg LLMProviderConfig, http *trigger.Client) (LLMClient, error) {
	switch cfg.Type {
	case "", OpenRouterName:
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			RPM:          cfg.RPM,
			HTTP:         http,
		}), nil
	case MockClientName:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider type: %s", cfg.Type)
	}
}

func createEmbedder(cfg EmbedderProviderConfig, http *trigger.Client) (Embedder, error) {
	switch cfg.Type {
	case "", OpenAIEmbedderName:
		return NewOpenAIEmbedder(OpenAIEmbedderConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Retry:      http,
		}), nil
	case OllamaEmbedderName:
		return NewOllamaEmbedder(OllamaEmbedderConfig{
			ServerURL:  cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Retry:      http,
		})
	case MockClientName:
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider type: %s", cfg.Type)
	}
}

var (
	_ LLMClient = (*Registry)(nil)
	_ Embedder  = (*Registry)(nil)
)
