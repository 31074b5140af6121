package providers

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/trigger"
)

const (
	OllamaEmbedderName      = "ollama"
	ollamaDefaultEmbedModel = "nomic-embed-text"
	ollamaDefaultEmbedDims  = 768
)

// OllamaEmbedderConfig configures a local Ollama embedder.
type OllamaEmbedderConfig struct {
	ServerURL  string
	Model      string
	Dimensions int
	Retry      *trigger.Client
}

// OllamaEmbedder implements Embedder through langchaingo's Ollama client.
type OllamaEmbedder struct {
	llm   *ollama.LLM
	model string
	dims  int
	retry *trigger.Client
}

// NewOllamaEmbedder creates an embedder. It does not contact the server.
func NewOllamaEmbedder(cfg OllamaEmbedderConfig) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultEmbedModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = ollamaDefaultEmbedDims
	}
	if cfg.Retry == nil {
		cfg.Retry = trigger.New(trigger.Config{})
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &OllamaEmbedder{llm: llm, model: cfg.Model, dims: cfg.Dimensions, retry: cfg.Retry}, nil
}

func (e *OllamaEmbedder) Name() string    { return OllamaEmbedderName }
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.retry.Retry(ctx, "ollama.embeddings", func(ctx context.Context) error {
		vecs, err := e.llm.CreateEmbedding(ctx, texts)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) {
				return errs.Network("ollama", err)
			}
			return errs.External("ollama", err)
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(out) != len(texts) {
		return nil, errs.E(errs.KindExternal, "ollama.embeddings",
			fmt.Sprintf("got %d embeddings for %d inputs", len(out), len(texts)), nil)
	}
	return out, nil
}
