package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/trigger"
)

const (
	OpenAIEmbedderName      = "openai"
	openAIDefaultEmbedModel = string(openai.EmbeddingModelTextEmbedding3Small)
	openAIDefaultEmbedDims  = 1536
	openAIMaxInputsPerBatch = 2048
)

// OpenAIEmbedderConfig configures an OpenAI-compatible embeddings client.
// Retries go through Retry; the SDK's own retries are disabled.
type OpenAIEmbedderConfig struct {
	APIKey     string
	BaseURL    string // Optional, for compatible APIs and tests
	Model      string
	Dimensions int
	HTTPClient *http.Client
	Retry      *trigger.Client
}

// OpenAIEmbedder implements Embedder with the official OpenAI SDK.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dims   int
	retry  *trigger.Client
}

// NewOpenAIEmbedder creates an embedder.
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultEmbedModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = openAIDefaultEmbedDims
	}
	if cfg.Retry == nil {
		cfg.Retry = trigger.New(trigger.Config{})
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
		retry:  cfg.Retry,
	}
}

func (e *OpenAIEmbedder) Name() string    { return OpenAIEmbedderName }
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// Embed sends texts in one request per 2048 inputs.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIMaxInputsPerBatch {
		end := min(start+openAIMaxInputsPerBatch, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.model != string(openai.EmbeddingModelTextEmbeddingAda002) {
		params.Dimensions = openai.Int(int64(e.dims))
	}

	var resp *openai.CreateEmbeddingResponse
	err := e.retry.Retry(ctx, "openai.embeddings", func(ctx context.Context) error {
		r, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			return mapOpenAIError(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, errs.E(errs.KindExternal, "openai.embeddings",
			fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Data), len(texts)), nil)
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// mapOpenAIError converts SDK errors into trigger status errors so the
// shared policy can classify them.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		se := &trigger.StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		if apiErr.Response != nil {
			se.RetryAfter = trigger.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"), time.Now())
		}
		return se
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errs.Network("openai", err)
}
