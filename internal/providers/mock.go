package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MockClientName   = "mock"
	MockEmbedderName = "mock-embedder"
)

// MockClient is an LLMClient for testing.
type MockClient struct {
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// Respond, when set, produces the content for each request and
	// overrides ResponseText.
	Respond func(req *ChatRequest) (string, error)

	requestCount atomic.Int64

	mu       sync.Mutex
	requests []ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{ResponseText: "mock response"}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat records req and returns the configured response.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	if c.ShouldFail {
		return nil, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	content := c.ResponseText
	if c.Respond != nil {
		var err error
		content, err = c.Respond(req)
		if err != nil {
			return nil, err
		}
	}

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	completionTokens := len(content) / 4

	return &ChatResult{
		Content:          content,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		ExecutionTime:    time.Since(start),
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        fmt.Sprintf("mock-%d", count),
		Attempts:         1,
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every request received.
func (c *MockClient) Requests() []ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatRequest(nil), c.requests...)
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	req := c.requests[len(c.requests)-1]
	return &req
}

// Reset clears recorded requests.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// MockEmbedder is an Embedder returning deterministic unit vectors derived
// from a hash of each text.
type MockEmbedder struct {
	Dims int

	// FailOn makes Embed fail when any input contains this substring.
	FailOn string
	// ShortBy drops this many vectors from each response.
	ShortBy int

	calls atomic.Int64
}

// NewMockEmbedder creates a mock embedder with the given dimensionality.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 8
	}
	return &MockEmbedder{Dims: dims}
}

func (e *MockEmbedder) Name() string    { return MockEmbedderName }
func (e *MockEmbedder) Dimensions() int { return e.Dims }

// Calls returns the number of Embed calls.
func (e *MockEmbedder) Calls() int64 { return e.calls.Load() }

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if e.FailOn != "" && strings.Contains(t, e.FailOn) {
			return nil, fmt.Errorf("mock embedder refused input")
		}
		out = append(out, HashVector(t, e.Dims))
	}
	if e.ShortBy > 0 {
		out = out[:max(0, len(out)-e.ShortBy)]
	}
	return out, nil
}

// HashVector derives a normalized vector from text. Equal texts give equal
// vectors.
func HashVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	var norm float64
	for i := range vec {
		h := fnv.New64a()
		fmt.Fprintf(h, "%d:%s", i, text)
		v := float64(h.Sum64()%2001)/1000.0 - 1.0
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

var (
	_ LLMClient = (*MockClient)(nil)
	_ Embedder  = (*MockEmbedder)(nil)
)
