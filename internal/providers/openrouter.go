package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/trigger"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	// RPM caps requests per minute (default: 600).
	RPM int
	// HTTP sends requests and owns the retry policy. Defaults to a client
	// with trigger's defaults.
	HTTP *trigger.Client
}

// OpenRouterClient implements LLMClient using the OpenRouter API.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	rpm          int
	http         *trigger.Client
	limiter      *RateLimiter
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "openai/gpt-4o-mini"
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 600
	}
	if cfg.HTTP == nil {
		cfg.HTTP = trigger.New(trigger.Config{Timeout: 120 * time.Second})
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		http:         cfg.HTTP,
		limiter:      NewRateLimiter(cfg.RPM),
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Chat sends a chat completion request.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	orReq := openRouterRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Usage:       &openRouterUsageRequest{Include: true},
	}
	if req.ResponseFormat != nil {
		orReq.ResponseFormat = &openRouterResponseFormat{
			Type:       req.ResponseFormat.Type,
			JSONSchema: req.ResponseFormat.JSONSchema,
		}
	}
	body, err := json.Marshal(orReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("HTTP-Referer", "https://github.com/jackzampolin/lectern")
	header.Set("X-Title", "Lectern")

	res := c.http.Do(ctx, trigger.Request{
		Method:         http.MethodPost,
		URL:            c.baseURL + "/chat/completions",
		Body:           body,
		Header:         header,
		IdempotencyKey: requestID,
	})
	if res.StatusCode == http.StatusTooManyRequests {
		c.limiter.Record429(trigger.ParseRetryAfter(res.Header.Get("Retry-After"), time.Now()))
	}
	if !res.OK {
		return nil, fmt.Errorf("openrouter request failed after %d attempts: %w", res.Attempts, res.Err)
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(res.Body, &orResp); err != nil {
		return nil, errs.E(errs.KindExternal, "openrouter.Chat", "failed to unmarshal response", err)
	}
	if orResp.Error != nil {
		return nil, errs.E(errs.KindExternal, "openrouter.Chat",
			fmt.Sprintf("API error (code %v): %s", orResp.Error.Code, orResp.Error.Message), nil)
	}
	if len(orResp.Choices) == 0 {
		return nil, errs.E(errs.KindExternal, "openrouter.Chat", "no choices in response", nil)
	}

	content := ""
	switch v := orResp.Choices[0].Message.Content.(type) {
	case nil:
	case string:
		content = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal content: %w", err)
		}
		content = string(b)
	}

	return &ChatResult{
		Content:          content,
		PromptTokens:     orResp.Usage.PromptTokens,
		CompletionTokens: orResp.Usage.CompletionTokens,
		TotalTokens:      orResp.Usage.TotalTokens,
		CostUSD:          orResp.Usage.Cost,
		ExecutionTime:    time.Since(start),
		Provider:         OpenRouterName,
		ModelUsed:        orResp.Model,
		RequestID:        requestID,
		Attempts:         res.Attempts,
	}, nil
}
