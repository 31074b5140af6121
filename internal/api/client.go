package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackzampolin/lectern/internal/trigger"
)

// Client is an HTTP client for the lectern API. Requests go through the
// shared retry policy, so transient server errors are retried and POSTs
// carry an Idempotency-Key that is reused across attempts.
type Client struct {
	baseURL string
	http    *trigger.Client
}

// globalToken is set by the root command's --token flag.
var globalToken string

// SetAuthToken sets the bearer token sent by clients from NewClient.
func SetAuthToken(token string) {
	globalToken = token
}

// NewClient creates a new API client using the global auth token.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    trigger.New(trigger.Config{BearerToken: globalToken}),
	}
}

// NewClientWith creates a client around an existing retry client.
func NewClientWith(baseURL string, http *trigger.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http}
}

// Get performs a GET request and decodes the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.handle(c.http.Get(ctx, c.baseURL+path), result)
}

// Post performs a POST request with JSON body and decodes the response.
// An empty key gets a generated one.
func (c *Client) Post(ctx context.Context, path string, body any, key string, result any) error {
	if body == nil {
		body = struct{}{}
	}
	return c.handle(c.http.PostJSON(ctx, c.baseURL+path, body, key), result)
}

// Put performs a PUT request with JSON body and decodes the response.
func (c *Client) Put(ctx context.Context, path string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	res := c.http.Do(ctx, trigger.Request{Method: http.MethodPut, URL: c.baseURL + path, Body: data, Header: header})
	return c.handle(res, result)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.handle(c.http.Do(ctx, trigger.Request{Method: http.MethodDelete, URL: c.baseURL + path}), nil)
}

func (c *Client) handle(res *trigger.Result, result any) error {
	if !res.OK {
		if res.StatusCode >= 400 {
			var errResp ErrorResponse
			if json.Unmarshal(res.Body, &errResp) == nil && errResp.Error != "" {
				return fmt.Errorf("server error (%d): %s", res.StatusCode, errResp.Error)
			}
			return fmt.Errorf("server error (%d): %s", res.StatusCode, string(res.Body))
		}
		return fmt.Errorf("request failed after %d attempts: %w", res.Attempts, res.Err)
	}
	if result != nil && len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ErrorResponse matches the server's error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Process posts a processing trigger for bookID. An empty key gets a
// generated one that is reused across retries.
func (c *Client) Process(ctx context.Context, bookID string, force bool, key string, result any) error {
	return c.handle(c.http.TriggerProcessing(ctx, c.baseURL, bookID, force, key), result)
}
