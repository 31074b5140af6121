package trigger

import (
	"context"
	"strings"
)

// ProcessRequest is the body of a processing trigger.
type ProcessRequest struct {
	BookID string `json:"book_id"`
	Force  bool   `json:"force,omitempty"`
}

// ProcessPath is where the server accepts processing triggers.
const ProcessPath = "/api/process"

// TriggerProcessing asks the server at baseURL to start processing a book.
// key may be empty, in which case one is generated and reused across attempts.
func (c *Client) TriggerProcessing(ctx context.Context, baseURL, bookID string, force bool, key string) *Result {
	url := strings.TrimRight(baseURL, "/") + ProcessPath
	return c.PostJSON(ctx, url, ProcessRequest{BookID: bookID, Force: force}, key)
}
