// Package prompts provides prompt management with embedded defaults and
// book-level overrides.
//
// Embedded .tmpl files are the source of truth for defaults. Overrides are
// held in memory and replace a default for one book.
//
// Resolution order for a specific book:
//  1. Book override (if set)
//  2. Embedded default
package prompts

import "time"

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   `json:"key"`         // Hierarchical key: answer.tutor.system
	Text        string   `json:"text"`        // The prompt text (Go template)
	Description string   `json:"description"` // Human-readable description
	Variables   []string `json:"variables"`   // Extracted template variables
	Hash        string   `json:"hash"`        // SHA256 hash of the text for change detection
}

// BookOverride replaces a prompt for one book.
type BookOverride struct {
	BookID    string    `json:"book_id"`
	PromptKey string    `json:"prompt_key"`
	Text      string    `json:"text"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResolvedPrompt is the result of resolving a prompt for a specific book.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	Hash       string   `json:"hash"`
}
