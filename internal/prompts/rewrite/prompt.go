// Package rewrite holds the prompts that turn chat messages into search
// queries.
package rewrite

import (
	_ "embed"

	"github.com/jackzampolin/lectern/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed system_child.tmpl
var systemChildPrompt string

//go:embed user.tmpl
var userPrompt string

// Prompt keys
const (
	SystemKey      = "query.rewrite.system"
	SystemChildKey = "query.rewrite.system_child"
	UserKey        = "query.rewrite.user"
)

// SystemData fills the system prompts.
type SystemData struct {
	Title     string
	Category  string
	Character string
	Persona   string
}

// Turn is a prior chat message.
type Turn struct {
	Role    string
	Content string
}

// UserData fills the user prompt.
type UserData struct {
	History []Turn
	Message string
}

// RegisterPrompts registers the rewrite prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemKey,
		Text:        systemPrompt,
		Description: "Query rewrite system prompt",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemChildKey,
		Text:        systemChildPrompt,
		Description: "Query rewrite system prompt for children's books",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserKey,
		Text:        userPrompt,
		Description: "Query rewrite user prompt with trimmed history",
	})
}
