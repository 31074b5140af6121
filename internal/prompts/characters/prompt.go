// Package characters holds the persona extraction prompts and the schema
// each extracted persona must satisfy.
package characters

import (
	_ "embed"
	"encoding/json"

	"github.com/jackzampolin/lectern/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPrompt string

// Prompt keys
const (
	SystemKey = "personas.extract.system"
	UserKey   = "personas.extract.user"
)

// SystemData fills the system prompt.
type SystemData struct {
	MaxPersonas int
}

// UserData fills the user prompt.
type UserData struct {
	Title       string
	Author      string
	Description string
	Excerpts    []string
}

// PersonaSchema validates a single extracted persona.
var PersonaSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1, "pattern": "\\S"},
		"role": {"type": "string"},
		"persona": {"type": "string", "minLength": 1},
		"example_phrases": {
			"type": "array",
			"items": {"type": "string"}
		}
	},
	"required": ["name", "persona"]
}`)

// RegisterPrompts registers the persona extraction prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemKey,
		Text:        systemPrompt,
		Description: "Persona extraction system prompt",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserKey,
		Text:        userPrompt,
		Description: "Persona extraction user prompt with opening excerpts",
	})
}
