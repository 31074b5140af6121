// Package answer holds the prompts used to compose grounded answers.
package answer

import (
	_ "embed"

	"github.com/jackzampolin/lectern/internal/prompts"
)

//go:embed tutor.tmpl
var tutorPrompt string

//go:embed tutor_child.tmpl
var tutorChildPrompt string

//go:embed persona.tmpl
var personaPrompt string

//go:embed persona_child.tmpl
var personaChildPrompt string

//go:embed user.tmpl
var userPrompt string

// Prompt keys
const (
	TutorKey        = "answer.tutor.system"
	TutorChildKey   = "answer.tutor.system_child"
	PersonaKey      = "answer.persona.system"
	PersonaChildKey = "answer.persona.system_child"
	UserKey         = "answer.user"
)

// SystemData fills the system prompts.
type SystemData struct {
	Title    string
	Author   string
	AgeGroup string

	// Persona mode only.
	Name             string
	ShortDescription string
	Persona          string
	ExamplePhrases   []string
}

// Excerpt is one labelled passage.
type Excerpt struct {
	Label   string
	Content string
}

// UserData fills the user prompt.
type UserData struct {
	Excerpts []Excerpt
	Question string
}

// SystemKey picks the system prompt for a mode and audience.
func SystemKey(persona, child bool) string {
	switch {
	case persona && child:
		return PersonaChildKey
	case persona:
		return PersonaKey
	case child:
		return TutorChildKey
	}
	return TutorKey
}

// RegisterPrompts registers the answer prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         TutorKey,
		Text:        tutorPrompt,
		Description: "Tutor answer system prompt",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         TutorChildKey,
		Text:        tutorChildPrompt,
		Description: "Tutor answer system prompt for children's books",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         PersonaKey,
		Text:        personaPrompt,
		Description: "Character chat system prompt",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         PersonaChildKey,
		Text:        personaChildPrompt,
		Description: "Character chat system prompt for children's books",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserKey,
		Text:        userPrompt,
		Description: "Answer user prompt with excerpts and question",
	})
}
