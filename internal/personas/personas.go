// Package personas extracts character personas from the opening chunks of
// fiction and children's books.
package personas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/lectern/internal/prompts"
	"github.com/jackzampolin/lectern/internal/prompts/characters"
	"github.com/jackzampolin/lectern/internal/providers"
	"github.com/jackzampolin/lectern/internal/store"
)

const (
	DefaultSampleChunks = 5
	DefaultMaxPersonas  = 8
	DefaultTemperature  = 0.4

	maxExamplePhrases = 5
)

// Persona is one parsed element of the model's output.
type Persona struct {
	Name           string   `json:"name"`
	Role           string   `json:"role"`
	Persona        string   `json:"persona"`
	ExamplePhrases []string `json:"example_phrases"`
}

// Config configures an Extractor.
type Config struct {
	SampleChunks int
	MaxPersonas  int
	Model        string
	Temperature  float64
	Logger       *slog.Logger
}

// Extractor asks the LLM for the main characters and stores them.
type Extractor struct {
	llm      providers.LLMClient
	prompts  *prompts.Resolver
	chunks   store.ChunkStore
	chars    store.CharacterStore
	validate *jsonschema.Schema
	cfg      Config
	logger   *slog.Logger
}

// New creates an Extractor.
func New(llm providers.LLMClient, resolver *prompts.Resolver, chunks store.ChunkStore, chars store.CharacterStore, cfg Config) (*Extractor, error) {
	if cfg.SampleChunks <= 0 {
		cfg.SampleChunks = DefaultSampleChunks
	}
	if cfg.MaxPersonas <= 0 {
		cfg.MaxPersonas = DefaultMaxPersonas
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := CompileSchema()
	if err != nil {
		return nil, err
	}
	return &Extractor{
		llm:      llm,
		prompts:  resolver,
		chunks:   chunks,
		chars:    chars,
		validate: schema,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// CompileSchema compiles the per-persona JSON schema.
func CompileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("persona.json", bytes.NewReader(characters.PersonaSchema)); err != nil {
		return nil, fmt.Errorf("failed to load persona schema: %w", err)
	}
	schema, err := compiler.Compile("persona.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile persona schema: %w", err)
	}
	return schema, nil
}

// Extract reads the book's first chunks, asks the LLM for personas and
// upserts them. Unparseable output yields no personas; a failed LLM call is
// returned as an error.
func (e *Extractor) Extract(ctx context.Context, book *store.Book) ([]store.Character, error) {
	logger := e.logger.With("book_id", book.ID)

	chunks, err := e.chunks.ListChunks(ctx, book.ID, e.cfg.SampleChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		logger.Info("no chunks for persona extraction")
		return nil, nil
	}

	excerpts := make([]string, len(chunks))
	for i, c := range chunks {
		excerpts[i] = c.Content
	}

	system, err := e.prompts.Render(characters.SystemKey, book.ID, characters.SystemData{MaxPersonas: e.cfg.MaxPersonas})
	if err != nil {
		return nil, err
	}
	user, err := e.prompts.Render(characters.UserKey, book.ID, characters.UserData{
		Title:       book.Title,
		Author:      book.Author,
		Description: book.Description,
		Excerpts:    excerpts,
	})
	if err != nil {
		return nil, err
	}

	result, err := e.llm.Chat(ctx, &providers.ChatRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("persona extraction call failed: %w", err)
	}

	parsed := Parse(result.Content, e.validate, e.cfg.MaxPersonas)
	if len(parsed) == 0 {
		logger.Warn("no personas parsed from model output", "content_len", len(result.Content))
		return nil, nil
	}

	chars := make([]store.Character, len(parsed))
	for i, p := range parsed {
		chars[i] = store.Character{
			BookID:           book.ID,
			Name:             p.Name,
			ShortDescription: p.Role,
			Persona:          p.Persona,
			ExamplePhrases:   p.ExamplePhrases,
		}
	}
	if err := e.chars.UpsertCharacters(ctx, book.ID, chars); err != nil {
		return nil, fmt.Errorf("failed to store personas: %w", err)
	}

	logger.Info("extracted personas", "count", len(chars), "cost_usd", result.CostUSD)
	return chars, nil
}

// Parse reads a JSON array of personas out of model output. Elements that
// fail schema validation are dropped, as are repeated names. At most max
// personas are returned. Output with no readable array gives nil.
func Parse(content string, schema *jsonschema.Schema, max int) []Persona {
	elems := findArray(content)
	if elems == nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []Persona
	for _, raw := range elems {
		if max > 0 && len(out) >= max {
			break
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		if schema != nil {
			if err := schema.Validate(doc); err != nil {
				continue
			}
		}
		var p Persona
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		p = normalize(p)
		key := strings.ToLower(p.Name)
		if p.Name == "" || p.Persona == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// findArray reads the first JSON array found in content.
func findArray(content string) []json.RawMessage {
	elems, err := providers.FirstJSONArray(content)
	if err != nil {
		return nil
	}
	return elems
}

func normalize(p Persona) Persona {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	p.Role = strings.TrimSpace(p.Role)
	p.Persona = strings.TrimSpace(p.Persona)

	phrases := make([]string, 0, len(p.ExamplePhrases))
	for _, ph := range p.ExamplePhrases {
		if ph = strings.TrimSpace(ph); ph != "" {
			phrases = append(phrases, ph)
		}
		if len(phrases) == maxExamplePhrases {
			break
		}
	}
	p.ExamplePhrases = phrases
	return p
}
