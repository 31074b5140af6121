// Package answer composes grounded answers from retrieved excerpts.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/lectern/internal/prompts"
	answerprompts "github.com/jackzampolin/lectern/internal/prompts/answer"
	"github.com/jackzampolin/lectern/internal/providers"
	"github.com/jackzampolin/lectern/internal/query"
	"github.com/jackzampolin/lectern/internal/retrieval"
	"github.com/jackzampolin/lectern/internal/store"
)

const (
	// MaxExcerptChars bounds each excerpt in the prompt.
	MaxExcerptChars = 1200

	// FallbackMessage is returned without an LLM call when nothing matched.
	FallbackMessage = "I couldn't find anything in this book that answers that. Try asking about a specific character, event or chapter."

	labelSeparator = " • "
)

// Mode selects the answering voice.
type Mode string

const (
	ModeTutor   Mode = "tutor"
	ModePersona Mode = "persona"
)

// Temperatures per mode and audience.
const (
	TutorTemperature        = 0.3
	TutorChildTemperature   = 0.2
	PersonaTemperature      = 0.8
	PersonaChildTemperature = 0.6
)

// Source is a citation returned with an answer.
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	Chapter    *int    `json:"chapter,omitempty"`
	Page       *int    `json:"page,omitempty"`
	Heading    *string `json:"heading,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Turn is a prior chat message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is everything needed to compose one answer.
type Request struct {
	Book      *store.Book
	Character *store.Character // set for persona mode
	Question  string
	History   []Turn
	Matches   []retrieval.Match
}

// Response is the composed answer.
type Response struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Mode    Mode     `json:"mode"`
	Child   bool     `json:"child_safe"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Usage reports the LLM call behind an answer.
type Usage struct {
	Model       string  `json:"model"`
	TotalTokens int     `json:"total_tokens"`
	CostUSD     float64 `json:"cost_usd"`
}

// Config configures a Composer.
type Config struct {
	Model     string
	MaxTokens int
	Logger    *slog.Logger
}

// Composer renders prompts for the right variant and calls the LLM.
type Composer struct {
	llm     providers.LLMClient
	prompts *prompts.Resolver
	cfg     Config
	logger  *slog.Logger
}

// New creates a Composer.
func New(llm providers.LLMClient, resolver *prompts.Resolver, cfg Config) *Composer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{llm: llm, prompts: resolver, cfg: cfg, logger: logger}
}

// Compose answers req. With no matches it returns FallbackMessage and makes
// no LLM call.
func (c *Composer) Compose(ctx context.Context, req Request) (*Response, error) {
	mode := ModeTutor
	if req.Character != nil {
		mode = ModePersona
	}
	child := req.Book.IsChild()

	resp := &Response{Mode: mode, Child: child, Sources: Sources(req.Matches)}
	if len(req.Matches) == 0 {
		resp.Answer = FallbackMessage
		return resp, nil
	}

	sysData := answerprompts.SystemData{
		Title:    req.Book.Title,
		Author:   req.Book.Author,
		AgeGroup: req.Book.AgeGroup,
	}
	if req.Character != nil {
		sysData.Name = req.Character.Name
		sysData.ShortDescription = req.Character.ShortDescription
		sysData.Persona = req.Character.Persona
		sysData.ExamplePhrases = req.Character.ExamplePhrases
	}
	system, err := c.prompts.Render(answerprompts.SystemKey(mode == ModePersona, child), req.Book.ID, sysData)
	if err != nil {
		return nil, err
	}

	excerpts := make([]answerprompts.Excerpt, len(req.Matches))
	for i, m := range req.Matches {
		excerpts[i] = answerprompts.Excerpt{Label: Label(m, i+1), Content: Truncate(m.Content, MaxExcerptChars)}
	}
	user, err := c.prompts.Render(answerprompts.UserKey, req.Book.ID, answerprompts.UserData{
		Excerpts: excerpts,
		Question: strings.TrimSpace(req.Question),
	})
	if err != nil {
		return nil, err
	}

	result, err := c.llm.Chat(ctx, &providers.ChatRequest{
		Model:       c.cfg.Model,
		Temperature: Temperature(mode, child),
		MaxTokens:   c.cfg.MaxTokens,
		Messages:    Messages(system, req.History, user),
	})
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	resp.Answer = strings.TrimSpace(result.Content)
	resp.Usage = &Usage{Model: result.ModelUsed, TotalTokens: result.TotalTokens, CostUSD: result.CostUSD}
	c.logger.Debug("composed answer",
		"book_id", req.Book.ID,
		"mode", mode,
		"child", child,
		"sources", len(resp.Sources),
		"tokens", result.TotalTokens)
	return resp, nil
}

// Messages lays out a chat call: the system prompt, the trimmed history as
// its own turns, then the user prompt.
func Messages(system string, history []Turn, user string) []providers.Message {
	turns := make([]query.Turn, len(history))
	for i, t := range history {
		turns[i] = query.Turn{Role: t.Role, Content: t.Content}
	}
	trimmed := query.TrimHistory(turns)

	msgs := make([]providers.Message, 0, len(trimmed)+2)
	msgs = append(msgs, providers.Message{Role: "system", Content: system})
	for _, t := range trimmed {
		msgs = append(msgs, providers.Message{Role: t.Role, Content: t.Content})
	}
	return append(msgs, providers.Message{Role: "user", Content: user})
}

// Temperature returns the sampling temperature for a variant.
func Temperature(mode Mode, child bool) float64 {
	switch {
	case mode == ModePersona && child:
		return PersonaChildTemperature
	case mode == ModePersona:
		return PersonaTemperature
	case child:
		return TutorChildTemperature
	}
	return TutorTemperature
}

// Label names an excerpt by its resolved location parts, e.g.
// "Chapter 3 • Page 41 • The Storm". With none resolved it is "Excerpt i".
func Label(m retrieval.Match, i int) string {
	var parts []string
	if m.Chapter != nil {
		parts = append(parts, "Chapter "+strconv.Itoa(*m.Chapter))
	}
	if m.Page != nil {
		parts = append(parts, "Page "+strconv.Itoa(*m.Page))
	}
	if m.Heading != nil && strings.TrimSpace(*m.Heading) != "" {
		parts = append(parts, strings.TrimSpace(*m.Heading))
	}
	if len(parts) == 0 {
		return "Excerpt " + strconv.Itoa(i)
	}
	return strings.Join(parts, labelSeparator)
}

// Truncate cuts s to max characters and appends an ellipsis when cut.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:max]), " \n\t") + "…"
}

// Sources lists citations for matches in order.
func Sources(matches []retrieval.Match) []Source {
	out := make([]Source, len(matches))
	for i, m := range matches {
		out[i] = Source{
			ChunkID:    m.ChunkID,
			Chapter:    m.Chapter,
			Page:       m.Page,
			Heading:    m.Heading,
			Similarity: m.Similarity,
		}
	}
	return out
}
