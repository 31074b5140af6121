// Package query rewrites a chat message and its recent history into a
// standalone search query.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jackzampolin/lectern/internal/prompts"
	"github.com/jackzampolin/lectern/internal/prompts/rewrite"
	"github.com/jackzampolin/lectern/internal/providers"
	"github.com/jackzampolin/lectern/internal/store"
)

const (
	DefaultCacheTTL    = 10 * time.Minute
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 120

	historyTurnsPerRole = 2
)

// Turn is one message of the conversation so far.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Input is what the optimizer rewrites.
type Input struct {
	BookID    string
	Title     string
	Category  string
	AgeGroup  string
	Character string
	Persona   string
	Message   string
	History   []Turn
}

// Config configures an Optimizer.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// CacheTTL of zero uses the default; negative disables caching.
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Optimizer asks the LLM for a search query.
type Optimizer struct {
	llm     providers.LLMClient
	prompts *prompts.Resolver
	cache   *cache.Cache
	cfg     Config
	logger  *slog.Logger
}

// New creates an Optimizer.
func New(llm providers.LLMClient, resolver *prompts.Resolver, cfg Config) *Optimizer {
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Optimizer{llm: llm, prompts: resolver, cfg: cfg, logger: logger}
	if cfg.CacheTTL > 0 {
		o.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return o
}

// Optimize returns a search query for in. A failed LLM call is returned as
// an error; an empty rewrite falls back to the trimmed message.
func (o *Optimizer) Optimize(ctx context.Context, in Input) (string, error) {
	message := strings.TrimSpace(in.Message)
	history := TrimHistory(in.History)

	key := cacheKey(in.BookID, in.Character, message, history)
	if o.cache != nil {
		if q, ok := o.cache.Get(key); ok {
			return q.(string), nil
		}
	}

	systemKey := rewrite.SystemKey
	if store.IsChildAudience(in.Category, in.AgeGroup) {
		systemKey = rewrite.SystemChildKey
	}
	system, err := o.prompts.Render(systemKey, in.BookID, rewrite.SystemData{
		Title:     in.Title,
		Category:  in.Category,
		Character: in.Character,
		Persona:   in.Persona,
	})
	if err != nil {
		return "", err
	}
	turns := make([]rewrite.Turn, len(history))
	for i, t := range history {
		turns[i] = rewrite.Turn{Role: t.Role, Content: t.Content}
	}
	user, err := o.prompts.Render(rewrite.UserKey, in.BookID, rewrite.UserData{History: turns, Message: message})
	if err != nil {
		return "", err
	}

	result, err := o.llm.Chat(ctx, &providers.ChatRequest{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("query rewrite failed: %w", err)
	}

	q := CleanQuery(result.Content)
	if q == "" {
		o.logger.Debug("empty rewrite, using original message", "book_id", in.BookID)
		q = message
	}
	if o.cache != nil {
		o.cache.SetDefault(key, q)
	}
	return q, nil
}

// TrimHistory keeps the last two user and last two assistant turns in their
// original order. Turns with other roles or no content are dropped.
func TrimHistory(history []Turn) []Turn {
	var users, assistants int
	keep := make([]bool, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		switch strings.ToLower(t.Role) {
		case "user":
			if users < historyTurnsPerRole {
				users++
				keep[i] = true
			}
		case "assistant":
			if assistants < historyTurnsPerRole {
				assistants++
				keep[i] = true
			}
		}
	}

	out := make([]Turn, 0, users+assistants)
	for i, t := range history {
		if keep[i] {
			out = append(out, Turn{Role: strings.ToLower(t.Role), Content: strings.TrimSpace(t.Content)})
		}
	}
	return out
}

var (
	// A short label ending in a query-ish noun: "Query:", "Search string:",
	// "Rewritten search query:". Names like "Alice:" are left alone.
	labelPrefix = regexp.MustCompile(`(?i)^\s*(?:[a-z]+\s+){0,3}(?:query|queries|search|string|terms|keywords|rewrite|question|text)\s*:\s*`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// CleanQuery strips code fences and backticks, a leading "query:" style
// label and wrapping quotes, and collapses whitespace.
func CleanQuery(s string) string {
	s = strings.TrimSpace(s)
	if stripped := providers.StripCodeFences(s); stripped != "" {
		s = stripped
	}
	s = strings.ReplaceAll(s, "`", "")
	s = labelPrefix.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), " ")

	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	if strings.HasPrefix(s, "“") && strings.HasSuffix(s, "”") {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "“"), "”"))
	}
	return s
}

func cacheKey(bookID, character, message string, history []Turn) string {
	var b strings.Builder
	b.WriteString(bookID)
	b.WriteByte(0)
	b.WriteString(strings.ToLower(character))
	b.WriteByte(0)
	b.WriteString(message)
	for _, t := range history {
		b.WriteByte(0)
		b.WriteString(t.Role)
		b.WriteByte(':')
		b.WriteString(t.Content)
	}
	return b.String()
}
