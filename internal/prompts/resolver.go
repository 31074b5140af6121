package prompts

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackzampolin/lectern/internal/errs"
)

// Resolver resolves prompts with book-level overrides.
// Resolution order: book override > embedded default
type Resolver struct {
	mu        sync.RWMutex
	embedded  map[string]EmbeddedPrompt
	overrides map[string]map[string]BookOverride // book id -> key -> override
	logger    *slog.Logger
	now       func() time.Time
}

// NewResolver creates a new prompt resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		embedded:  make(map[string]EmbeddedPrompt),
		overrides: make(map[string]map[string]BookOverride),
		logger:    logger,
		now:       time.Now,
	}
}

// Register registers an embedded prompt.
// This should be called during initialization by each prompt package.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}

	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// Resolve resolves a prompt for a specific book.
// Returns the book override if it exists, otherwise the embedded default.
func (r *Resolver) Resolve(key, bookID string) (*ResolvedPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if o, ok := r.overrides[bookID][key]; ok && bookID != "" {
		return &ResolvedPrompt{
			Key:        key,
			Text:       o.Text,
			Variables:  ExtractVariables(o.Text),
			IsOverride: true,
			Hash:       HashText(o.Text),
		}, nil
	}

	embedded, ok := r.embedded[key]
	if !ok {
		return nil, errs.NotFound("prompts.Resolve", "prompt not found: %s", key)
	}
	return &ResolvedPrompt{
		Key:       key,
		Text:      embedded.Text,
		Variables: embedded.Variables,
		Hash:      embedded.Hash,
	}, nil
}

// Render resolves key for bookID and executes it with data.
func (r *Resolver) Render(key, bookID string, data any) (string, error) {
	p, err := r.Resolve(key, bookID)
	if err != nil {
		return "", err
	}
	return Execute(key, p.Text, data)
}

// AllEmbedded returns all registered embedded prompts sorted by key.
func (r *Resolver) AllEmbedded() []EmbeddedPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]EmbeddedPrompt, 0, len(r.embedded))
	for _, p := range r.embedded {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// SetBookOverride replaces key for one book. The text must parse as a
// template.
func (r *Resolver) SetBookOverride(bookID, key, text, note string) (*BookOverride, error) {
	if bookID == "" {
		return nil, errs.Validation("prompts.SetBookOverride", "book_id is required")
	}
	if _, err := Parse(key, text); err != nil {
		return nil, errs.Validation("prompts.SetBookOverride", "invalid template: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.embedded[key]; !ok {
		return nil, errs.NotFound("prompts.SetBookOverride", "prompt not found: %s", key)
	}
	now := r.now()
	book := r.overrides[bookID]
	if book == nil {
		book = make(map[string]BookOverride)
		r.overrides[bookID] = book
	}
	o := BookOverride{BookID: bookID, PromptKey: key, Text: text, Note: note, CreatedAt: now, UpdatedAt: now}
	if prev, ok := book[key]; ok {
		o.CreatedAt = prev.CreatedAt
	}
	book[key] = o
	r.logger.Info("set prompt override", "book_id", bookID, "key", key)
	return &o, nil
}

// ClearBookOverride removes an override. It reports whether one existed.
func (r *Resolver) ClearBookOverride(bookID, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overrides[bookID][key]; !ok {
		return false
	}
	delete(r.overrides[bookID], key)
	if len(r.overrides[bookID]) == 0 {
		delete(r.overrides, bookID)
	}
	return true
}

// ListBookOverrides returns a book's overrides sorted by key.
func (r *Resolver) ListBookOverrides(bookID string) []BookOverride {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BookOverride, 0, len(r.overrides[bookID]))
	for _, o := range r.overrides[bookID] {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromptKey < out[j].PromptKey })
	return out
}
