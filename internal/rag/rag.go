// Package rag answers questions about a processed book: rewrite the message
// into a search query, embed it, retrieve the closest chunks and compose an
// answer as a tutor or in a character's voice.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/lectern/internal/answer"
	"github.com/jackzampolin/lectern/internal/embedding"
	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/query"
	"github.com/jackzampolin/lectern/internal/retrieval"
	"github.com/jackzampolin/lectern/internal/store"
)

const (
	// MaxMessageChars bounds a single chat message.
	MaxMessageChars = 4000
	// MaxHistoryTurns bounds the history a caller may send.
	MaxHistoryTurns = 50
)

// Deps are the services a chat needs.
type Deps struct {
	Books      store.BookStore
	Characters store.CharacterStore
	Optimizer  *query.Optimizer
	Embedding  *embedding.Service
	Retrieval  *retrieval.Engine
	Composer   *answer.Composer
}

// Config configures a Service.
type Config struct {
	// K is the number of chunks retrieved per question. Zero uses the
	// retrieval engine's default.
	K      int
	Logger *slog.Logger
}

// Service runs the question-time pipeline.
type Service struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New creates a Service.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Books == nil || deps.Characters == nil || deps.Optimizer == nil ||
		deps.Embedding == nil || deps.Retrieval == nil || deps.Composer == nil {
		return nil, errors.New("rag: all dependencies are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger}, nil
}

// Request is one chat message with the conversation so far.
type Request struct {
	Message string        `json:"message"`
	History []answer.Turn `json:"history,omitempty"`
}

// Reply is the composed answer and the search query it was grounded on.
type Reply struct {
	answer.Response
	Query string `json:"query"`
}

// Ask answers req as a tutor for bookID.
func (s *Service) Ask(ctx context.Context, bookID string, req Request) (*Reply, error) {
	return s.chat(ctx, bookID, "", req)
}

// ChatWithCharacter answers req in the voice of the named character.
func (s *Service) ChatWithCharacter(ctx context.Context, bookID, name string, req Request) (*Reply, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.Validation("rag.ChatWithCharacter", "character name is required")
	}
	return s.chat(ctx, bookID, name, req)
}

func (s *Service) chat(ctx context.Context, bookID, characterName string, req Request) (*Reply, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	book, err := s.deps.Books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !book.Status.Searchable() {
		return nil, errs.Conflict("rag.chat", "book %s is not ready for questions (status %s)", book.ID, book.Status)
	}

	var character *store.Character
	if characterName != "" {
		character, err = s.deps.Characters.GetCharacter(ctx, book.ID, characterName)
		if err != nil {
			return nil, err
		}
	}

	logger := s.logger.With("book_id", book.ID)
	message := strings.TrimSpace(req.Message)

	in := query.Input{
		BookID:   book.ID,
		Title:    book.Title,
		Category: book.Category,
		AgeGroup: book.AgeGroup,
		Message:  message,
		History:  make([]query.Turn, len(req.History)),
	}
	if character != nil {
		in.Character = character.Name
		in.Persona = character.Persona
	}
	for i, t := range req.History {
		in.History[i] = query.Turn{Role: t.Role, Content: t.Content}
	}
	q, err := s.deps.Optimizer.Optimize(ctx, in)
	if err != nil {
		return nil, err
	}

	vec, err := s.deps.Embedding.EmbedQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := s.deps.Retrieval.Search(ctx, vec, s.cfg.K, book.ID)
	if err != nil {
		return nil, err
	}

	resp, err := s.deps.Composer.Compose(ctx, answer.Request{
		Book:      book,
		Character: character,
		Question:  message,
		History:   req.History,
		Matches:   matches,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("answered question",
		"mode", resp.Mode,
		"child_safe", resp.Child,
		"query", q,
		"matches", len(matches))
	return &Reply{Response: *resp, Query: q}, nil
}

// Validate checks a chat request's shape.
func Validate(req Request) error {
	const op = "rag.Validate"
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return errs.Validation(op, "message is required")
	}
	if utf8.RuneCountInString(msg) > MaxMessageChars {
		return errs.Validation(op, "message exceeds %d characters", MaxMessageChars)
	}
	if len(req.History) > MaxHistoryTurns {
		return errs.Validation(op, "history exceeds %d turns", MaxHistoryTurns)
	}
	for i, t := range req.History {
		if t.Role != "user" && t.Role != "assistant" {
			return errs.Validation(op, "history[%d]: role must be user or assistant, got %q", i, t.Role)
		}
	}
	return nil
}
