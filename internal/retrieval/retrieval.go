// Package retrieval finds the chunks of a book closest to a query embedding.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/store"
)

const (
	DefaultK = 5
	MaxK     = 20
)

// Match is a search hit with its location resolved.
type Match struct {
	ChunkID    string  `json:"chunk_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Chapter    *int    `json:"chapter,omitempty"`
	Page       *int    `json:"page,omitempty"`
	Heading    *string `json:"heading,omitempty"`
}

// Config configures an Engine.
type Config struct {
	DefaultK int
	Logger   *slog.Logger
}

// Engine runs similarity search against a Searcher.
type Engine struct {
	searcher store.Searcher
	defaultK int
	logger   *slog.Logger
}

// New creates an Engine.
func New(searcher store.Searcher, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	k := cfg.DefaultK
	if k <= 0 {
		k = DefaultK
	}
	return &Engine{searcher: searcher, defaultK: ClampK(k), logger: logger}
}

// ClampK bounds k to 1..MaxK. Zero or negative k means DefaultK.
func ClampK(k int) int {
	switch {
	case k <= 0:
		return DefaultK
	case k > MaxK:
		return MaxK
	}
	return k
}

// Search returns up to k matches for bookID ordered by descending
// similarity. k <= 0 uses the engine default.
func (e *Engine) Search(ctx context.Context, embedding []float32, k int, bookID string) ([]Match, error) {
	if bookID == "" {
		return nil, errs.Validation("retrieval.Search", "book_id is required")
	}
	if len(embedding) == 0 {
		return nil, errs.Validation("retrieval.Search", "embedding is empty")
	}
	if k <= 0 {
		k = e.defaultK
	}
	k = ClampK(k)

	rows, err := e.searcher.Search(ctx, store.SearchParams{Embedding: embedding, MatchCount: k, BookID: bookID})
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Resolve(row))
	}
	// Stores return ordered rows; keep the bound even if one returns more.
	if len(matches) > k {
		matches = matches[:k]
	}
	e.logger.Debug("retrieved chunks", "book_id", bookID, "k", k, "matches", len(matches))
	return matches, nil
}

// Resolve reads a row's location: top-level fields first, then metadata.
func Resolve(row store.SearchRow) Match {
	return Match{
		ChunkID:    row.ID,
		Content:    row.Content,
		Similarity: row.Similarity,
		Chapter:    firstInt(row.ChapterNumber, row.Metadata.ChapterNumber),
		Page:       firstInt(row.PageNumber, row.Metadata.PageNumber),
		Heading:    firstString(row.ChapterHeading, row.Metadata.ChapterHeading),
	}
}

func firstInt(vals ...store.FlexInt) *int {
	for _, v := range vals {
		if v.Valid {
			return v.Ptr()
		}
	}
	return nil
}

func firstString(vals ...*string) *string {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(*v); s != "" {
			return &s
		}
	}
	return nil
}
