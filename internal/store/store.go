// Package store defines the persisted records of the system and the
// interfaces the pipeline and chat service use to reach them.
package store

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackzampolin/lectern/internal/status"
)

// Book categories that change processing or prompting.
const (
	CategoryFiction    = "fiction"
	CategoryChildren   = "children"
	CategoryNonFiction = "non_fiction"
)

// Book is a document registered for processing.
type Book struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Author       string        `json:"author,omitempty"`
	Description  string        `json:"description,omitempty"`
	Category     string        `json:"category"`
	AgeGroup     string        `json:"age_group,omitempty"`
	FileType     string        `json:"file_type,omitempty"`
	Status       status.Status `json:"status"`
	Progress     int           `json:"progress"`
	ProgressText string        `json:"progress_text,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// WantsPersonas reports whether the book's category gets persona extraction.
func (b *Book) WantsPersonas() bool {
	switch strings.ToLower(b.Category) {
	case CategoryFiction, CategoryChildren:
		return true
	}
	return false
}

// IsChild reports whether answers for this book use child-safe prompts.
func (b *Book) IsChild() bool {
	return IsChildAudience(b.Category, b.AgeGroup)
}

var ageRange = regexp.MustCompile(`(\d+)\s*(?:-|to|–)\s*(\d+)`)

// IsChildAudience reports whether a category or age group is a child band:
// the children category, a named band like "kids" or "early reader", or an
// age range ending at 12 or below.
func IsChildAudience(category, ageGroup string) bool {
	if strings.EqualFold(strings.TrimSpace(category), CategoryChildren) {
		return true
	}
	ag := strings.ToLower(strings.TrimSpace(ageGroup))
	if ag == "" {
		return false
	}
	for _, band := range []string{"child", "kid", "toddler", "preschool", "early reader", "early_reader", "middle grade", "middle_grade"} {
		if strings.Contains(ag, band) {
			return true
		}
	}
	if m := ageRange.FindStringSubmatch(ag); m != nil {
		upper, err := strconv.Atoi(m[2])
		return err == nil && upper <= 12
	}
	return false
}

// ChunkMetadata is stored alongside a chunk and read back by search.
type ChunkMetadata struct {
	ChapterNumber  *int   `json:"chapter_number,omitempty"`
	ChapterHeading string `json:"chapter_heading,omitempty"`
	PageNumber     *int   `json:"page_number,omitempty"`
}

// Chunk is a contiguous slice of a book's text.
type Chunk struct {
	ID            string        `json:"id"`
	BookID        string        `json:"book_id"`
	ChunkIndex    int           `json:"chunk_index"`
	Content       string        `json:"content"`
	TokenCount    int           `json:"token_count"`
	StartPage     int           `json:"start_page"`
	EndPage       int           `json:"end_page"`
	ChapterNumber *int          `json:"chapter_number,omitempty"`
	Metadata      ChunkMetadata `json:"metadata"`
	Embedding     []float32     `json:"-"`
}

// ChunkEmbedding assigns a vector to a stored chunk.
type ChunkEmbedding struct {
	ChunkID string
	Vector  []float32
}

// Character is a persona extracted from a book.
type Character struct {
	ID               string    `json:"id"`
	BookID           string    `json:"book_id"`
	Name             string    `json:"name"`
	ShortDescription string    `json:"short_description"`
	Persona          string    `json:"persona"`
	ExamplePhrases   []string  `json:"example_phrases"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SearchParams selects the nearest chunks to an embedding.
type SearchParams struct {
	Embedding  []float32
	MatchCount int
	BookID     string
}

// BookStore reads and updates books.
type BookStore interface {
	status.Persister
	CreateBook(ctx context.Context, b *Book) error
	GetBook(ctx context.Context, id string) (*Book, error)
}

// ChunkStore persists chunks and their embeddings.
type ChunkStore interface {
	// ReplaceChunks drops any previous chunks of the book, inserts chunks and
	// returns chunk_index -> row id.
	ReplaceChunks(ctx context.Context, bookID string, chunks []Chunk) (map[int]string, error)
	SetEmbeddings(ctx context.Context, bookID string, embeddings []ChunkEmbedding) error
	// ListChunks returns up to limit chunks ordered by chunk_index. limit <= 0 means all.
	ListChunks(ctx context.Context, bookID string, limit int) ([]Chunk, error)
}

// CharacterStore persists personas, unique per (book, name).
type CharacterStore interface {
	UpsertCharacters(ctx context.Context, bookID string, chars []Character) error
	ListCharacters(ctx context.Context, bookID string) ([]Character, error)
	GetCharacter(ctx context.Context, bookID, name string) (*Character, error)
}

// Searcher runs nearest-neighbour search over chunk embeddings.
type Searcher interface {
	Search(ctx context.Context, p SearchParams) ([]SearchRow, error)
}

// Store is the full persistence surface.
type Store interface {
	BookStore
	ChunkStore
	CharacterStore
	Searcher
	Ping(ctx context.Context) error
	Close() error
}
