package postgres

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/jackzampolin/lectern/internal/status"
	"github.com/jackzampolin/lectern/internal/store"
)

type bookModel struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID           string    `bun:"id,pk"`
	Title        string    `bun:"title,notnull"`
	Author       string    `bun:"author,nullzero"`
	Description  string    `bun:"description,nullzero"`
	Category     string    `bun:"category,notnull,default:'non_fiction'"`
	AgeGroup     string    `bun:"age_group,nullzero"`
	FileType     string    `bun:"file_type,nullzero"`
	Status       string    `bun:"status,notnull,default:'uploaded'"`
	Progress     int       `bun:"progress,notnull,default:0"`
	ProgressText string    `bun:"progress_text,notnull,default:''"`
	ErrorMessage string    `bun:"error_message,nullzero"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (m *bookModel) toBook() *store.Book {
	return &store.Book{
		ID:           m.ID,
		Title:        m.Title,
		Author:       m.Author,
		Description:  m.Description,
		Category:     m.Category,
		AgeGroup:     m.AgeGroup,
		FileType:     m.FileType,
		Status:       status.Status(m.Status),
		Progress:     m.Progress,
		ProgressText: m.ProgressText,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

type chunkModel struct {
	bun.BaseModel `bun:"table:book_chunks,alias:c"`

	ID            string              `bun:"id,pk"`
	BookID        string              `bun:"book_id,notnull"`
	ChunkIndex    int                 `bun:"chunk_index,notnull"`
	Content       string              `bun:"content,notnull"`
	TokenCount    int                 `bun:"token_count,notnull"`
	StartPage     int                 `bun:"start_page,notnull"`
	EndPage       int                 `bun:"end_page,notnull"`
	ChapterNumber *int                `bun:"chapter_number"`
	Metadata      store.ChunkMetadata `bun:"metadata,type:jsonb"`
	Embedding     *pgvector.Vector    `bun:"embedding,type:vector"`
	CreatedAt     time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (m *chunkModel) toChunk() store.Chunk {
	c := store.Chunk{
		ID:            m.ID,
		BookID:        m.BookID,
		ChunkIndex:    m.ChunkIndex,
		Content:       m.Content,
		TokenCount:    m.TokenCount,
		StartPage:     m.StartPage,
		EndPage:       m.EndPage,
		ChapterNumber: m.ChapterNumber,
		Metadata:      m.Metadata,
	}
	if m.Embedding != nil {
		c.Embedding = m.Embedding.Slice()
	}
	return c
}

type characterModel struct {
	bun.BaseModel `bun:"table:book_characters,alias:ch"`

	ID               string         `bun:"id,pk"`
	BookID           string         `bun:"book_id,notnull,unique:book_character"`
	Name             string         `bun:"name,notnull,unique:book_character"`
	ShortDescription string         `bun:"short_description"`
	Persona          string         `bun:"persona"`
	ExamplePhrases   pq.StringArray `bun:"example_phrases,type:text[]"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (m *characterModel) toCharacter() store.Character {
	return store.Character{
		ID:               m.ID,
		BookID:           m.BookID,
		Name:             m.Name,
		ShortDescription: m.ShortDescription,
		Persona:          m.Persona,
		ExamplePhrases:   []string(m.ExamplePhrases),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
