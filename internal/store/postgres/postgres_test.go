package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/status"
	"github.com/jackzampolin/lectern/internal/store"
)

// openTestStore connects to LECTERN_TEST_DATABASE_URL, which must point at a
// Postgres with the pgvector extension available.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("LECTERN_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LECTERN_TEST_DATABASE_URL not set")
	}

	s, err := Open(Config{DSN: dsn, Dimensions: 3})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func TestMapError(t *testing.T) {
	if err := mapError("op", nil); err != nil {
		t.Errorf("mapError(nil) = %v", err)
	}
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), errs.KindNotFound},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), errs.KindTimeout},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), errs.KindExternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("op", tt.err)
			if got := errs.KindOf(err); got != tt.want {
				t.Errorf("mapError() kind = %s, want %s", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("mapError() lost the cause: %v", err)
			}
		})
	}
	if got := errs.HTTPStatus(mapError("op", errors.New("broken pipe"))); got != 502 {
		t.Errorf("HTTPStatus(external) = %d, want 502", got)
	}
}

func TestStore_Integration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	book := &store.Book{ID: "test-" + uuid.NewString(), Title: "Storm Island", Category: store.CategoryFiction}
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook() error = %v", err)
	}
	t.Cleanup(func() {
		s.db.NewDelete().Model((*bookModel)(nil)).Where("id = ?", book.ID).Exec(context.Background())
	})

	t.Run("duplicate book conflicts", func(t *testing.T) {
		err := s.CreateBook(ctx, &store.Book{ID: book.ID, Title: "again"})
		if !errors.Is(err, errs.ErrConflict) {
			t.Errorf("CreateBook() error = %v, want conflict", err)
		}
	})

	t.Run("status round trip", func(t *testing.T) {
		if err := s.UpdateStatus(ctx, book.ID, status.Update{Status: status.Error, Progress: 30, ProgressText: "Failed while extracting text", ErrorMessage: "bad pdf"}); err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
		got, err := s.GetBook(ctx, book.ID)
		if err != nil {
			t.Fatalf("GetBook() error = %v", err)
		}
		if got.Status != status.Error || got.Progress != 30 || got.ErrorMessage != "bad pdf" || got.ProgressText != "Failed while extracting text" {
			t.Errorf("book = %+v", got)
		}
		if err := s.UpdateStatus(ctx, "missing-book", status.Update{Status: status.Extracting}); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("UpdateStatus(missing) error = %v, want not found", err)
		}
	})

	t.Run("chunks and search", func(t *testing.T) {
		chapter := 2
		ids, err := s.ReplaceChunks(ctx, book.ID, []store.Chunk{
			{ChunkIndex: 0, Content: "the lighthouse", TokenCount: 4, StartPage: 1, EndPage: 1, ChapterNumber: &chapter, Metadata: store.ChunkMetadata{ChapterHeading: "Chapter 2"}},
			{ChunkIndex: 1, Content: "the storm", TokenCount: 3, StartPage: 2, EndPage: 3},
		})
		if err != nil {
			t.Fatalf("ReplaceChunks() error = %v", err)
		}
		err = s.SetEmbeddings(ctx, book.ID, []store.ChunkEmbedding{
			{ChunkID: ids[0], Vector: []float32{1, 0, 0}},
			{ChunkID: ids[1], Vector: []float32{0, 1, 0}},
		})
		if err != nil {
			t.Fatalf("SetEmbeddings() error = %v", err)
		}

		rows, err := s.Search(ctx, store.SearchParams{Embedding: []float32{1, 0.1, 0}, MatchCount: 5, BookID: book.ID})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(rows) != 2 || rows[0].ID != ids[0] {
			t.Fatalf("rows = %+v", rows)
		}
		if !rows[0].ChapterNumber.Valid || rows[0].ChapterNumber.Int != 2 {
			t.Errorf("ChapterNumber = %+v", rows[0].ChapterNumber)
		}
		if rows[0].ChapterHeading == nil || *rows[0].ChapterHeading != "Chapter 2" {
			t.Errorf("ChapterHeading = %v", rows[0].ChapterHeading)
		}
		if rows[0].Similarity <= rows[1].Similarity {
			t.Errorf("similarity not ordered: %v <= %v", rows[0].Similarity, rows[1].Similarity)
		}

		err = s.SetEmbeddings(ctx, book.ID, []store.ChunkEmbedding{{ChunkID: ids[0], Vector: []float32{1, 0}}})
		if !errors.Is(err, errs.ErrValidation) {
			t.Errorf("SetEmbeddings(wrong dims) error = %v, want validation", err)
		}
	})

	t.Run("characters upsert by name", func(t *testing.T) {
		err := s.UpsertCharacters(ctx, book.ID, []store.Character{
			{Name: "Mara", ShortDescription: "keeper", ExamplePhrases: []string{"Steady now."}},
			{Name: "Mara", ShortDescription: "lighthouse keeper", ExamplePhrases: []string{"Steady, now.", "Lamp's lit."}},
		})
		if err != nil {
			t.Fatalf("UpsertCharacters() error = %v", err)
		}
		c, err := s.GetCharacter(ctx, book.ID, "mara")
		if err != nil {
			t.Fatalf("GetCharacter() error = %v", err)
		}
		if c.ShortDescription != "lighthouse keeper" || len(c.ExamplePhrases) != 2 {
			t.Errorf("character = %+v", c)
		}
	})
}
