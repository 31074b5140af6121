package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the schema if it does not exist. Chunk embeddings are
// vector(dims) and searched through match_book_chunks.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}

	if _, err := s.db.NewCreateTable().Model((*bookModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create books table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*characterModel)(nil)).
		IfNotExists().
		ForeignKey(`("book_id") REFERENCES "books" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create book_characters table: %w", err)
	}

	stmts := []string{
		`ALTER TABLE books ADD COLUMN IF NOT EXISTS progress_text text NOT NULL DEFAULT ''`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS book_chunks (
	id text PRIMARY KEY,
	book_id text NOT NULL REFERENCES books (id) ON DELETE CASCADE,
	chunk_index integer NOT NULL,
	content text NOT NULL,
	token_count integer NOT NULL,
	start_page integer NOT NULL,
	end_page integer NOT NULL,
	chapter_number integer,
	metadata jsonb,
	embedding vector(%d),
	created_at timestamptz NOT NULL DEFAULT current_timestamp,
	UNIQUE (book_id, chunk_index)
)`, s.dims),
		`CREATE INDEX IF NOT EXISTS book_chunks_book_id_idx ON book_chunks (book_id)`,
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_book_chunks(
	query_embedding vector(%d),
	match_count integer,
	filter_book_id text
) RETURNS TABLE (
	id text,
	content text,
	chapter_number integer,
	page_number integer,
	chapter_heading text,
	metadata jsonb,
	similarity double precision
) LANGUAGE sql STABLE AS $$
	SELECT c.id, c.content, c.chapter_number, c.start_page,
		c.metadata->>'chapter_heading', c.metadata,
		1 - (c.embedding <=> query_embedding)
	FROM book_chunks c
	WHERE c.book_id = filter_book_id AND c.embedding IS NOT NULL
	ORDER BY c.embedding <=> query_embedding
	LIMIT match_count
$$`, s.dims),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
