// Package postgres is the Store backed by Postgres with pgvector.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/status"
	"github.com/jackzampolin/lectern/internal/store"
)

// DefaultDimensions matches text-embedding-3-small.
const DefaultDimensions = 1536

// Config configures the store.
type Config struct {
	DSN        string
	Dimensions int
	// Debug logs every query.
	Debug  bool
	Logger *slog.Logger
}

// Store implements store.Store.
type Store struct {
	db     *bun.DB
	dims   int
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to Postgres. It does not run migrations.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errs.Validation("postgres.Open", "database dsn is required")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(cfg.Debug),
		bundebug.WithVerbose(cfg.Debug),
		bundebug.FromEnv("BUNDEBUG"),
	))

	return &Store{db: db, dims: cfg.Dimensions, logger: logger}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// mapError turns driver errors into classified ones.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.E(errs.KindNotFound, op, "", err)
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		return errs.E(errs.KindConflict, op, pgErr.Field('M'), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.E(errs.KindTimeout, op, "", err)
	}
	return errs.E(errs.KindExternal, op, "", err)
}

func (s *Store) CreateBook(ctx context.Context, b *store.Book) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = status.Uploaded
	}
	m := &bookModel{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		Category:    b.Category,
		AgeGroup:    b.AgeGroup,
		FileType:    b.FileType,
		Status:      string(b.Status),
	}
	if _, err := s.db.NewInsert().Model(m).Returning("created_at, updated_at").Exec(ctx); err != nil {
		return mapError("postgres.CreateBook", err)
	}
	b.CreatedAt, b.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (s *Store) GetBook(ctx context.Context, id string) (*store.Book, error) {
	m := new(bookModel)
	if err := s.db.NewSelect().Model(m).Where("b.id = ?", id).Scan(ctx); err != nil {
		return nil, mapError("postgres.GetBook", err)
	}
	return m.toBook(), nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, u status.Update) error {
	var errMsg *string
	if u.ErrorMessage != "" {
		errMsg = &u.ErrorMessage
	}
	res, err := s.db.NewUpdate().
		Model((*bookModel)(nil)).
		Set("status = ?", string(u.Status)).
		Set("progress = ?", u.Progress).
		Set("progress_text = ?", u.ProgressText).
		Set("error_message = ?", errMsg).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapError("postgres.UpdateStatus", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("postgres.UpdateStatus", "book %s not found", id)
	}
	return nil
}

func (s *Store) ReplaceChunks(ctx context.Context, bookID string, chunks []store.Chunk) (map[int]string, error) {
	ids := make(map[int]string, len(chunks))
	models := make([]chunkModel, len(chunks))
	for i, c := range chunks {
		models[i] = chunkModel{
			ID:            uuid.NewString(),
			BookID:        bookID,
			ChunkIndex:    c.ChunkIndex,
			Content:       c.Content,
			TokenCount:    c.TokenCount,
			StartPage:     c.StartPage,
			EndPage:       c.EndPage,
			ChapterNumber: c.ChapterNumber,
			Metadata:      c.Metadata,
		}
		ids[c.ChunkIndex] = models[i].ID
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*chunkModel)(nil)).Where("book_id = ?", bookID).Exec(ctx); err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&models).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, mapError("postgres.ReplaceChunks", err)
	}
	return ids, nil
}

func (s *Store) SetEmbeddings(ctx context.Context, bookID string, embeddings []store.ChunkEmbedding) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, e := range embeddings {
			if len(e.Vector) != s.dims {
				return errs.Validation("postgres.SetEmbeddings", "chunk %s: embedding has %d dimensions, want %d", e.ChunkID, len(e.Vector), s.dims)
			}
			res, err := tx.NewUpdate().
				Model((*chunkModel)(nil)).
				Set("embedding = ?", pgvector.NewVector(e.Vector)).
				Where("id = ?", e.ChunkID).
				Where("book_id = ?", bookID).
				Exec(ctx)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return errs.NotFound("postgres.SetEmbeddings", "chunk %s not found", e.ChunkID)
			}
		}
		return nil
	})
	if errs.KindOf(err) == errs.KindInternal {
		return mapError("postgres.SetEmbeddings", err)
	}
	return err
}

func (s *Store) ListChunks(ctx context.Context, bookID string, limit int) ([]store.Chunk, error) {
	var models []chunkModel
	q := s.db.NewSelect().Model(&models).
		ExcludeColumn("embedding").
		Where("c.book_id = ?", bookID).
		Order("c.chunk_index ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapError("postgres.ListChunks", err)
	}
	out := make([]store.Chunk, len(models))
	for i := range models {
		out[i] = models[i].toChunk()
	}
	return out, nil
}

// Search calls match_book_chunks, which returns chapter and page as
// top-level columns with the raw metadata alongside.
func (s *Store) Search(ctx context.Context, p store.SearchParams) ([]store.SearchRow, error) {
	var rows []store.SearchRow
	err := s.db.NewRaw(
		"SELECT * FROM match_book_chunks(?, ?, ?)",
		pgvector.NewVector(p.Embedding), p.MatchCount, p.BookID,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, mapError("postgres.Search", err)
	}
	return rows, nil
}

func (s *Store) UpsertCharacters(ctx context.Context, bookID string, chars []store.Character) error {
	if len(chars) == 0 {
		return nil
	}
	now := time.Now()
	seen := make(map[string]int)
	models := make([]characterModel, 0, len(chars))
	for _, c := range chars {
		name := strings.TrimSpace(c.Name)
		m := characterModel{
			ID:               uuid.NewString(),
			BookID:           bookID,
			Name:             name,
			ShortDescription: c.ShortDescription,
			Persona:          c.Persona,
			ExamplePhrases:   pq.StringArray(c.ExamplePhrases),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		// One statement cannot upsert the same row twice.
		if i, ok := seen[name]; ok {
			models[i] = m
			continue
		}
		seen[name] = len(models)
		models = append(models, m)
	}

	_, err := s.db.NewInsert().
		Model(&models).
		On("CONFLICT (book_id, name) DO UPDATE").
		Set("short_description = EXCLUDED.short_description").
		Set("persona = EXCLUDED.persona").
		Set("example_phrases = EXCLUDED.example_phrases").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return mapError("postgres.UpsertCharacters", err)
}

func (s *Store) ListCharacters(ctx context.Context, bookID string) ([]store.Character, error) {
	var models []characterModel
	if err := s.db.NewSelect().Model(&models).Where("ch.book_id = ?", bookID).Order("ch.name ASC").Scan(ctx); err != nil {
		return nil, mapError("postgres.ListCharacters", err)
	}
	out := make([]store.Character, len(models))
	for i := range models {
		out[i] = models[i].toCharacter()
	}
	return out, nil
}

func (s *Store) GetCharacter(ctx context.Context, bookID, name string) (*store.Character, error) {
	m := new(characterModel)
	err := s.db.NewSelect().Model(m).
		Where("ch.book_id = ?", bookID).
		Where("lower(ch.name) = lower(?)", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapError("postgres.GetCharacter", err)
	}
	c := m.toCharacter()
	return &c, nil
}
