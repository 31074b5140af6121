// Package memory is an in-process Store. Chunk search is served by an
// embedded chromem-go index, optionally persisted to disk.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/status"
	"github.com/jackzampolin/lectern/internal/store"
)

// Store keeps books, chunks and characters in maps.
type Store struct {
	mu         sync.RWMutex
	books      map[string]*store.Book
	chunks     map[string][]store.Chunk // book id -> chunks by index
	characters map[string]map[string]*store.Character

	vectors *chromem.DB
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store. When path is set the vector index is
// persisted there.
func New(path string) (*Store, error) {
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector index at %s: %w", path, err)
		}
	}
	return &Store{
		books:      make(map[string]*store.Book),
		chunks:     make(map[string][]store.Chunk),
		characters: make(map[string]map[string]*store.Character),
		vectors:    db,
		now:        time.Now,
	}, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

func (s *Store) CreateBook(ctx context.Context, b *store.Book) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = status.Uploaded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[b.ID]; ok {
		return errs.Conflict("memory.CreateBook", "book %s already exists", b.ID)
	}
	now := s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	s.books[b.ID] = &cp
	return nil
}

func (s *Store) GetBook(ctx context.Context, id string) (*store.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return nil, errs.NotFound("memory.GetBook", "book %s not found", id)
	}
	cp := *b
	return &cp, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, u status.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return errs.NotFound("memory.UpdateStatus", "book %s not found", id)
	}
	b.Status = u.Status
	b.Progress = u.Progress
	b.ProgressText = u.ProgressText
	b.ErrorMessage = u.ErrorMessage
	b.UpdatedAt = s.now()
	return nil
}

func collectionName(bookID string) string {
	return "book-" + bookID
}

func (s *Store) ReplaceChunks(ctx context.Context, bookID string, chunks []store.Chunk) (map[int]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[bookID]; !ok {
		return nil, errs.NotFound("memory.ReplaceChunks", "book %s not found", bookID)
	}
	if err := s.vectors.DeleteCollection(collectionName(bookID)); err != nil {
		return nil, fmt.Errorf("failed to drop vector collection: %w", err)
	}

	ids := make(map[int]string, len(chunks))
	stored := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		c.ID = uuid.NewString()
		c.BookID = bookID
		c.Embedding = nil
		stored[i] = c
		ids[c.ChunkIndex] = c.ID
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].ChunkIndex < stored[j].ChunkIndex })
	s.chunks[bookID] = stored
	return ids, nil
}

func (s *Store) SetEmbeddings(ctx context.Context, bookID string, embeddings []store.ChunkEmbedding) error {
	s.mu.Lock()
	byID := make(map[string]*store.Chunk)
	for i := range s.chunks[bookID] {
		byID[s.chunks[bookID][i].ID] = &s.chunks[bookID][i]
	}
	docs := make([]chromem.Document, 0, len(embeddings))
	for _, e := range embeddings {
		c, ok := byID[e.ChunkID]
		if !ok {
			s.mu.Unlock()
			return errs.NotFound("memory.SetEmbeddings", "chunk %s not found", e.ChunkID)
		}
		c.Embedding = e.Vector
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Embedding: e.Vector,
			Metadata:  documentMetadata(c),
		})
	}
	s.mu.Unlock()

	col, err := s.vectors.GetOrCreateCollection(collectionName(bookID), map[string]string{"book_id": bookID}, nil)
	if err != nil {
		return fmt.Errorf("failed to open vector collection: %w", err)
	}
	for _, doc := range docs {
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", doc.ID, err)
		}
	}
	return nil
}

// documentMetadata flattens chunk metadata into chromem's string map.
func documentMetadata(c *store.Chunk) map[string]string {
	m := map[string]string{
		"book_id":     c.BookID,
		"chunk_index": strconv.Itoa(c.ChunkIndex),
		"page_number": strconv.Itoa(c.StartPage),
	}
	if c.ChapterNumber != nil {
		m["chapter_number"] = strconv.Itoa(*c.ChapterNumber)
	}
	if c.Metadata.ChapterHeading != "" {
		m["chapter_heading"] = c.Metadata.ChapterHeading
	}
	return m
}

func (s *Store) ListChunks(ctx context.Context, bookID string, limit int) ([]store.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.chunks[bookID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]store.Chunk, limit)
	copy(out, all[:limit])
	return out, nil
}

// Search queries the book's collection. Hits carry chapter and page only in
// metadata, as strings.
func (s *Store) Search(ctx context.Context, p store.SearchParams) ([]store.SearchRow, error) {
	col := s.vectors.GetCollection(collectionName(p.BookID), nil)
	if col == nil || col.Count() == 0 {
		return nil, nil
	}
	n := p.MatchCount
	if n > col.Count() {
		n = col.Count()
	}
	results, err := col.QueryEmbedding(ctx, p.Embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	rows := make([]store.SearchRow, 0, len(results))
	for _, r := range results {
		row := store.SearchRow{
			ID:         r.ID,
			Content:    r.Content,
			Similarity: float64(r.Similarity),
		}
		row.Metadata.ChapterNumber.Scan(r.Metadata["chapter_number"])
		row.Metadata.PageNumber.Scan(r.Metadata["page_number"])
		if h, ok := r.Metadata["chapter_heading"]; ok {
			row.Metadata.ChapterHeading = &h
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) UpsertCharacters(ctx context.Context, bookID string, chars []store.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[bookID]; !ok {
		return errs.NotFound("memory.UpsertCharacters", "book %s not found", bookID)
	}
	byName := s.characters[bookID]
	if byName == nil {
		byName = make(map[string]*store.Character)
		s.characters[bookID] = byName
	}
	now := s.now()
	for _, c := range chars {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if existing, ok := byName[key]; ok {
			existing.ShortDescription = c.ShortDescription
			existing.Persona = c.Persona
			existing.ExamplePhrases = append([]string(nil), c.ExamplePhrases...)
			existing.UpdatedAt = now
			continue
		}
		c.ID = uuid.NewString()
		c.BookID = bookID
		c.Name = strings.TrimSpace(c.Name)
		c.ExamplePhrases = append([]string(nil), c.ExamplePhrases...)
		c.CreatedAt, c.UpdatedAt = now, now
		byName[key] = &c
	}
	return nil
}

func (s *Store) ListCharacters(ctx context.Context, bookID string) ([]store.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Character, 0, len(s.characters[bookID]))
	for _, c := range s.characters[bookID] {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCharacter(ctx context.Context, bookID, name string) (*store.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.characters[bookID][strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errs.NotFound("memory.GetCharacter", "character %q not found in book %s", name, bookID)
	}
	cp := *c
	return &cp, nil
}
