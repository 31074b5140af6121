// Package embedding turns stored chunks into vectors with a bounded pool of
// batched provider calls.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/providers"
	"github.com/jackzampolin/lectern/internal/store"
)

const (
	DefaultBatchSize   = 16
	DefaultConcurrency = 5
)

// Config configures a Service.
type Config struct {
	BatchSize   int
	Concurrency int
	// Dimensions every vector must have. Defaults to the embedder's.
	Dimensions int
	Logger     *slog.Logger
}

// Service embeds chunks and writes the vectors back to the chunk store.
type Service struct {
	embedder providers.Embedder
	chunks   store.ChunkStore
	cfg      Config
	logger   *slog.Logger
}

// New creates a Service.
func New(embedder providers.Embedder, chunks store.ChunkStore, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, chunks: chunks, cfg: cfg, logger: logger}
}

// ProgressFunc is called after each batch with the number of chunks done.
// Calls are serialized.
type ProgressFunc func(done, total int)

// EmbedAll embeds chunks in batches and stores each vector on the row that
// ids maps the chunk's index to. The first failure cancels the remaining
// batches and is returned.
func (s *Service) EmbedAll(ctx context.Context, bookID string, chunks []store.Chunk, ids map[int]string, progress ProgressFunc) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if _, ok := ids[c.ChunkIndex]; !ok {
			return errs.E(errs.KindInternal, "embedding.EmbedAll",
				fmt.Sprintf("no row id for chunk %d", c.ChunkIndex), nil)
		}
	}

	batches := batch(chunks, s.cfg.BatchSize)
	s.logger.Info("embedding chunks",
		"book_id", bookID,
		"chunks", len(chunks),
		"batches", len(batches),
		"concurrency", s.cfg.Concurrency)

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, b := range batches {
		g.Go(func() error {
			vecs, err := s.embedBatch(gctx, b)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}

			out := make([]store.ChunkEmbedding, len(b))
			for j, c := range b {
				out[j] = store.ChunkEmbedding{ChunkID: ids[c.ChunkIndex], Vector: vecs[j]}
			}
			if err := s.chunks.SetEmbeddings(gctx, bookID, out); err != nil {
				return fmt.Errorf("batch %d: failed to store embeddings: %w", i, err)
			}

			if progress != nil {
				mu.Lock()
				done += len(b)
				progress(done, len(chunks))
				mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}

// EmbedQuery embeds a single search text.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *Service) embedBatch(ctx context.Context, b []store.Chunk) ([][]float32, error) {
	texts := make([]string, len(b))
	for i, c := range b {
		texts[i] = c.Content
	}
	return s.embed(ctx, texts)
}

func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, errs.E(errs.KindExternal, "embedding.embed",
			fmt.Sprintf("provider returned %d vectors for %d texts", len(vecs), len(texts)), nil)
	}
	want := s.dimensions()
	for i, v := range vecs {
		if want > 0 && len(v) != want {
			return nil, errs.E(errs.KindExternal, "embedding.embed",
				fmt.Sprintf("vector %d has %d dimensions, want %d", i, len(v), want), nil)
		}
	}
	return vecs, nil
}

func (s *Service) dimensions() int {
	if s.cfg.Dimensions > 0 {
		return s.cfg.Dimensions
	}
	return s.embedder.Dimensions()
}

func batch(chunks []store.Chunk, size int) [][]store.Chunk {
	out := make([][]store.Chunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		out = append(out, chunks[start:min(start+size, len(chunks))])
	}
	return out
}
