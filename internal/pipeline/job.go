package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jackzampolin/lectern/internal/chunker"
	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/extract"
	"github.com/jackzampolin/lectern/internal/status"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/types"
)

// JobType identifies processing jobs in the job records.
const JobType = "process-book"

// Progress checkpoints of a run. Embedding fills the span between
// progressEmbedding and progressEmbedded as batches finish.
const (
	progressExtracting    = 5
	progressChunking      = 20
	progressEmbedding     = 30
	progressEmbedded      = 85
	progressCharacters    = 90
	progressCharactersEnd = 95
	progressDone          = 100
)

// ProcessBook is one processing run of one book.
type ProcessBook struct {
	book    *store.Book
	tracker *status.Tracker
	svc     *Service
	logger  *slog.Logger

	mu       sync.Mutex
	recordID string
	step     string
	pages    []types.Page
	chunks   []store.Chunk
	ids      map[int]string
	embedded int
	personas int
}

func (j *ProcessBook) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.recordID
}

func (j *ProcessBook) SetRecordID(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recordID = id
}

func (j *ProcessBook) Type() string {
	return JobType
}

// Status reports the run's step and counters.
func (j *ProcessBook) Status(ctx context.Context) (map[string]string, error) {
	st, progress := j.tracker.Current()
	text := j.tracker.Text()
	j.mu.Lock()
	defer j.mu.Unlock()
	return map[string]string{
		"book_id":       j.book.ID,
		"step":          j.step,
		"status":        string(st),
		"progress":      strconv.Itoa(progress),
		"progress_text": text,
		"pages":         strconv.Itoa(len(j.pages)),
		"chunks":        strconv.Itoa(len(j.chunks)),
		"embedded":      strconv.Itoa(j.embedded),
		"personas":      strconv.Itoa(j.personas),
	}, nil
}

// Execute runs every stage in order. The first failure moves the book to
// error with the failure's message and halts the run.
func (j *ProcessBook) Execute(ctx context.Context) error {
	for _, st := range j.stages() {
		if err := ctx.Err(); err != nil {
			return j.fail(ctx, err)
		}
		j.setStep(st.name)
		if err := j.enter(ctx, st.status, st.progress); err != nil {
			return j.fail(ctx, err)
		}
		if st.run == nil {
			continue
		}
		if err := st.run(ctx); err != nil {
			return j.fail(ctx, fmt.Errorf("%s: %w", st.name, err))
		}
	}
	j.logger.Info("processing completed", "chunks", len(j.chunks), "personas", j.personas)
	return nil
}

type stage struct {
	name     string
	status   status.Status
	progress int
	run      func(ctx context.Context) error
}

func (j *ProcessBook) stages() []stage {
	out := []stage{
		{name: "extract", status: status.Extracting, progress: progressExtracting, run: j.extract},
		{name: "chunk", status: status.Chunking, progress: progressChunking, run: j.chunk},
		{name: "embed", status: status.Embedding, progress: progressEmbedding, run: j.embed},
		{name: "embedded", status: status.EmbeddingsComplete, progress: progressEmbedded},
	}
	if j.svc.deps.Personas != nil && j.book.WantsPersonas() {
		out = append(out,
			stage{name: "personas", status: status.CharactersExtracting, progress: progressCharacters, run: j.extractPersonas},
			stage{name: "personas-done", status: status.CharactersDone, progress: progressCharactersEnd},
		)
	}
	return append(out, stage{name: "done", status: status.Completed, progress: progressDone})
}

// enter advances to to, or only records progress when the run is already
// there.
func (j *ProcessBook) enter(ctx context.Context, to status.Status, progress int) error {
	if cur, _ := j.tracker.Current(); cur == to {
		return j.tracker.Progress(ctx, progress, status.StepText(to))
	}
	return j.tracker.Advance(ctx, to, progress)
}

func (j *ProcessBook) fail(ctx context.Context, cause error) error {
	j.logger.Error("processing failed", "step", j.currentStep(), "error", cause)
	if err := j.tracker.Fail(context.WithoutCancel(ctx), cause); err != nil {
		j.logger.Warn("failed to record failure", "error", err)
	}
	return cause
}

func (j *ProcessBook) extract(ctx context.Context) error {
	data, err := j.svc.deps.Loader.Load(ctx, j.book.ID)
	if err != nil {
		return err
	}
	pages, err := extract.Pages(data, extract.KindOf(j.book.FileType))
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.pages = pages
	j.mu.Unlock()
	j.logger.Info("extracted pages", "pages", len(pages), "bytes", len(data))
	return j.tracker.Progress(ctx, progressExtracting, fmt.Sprintf("Extracted %d pages", len(pages)))
}

func (j *ProcessBook) chunk(ctx context.Context) error {
	split := chunker.Split(j.pages, j.svc.cfg.Chunking)
	if len(split) == 0 {
		return errs.Validation("pipeline.chunk", "document produced no chunks")
	}
	chunks := ToStoreChunks(j.book.ID, split)
	ids, err := j.svc.deps.Chunks.ReplaceChunks(ctx, j.book.ID, chunks)
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	j.mu.Lock()
	j.chunks = chunks
	j.ids = ids
	j.pages = nil
	j.mu.Unlock()
	j.logger.Info("stored chunks", "chunks", len(chunks))
	return j.tracker.Progress(ctx, progressChunking, fmt.Sprintf("Stored %d chunks", len(chunks)))
}

func (j *ProcessBook) embed(ctx context.Context) error {
	span := progressEmbedded - progressEmbedding
	return j.svc.deps.Embedding.EmbedAll(ctx, j.book.ID, j.chunks, j.ids, func(done, total int) {
		j.mu.Lock()
		j.embedded = done
		j.mu.Unlock()
		p := progressEmbedding + span*done/total
		if p >= progressEmbedded {
			p = progressEmbedded - 1
		}
		if err := j.tracker.Progress(ctx, p, fmt.Sprintf("Embedding %d/%d chunks", done, total)); err != nil {
			j.logger.Warn("failed to record embedding progress", "error", err)
		}
	})
}

func (j *ProcessBook) extractPersonas(ctx context.Context) error {
	chars, err := j.svc.deps.Personas.Extract(ctx, j.book)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.personas = len(chars)
	j.mu.Unlock()
	return j.tracker.Progress(ctx, progressCharacters, fmt.Sprintf("Extracted %d characters", len(chars)))
}

func (j *ProcessBook) setStep(name string) {
	j.mu.Lock()
	j.step = name
	j.mu.Unlock()
}

func (j *ProcessBook) currentStep() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.step
}

// ToStoreChunks converts chunker output into rows for bookID.
func ToStoreChunks(bookID string, split []chunker.Chunk) []store.Chunk {
	out := make([]store.Chunk, len(split))
	for i, c := range split {
		start := c.StartPage
		out[i] = store.Chunk{
			BookID:        bookID,
			ChunkIndex:    c.Index,
			Content:       c.Content,
			TokenCount:    c.TokenCount,
			StartPage:     c.StartPage,
			EndPage:       c.EndPage,
			ChapterNumber: c.ChapterNumber,
			Metadata: store.ChunkMetadata{
				ChapterNumber:  c.ChapterNumber,
				ChapterHeading: c.ChapterHeading,
				PageNumber:     &start,
			},
		}
	}
	return out
}
