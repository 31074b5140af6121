// Package pipeline turns an uploaded book into searchable chunks and, for
// fiction and children's books, personas. A run is started by Trigger and
// executes in the background as a ProcessBook job.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/lectern/internal/chunker"
	"github.com/jackzampolin/lectern/internal/dedup"
	"github.com/jackzampolin/lectern/internal/embedding"
	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/jobs"
	"github.com/jackzampolin/lectern/internal/personas"
	"github.com/jackzampolin/lectern/internal/status"
	"github.com/jackzampolin/lectern/internal/store"
)

// DocumentLoader fetches the source document of a book.
type DocumentLoader interface {
	Load(ctx context.Context, bookID string) ([]byte, error)
}

// Deps are the services a pipeline run needs. Personas may be nil, in
// which case persona stages are skipped for every book.
type Deps struct {
	Books     store.BookStore
	Chunks    store.ChunkStore
	Loader    DocumentLoader
	Embedding *embedding.Service
	Personas  *personas.Extractor
	Scheduler *jobs.Scheduler
	Locker    dedup.Locker
	Responses dedup.Responses
}

// Config configures a Service.
type Config struct {
	Chunking       chunker.Config
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Service starts processing runs.
type Service struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New creates a Service.
func New(deps Deps, cfg Config) (*Service, error) {
	switch {
	case deps.Books == nil:
		return nil, errors.New("pipeline: book store is required")
	case deps.Chunks == nil:
		return nil, errors.New("pipeline: chunk store is required")
	case deps.Loader == nil:
		return nil, errors.New("pipeline: document loader is required")
	case deps.Embedding == nil:
		return nil, errors.New("pipeline: embedding service is required")
	case deps.Scheduler == nil:
		return nil, errors.New("pipeline: scheduler is required")
	}
	if deps.Locker == nil {
		deps.Locker = dedup.NewMemoryLocker()
	}
	if deps.Responses == nil {
		deps.Responses = dedup.NewMemoryResponses()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = dedup.DefaultLockTTL
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = dedup.DefaultIdempotencyTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger}, nil
}

// TriggerRequest asks for a processing run.
type TriggerRequest struct {
	BookID string `json:"book_id"`
	Force  bool   `json:"force,omitempty"`
}

// Accepted is the reply to an accepted trigger.
type Accepted struct {
	JobID  string        `json:"job_id"`
	BookID string        `json:"book_id"`
	Status status.Status `json:"status"`
}

// Trigger starts a processing run for req.BookID and returns once the job is
// queued. A non-empty idempotencyKey seen before with the same request
// replays the stored reply and reports replayed=true.
func (s *Service) Trigger(ctx context.Context, req TriggerRequest, idempotencyKey string) (accepted *Accepted, replayed bool, err error) {
	if req.BookID == "" {
		return nil, false, errs.Validation("pipeline.Trigger", "book_id is required")
	}

	fingerprint := fingerprintOf(req)
	if idempotencyKey != "" {
		prev, ok, err := s.deps.Responses.Get(ctx, idempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read idempotency record: %w", err)
		}
		if ok {
			if prev.Fingerprint != fingerprint {
				return nil, false, errs.Conflict("pipeline.Trigger", "idempotency key %q was used for a different request", idempotencyKey)
			}
			var a Accepted
			if err := json.Unmarshal(prev.Body, &a); err != nil {
				return nil, false, fmt.Errorf("failed to decode stored response: %w", err)
			}
			return &a, true, nil
		}
	}

	release, ok, err := s.deps.Locker.Acquire(ctx, "process:"+req.BookID, s.cfg.LockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire processing lock: %w", err)
	}
	if !ok {
		return nil, false, errs.Conflict("pipeline.Trigger", "processing for book %s is already starting", req.BookID)
	}
	defer release()

	accepted, err = s.start(ctx, req)
	if err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		body, err := json.Marshal(accepted)
		if err == nil {
			err = s.deps.Responses.Put(ctx, idempotencyKey, &dedup.Response{
				StatusCode:  202,
				Body:        body,
				Fingerprint: fingerprint,
			}, s.cfg.IdempotencyTTL)
		}
		if err != nil {
			s.logger.Warn("failed to store idempotent response", "book_id", req.BookID, "error", err)
		}
	}
	return accepted, false, nil
}

// start runs under the book's lock. The book leaves the re-triggerable
// statuses before the lock is released, so a concurrent trigger that waits
// for the lock sees the run as in progress.
func (s *Service) start(ctx context.Context, req TriggerRequest) (*Accepted, error) {
	book, err := s.deps.Books.GetBook(ctx, req.BookID)
	if err != nil {
		return nil, err
	}

	active, err := s.activeJob(ctx, book.ID)
	if err != nil {
		return nil, err
	}
	if err := CheckRetrigger(book.Status, req.Force, active != ""); err != nil {
		return nil, err
	}

	logger := s.logger.With("book_id", book.ID)
	tracker, err := status.NewTracker(ctx, s.deps.Books, book.ID, logger)
	if err != nil {
		return nil, err
	}
	if err := tracker.Advance(ctx, status.Extracting, 0); err != nil {
		return nil, err
	}

	job := &ProcessBook{
		book:    book,
		tracker: tracker,
		svc:     s,
		logger:  logger,
	}
	id, err := s.deps.Scheduler.Submit(ctx, job)
	if err != nil {
		if ferr := tracker.Fail(ctx, err); ferr != nil {
			logger.Warn("failed to record submit failure", "error", ferr)
		}
		return nil, fmt.Errorf("failed to submit processing job: %w", err)
	}
	logger.Info("processing triggered", "job_id", id, "force", req.Force, "previous_status", book.Status)

	return &Accepted{JobID: id, BookID: book.ID, Status: status.Extracting}, nil
}

// activeJob returns the ID of an unfinished processing job for bookID.
func (s *Service) activeJob(ctx context.Context, bookID string) (string, error) {
	records, err := s.deps.Scheduler.Manager().List(ctx, jobs.ListFilter{JobType: JobType, BookID: bookID})
	if err != nil {
		return "", fmt.Errorf("failed to list jobs: %w", err)
	}
	for _, r := range records {
		if !r.Status.Terminal() {
			return r.ID, nil
		}
	}
	return "", nil
}

// CheckRetrigger applies the re-trigger policy: uploaded and error books
// start a new run, completed books need force, and a book with a running
// job is always refused. A book left mid-pipeline with no job behind it
// (a crashed run) restarts only with force.
func CheckRetrigger(current status.Status, force, jobActive bool) error {
	const op = "pipeline.CheckRetrigger"
	if jobActive {
		return errs.Conflict(op, "book is already processing (status %s)", current)
	}
	switch {
	case current == status.Uploaded, current == status.Error:
		return nil
	case current == status.Completed:
		if !force {
			return errs.Conflict(op, "book is already completed; use force to reprocess")
		}
		return nil
	case current.InProgress():
		if !force {
			return errs.Conflict(op, "book is mid-pipeline (status %s)", current)
		}
		return nil
	}
	return errs.Validation(op, "unknown book status %q", current)
}

func fingerprintOf(req TriggerRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%t", req.BookID, req.Force)))
	return hex.EncodeToString(sum[:8])
}
