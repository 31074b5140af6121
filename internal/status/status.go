// Package status models a book's processing lifecycle and persists every
// transition.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackzampolin/lectern/internal/errs"
)

// Status is a book's processing state.
type Status string

const (
	Uploaded             Status = "uploaded"
	Extracting           Status = "extracting"
	Chunking             Status = "chunking"
	Embedding            Status = "embedding"
	EmbeddingsComplete   Status = "embeddings_complete"
	CharactersExtracting Status = "characters_extracting"
	CharactersDone       Status = "characters_done"
	Completed            Status = "completed"
	Error                Status = "error"
)

// All lists every status in lifecycle order.
var All = []Status{
	Uploaded, Extracting, Chunking, Embedding, EmbeddingsComplete,
	CharactersExtracting, CharactersDone, Completed, Error,
}

var transitions = map[Status][]Status{
	Uploaded:             {Extracting},
	Extracting:           {Chunking},
	Chunking:             {Embedding},
	Embedding:            {EmbeddingsComplete},
	EmbeddingsComplete:   {CharactersExtracting, Completed},
	CharactersExtracting: {CharactersDone},
	CharactersDone:       {Completed},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range All {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s is absorbing.
func (s Status) Terminal() bool {
	return s == Completed || s == Error
}

// InProgress reports whether a run is underway in s.
func (s Status) InProgress() bool {
	return s.Valid() && s != Uploaded && !s.Terminal()
}

// Searchable reports whether a book in s has embeddings to search.
func (s Status) Searchable() bool {
	switch s {
	case EmbeddingsComplete, CharactersExtracting, CharactersDone, Completed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is allowed. Any non-terminal
// status may move to Error; terminal statuses never move.
func CanTransition(from, to Status) bool {
	if from.Terminal() || !from.Valid() {
		return false
	}
	if to == Error {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Update is one persisted transition.
type Update struct {
	Status       Status
	Progress     int
	ProgressText string
	ErrorMessage string
}

// StepText is the readable progress recorded when a run enters s.
func StepText(s Status) string {
	switch s {
	case Uploaded:
		return "Queued for processing"
	case Extracting:
		return "Extracting text"
	case Chunking:
		return "Splitting text into chunks"
	case Embedding:
		return "Embedding chunks"
	case EmbeddingsComplete:
		return "Embeddings complete"
	case CharactersExtracting:
		return "Extracting characters"
	case CharactersDone:
		return "Characters extracted"
	case Completed:
		return "Completed"
	case Error:
		return "Failed"
	}
	return string(s)
}

// Persister stores status updates. Writes are last-write-wins.
type Persister interface {
	UpdateStatus(ctx context.Context, bookID string, u Update) error
}

// Tracker walks a single run of one book through the lifecycle.
type Tracker struct {
	bookID string
	store  Persister
	logger *slog.Logger

	mu       sync.Mutex
	current  Status
	progress int
	text     string
}

// NewTracker starts a run for bookID. The run begins at Uploaded and the
// reset is persisted, so a book leaving a terminal status does so only here.
func NewTracker(ctx context.Context, store Persister, bookID string, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		bookID:  bookID,
		store:   store,
		logger:  logger.With("book_id", bookID),
		current: Uploaded,
		text:    StepText(Uploaded),
	}
	if err := store.UpdateStatus(ctx, bookID, Update{Status: Uploaded, ProgressText: t.text}); err != nil {
		return nil, fmt.Errorf("failed to reset status: %w", err)
	}
	return t, nil
}

// Current returns the tracker's status and progress.
func (t *Tracker) Current() (Status, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.progress
}

// Text returns the last recorded progress text.
func (t *Tracker) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text
}

// Advance moves to the next status. Progress never decreases within a run.
// The progress text becomes StepText(to).
func (t *Tracker) Advance(ctx context.Context, to Status, progress int) error {
	if to == Error {
		return errs.Validation("status.Advance", "use Fail to enter %s", Error)
	}
	return t.transition(ctx, to, progress, StepText(to), "")
}

// Progress persists a progress change without changing status. An empty
// text keeps the current one. Nothing is written unless the percentage
// grows or the text changes.
func (t *Tracker) Progress(ctx context.Context, progress int, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current.Terminal() {
		return nil
	}
	progress = clamp(progress)
	if progress < t.progress {
		progress = t.progress
	}
	if text == "" {
		text = t.text
	}
	if progress == t.progress && text == t.text {
		return nil
	}
	u := Update{Status: t.current, Progress: progress, ProgressText: text}
	if err := t.store.UpdateStatus(ctx, t.bookID, u); err != nil {
		return fmt.Errorf("failed to persist progress: %w", err)
	}
	t.progress = progress
	t.text = text
	return nil
}

// Fail records cause and moves to Error. Failing a finished run is a no-op.
func (t *Tracker) Fail(ctx context.Context, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	t.mu.Lock()
	terminal := t.current.Terminal()
	from := t.current
	progress := t.progress
	t.mu.Unlock()
	if terminal {
		return nil
	}
	return t.transition(ctx, Error, progress, "Failed while "+strings.ToLower(StepText(from)), msg)
}

func (t *Tracker) transition(ctx context.Context, to Status, progress int, text, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !CanTransition(t.current, to) {
		return errs.Conflict("status.transition", "cannot move book %s from %s to %s", t.bookID, t.current, to)
	}
	progress = clamp(progress)
	if progress < t.progress {
		progress = t.progress
	}

	u := Update{Status: to, Progress: progress, ProgressText: text, ErrorMessage: errMsg}
	if err := t.store.UpdateStatus(ctx, t.bookID, u); err != nil {
		return fmt.Errorf("failed to persist status %s: %w", to, err)
	}

	t.logger.Info("status changed", "from", t.current, "to", to, "progress", progress)
	t.current = to
	t.progress = progress
	t.text = text
	return nil
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
