package jobs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/lectern/internal/errs"
)

// DefaultListLimit caps List when the filter sets no limit.
const DefaultListLimit = 100

// Manager handles job record CRUD operations in memory.
// It does not execute jobs - that's handled by the Scheduler, which
// updates job status via the manager.
type Manager struct {
	mu      sync.RWMutex
	records map[string]*Record
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a new job manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		records: make(map[string]*Record),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new queued job record and returns its ID.
func (m *Manager) Create(ctx context.Context, jobType string, metadata map[string]any) (string, error) {
	record := NewRecord(jobType, copyMeta(metadata))
	record.ID = uuid.NewString()
	record.CreatedAt = m.now()

	m.mu.Lock()
	m.records[record.ID] = record
	m.mu.Unlock()

	m.logger.Info("job created", "id", record.ID, "type", jobType)
	return record.ID, nil
}

// Get returns a copy of a job record by ID.
func (m *Manager) Get(ctx context.Context, jobID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[jobID]
	if !ok {
		return nil, errs.NotFound("jobs.Get", "job not found: %s", jobID)
	}
	return r.clone(), nil
}

// ListFilter specifies criteria for listing jobs.
type ListFilter struct {
	Status  Status // Filter by status (empty = all)
	JobType string // Filter by job type (empty = all)
	BookID  string // Filter by metadata book_id (empty = all)
	Limit   int    // Max results (0 = default 100)
}

// List returns jobs matching the filter, newest first.
func (m *Manager) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	m.mu.RLock()
	out := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.JobType != "" && r.JobType != filter.JobType {
			continue
		}
		if filter.BookID != "" && r.Metadata["book_id"] != filter.BookID {
			continue
		}
		out = append(out, r.clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateStatus updates a job's status and stamps start and completion times.
func (m *Manager) UpdateStatus(ctx context.Context, jobID string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[jobID]
	if !ok {
		return errs.NotFound("jobs.UpdateStatus", "job not found: %s", jobID)
	}
	now := m.now()
	r.Status = status
	r.Error = errMsg
	if status == StatusRunning && r.StartedAt == nil {
		r.StartedAt = &now
	}
	if status.Terminal() {
		r.CompletedAt = &now
	}
	return nil
}

// UpdateMetadata merges metadata into a job's record (for progress tracking).
func (m *Manager) UpdateMetadata(ctx context.Context, jobID string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[jobID]
	if !ok {
		return errs.NotFound("jobs.UpdateMetadata", "job not found: %s", jobID)
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]any, len(metadata))
	}
	for k, v := range metadata {
		r.Metadata[k] = v
	}
	return nil
}

// Delete removes a finished job's record.
func (m *Manager) Delete(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[jobID]
	if !ok {
		return errs.NotFound("jobs.Delete", "job not found: %s", jobID)
	}
	if !r.Status.Terminal() {
		return errs.Conflict("jobs.Delete", "job %s is %s", jobID, r.Status)
	}
	delete(m.records, jobID)
	return nil
}

func (r *Record) clone() *Record {
	c := *r
	c.Metadata = copyMeta(r.Metadata)
	return &c
}

func copyMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
