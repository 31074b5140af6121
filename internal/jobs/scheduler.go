package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMaxConcurrent bounds jobs executing at once.
const DefaultMaxConcurrent = 4

// Scheduler executes submitted jobs in the background, at most
// MaxConcurrent at a time, and keeps their records current.
type Scheduler struct {
	mu      sync.RWMutex
	jobs    map[string]Job                // active jobs by ID
	cancels map[string]context.CancelFunc // active job cancel funcs
	manager *Manager
	logger  *slog.Logger

	slots chan struct{}
	wg    sync.WaitGroup

	baseCtx  context.Context
	stopBase context.CancelFunc
}

// SchedulerConfig configures a new scheduler.
type SchedulerConfig struct {
	Manager       *Manager
	Logger        *slog.Logger
	MaxConcurrent int
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	manager := cfg.Manager
	if manager == nil {
		manager = NewManager(logger)
	}
	n := cfg.MaxConcurrent
	if n <= 0 {
		n = DefaultMaxConcurrent
	}
	base, stop := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:     make(map[string]Job),
		cancels:  make(map[string]context.CancelFunc),
		manager:  manager,
		logger:   logger,
		slots:    make(chan struct{}, n),
		baseCtx:  base,
		stopBase: stop,
	}
}

// Manager returns the scheduler's record manager.
func (s *Scheduler) Manager() *Manager {
	return s.manager
}

// Submit records job, assigns its ID and starts it in the background.
// The job runs detached from ctx; use Cancel or Shutdown to stop it.
func (s *Scheduler) Submit(ctx context.Context, job Job) (string, error) {
	metadata, err := job.Status(ctx)
	if err != nil {
		s.logger.Warn("failed to get initial job status", "type", job.Type(), "error", err)
	}
	metadataMap := make(map[string]any, len(metadata))
	for k, v := range metadata {
		metadataMap[k] = v
	}

	recordID, err := s.manager.Create(ctx, job.Type(), metadataMap)
	if err != nil {
		return "", fmt.Errorf("failed to create job record: %w", err)
	}
	job.SetRecordID(recordID)

	runCtx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	s.jobs[recordID] = job
	s.cancels[recordID] = cancel
	s.mu.Unlock()

	s.logger.Info("job submitted", "id", recordID, "type", job.Type())

	s.wg.Add(1)
	go s.run(runCtx, job)
	return recordID, nil
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	defer s.wg.Done()
	id := job.ID()
	logger := s.logger.With("job_id", id, "type", job.Type())

	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[id]; ok {
			cancel()
		}
		delete(s.jobs, id)
		delete(s.cancels, id)
		s.mu.Unlock()
	}()

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		s.finish(id, job, StatusCancelled, "cancelled before start")
		return
	}
	defer func() { <-s.slots }()

	if err := s.manager.UpdateStatus(ctx, id, StatusRunning, ""); err != nil {
		logger.Warn("failed to update job status", "error", err)
	}

	err := s.execute(ctx, job)
	switch {
	case err == nil:
		s.finish(id, job, StatusCompleted, "")
		logger.Info("job completed")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		s.finish(id, job, StatusCancelled, err.Error())
		logger.Info("job cancelled")
	default:
		s.finish(id, job, StatusFailed, err.Error())
		logger.Error("job failed", "error", err)
	}
}

// execute runs the job, converting a panic into an error.
func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Execute(ctx)
}

func (s *Scheduler) finish(id string, job Job, status Status, errMsg string) {
	ctx := context.Background()
	if st, err := job.Status(ctx); err == nil && st != nil {
		meta := make(map[string]any, len(st))
		for k, v := range st {
			meta[k] = v
		}
		s.manager.UpdateMetadata(ctx, id, meta)
	}
	s.manager.UpdateStatus(ctx, id, status, errMsg)
}

// Get returns a job's record with live status merged into its metadata.
func (s *Scheduler) Get(ctx context.Context, id string) (*Record, error) {
	record, err := s.manager.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if ok {
		if st, err := job.Status(ctx); err == nil {
			if record.Metadata == nil {
				record.Metadata = make(map[string]any, len(st))
			}
			for k, v := range st {
				record.Metadata[k] = v
			}
		}
	}
	return record, nil
}

// Cancel stops an active job. It reports whether the job was active.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.RLock()
	cancel, ok := s.cancels[id]
	s.mu.RUnlock()
	if ok {
		cancel()
	}
	return ok
}

// ActiveCount returns the number of submitted jobs that have not finished.
func (s *Scheduler) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Shutdown cancels all active jobs and waits for them to return or for ctx
// to end.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.stopBase()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every submitted job has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
