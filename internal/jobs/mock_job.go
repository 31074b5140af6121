package jobs

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

const MockJobType = "mock"

// MockJob is a simple job for testing the job system.
type MockJob struct {
	id string

	// Block, when set, holds Execute until it is closed or ctx ends.
	Block chan struct{}
	// Fail makes Execute return an error.
	Fail bool
	// Panic makes Execute panic.
	Panic bool

	executed atomic.Int32

	mu    sync.Mutex
	steps int
}

// NewMockJob creates a mock job.
func NewMockJob() *MockJob {
	return &MockJob{}
}

// ID returns the record ID. Empty until submitted.
func (j *MockJob) ID() string {
	return j.id
}

// SetRecordID sets the record ID at submission.
func (j *MockJob) SetRecordID(id string) {
	j.id = id
}

func (j *MockJob) Type() string {
	return MockJobType
}

// Execute runs the mock work.
func (j *MockJob) Execute(ctx context.Context) error {
	j.executed.Add(1)
	if j.Block != nil {
		select {
		case <-j.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if j.Panic {
		panic("mock job panic")
	}
	j.mu.Lock()
	j.steps++
	j.mu.Unlock()
	if j.Fail {
		return fmt.Errorf("mock job configured to fail")
	}
	return nil
}

// Executed returns how many times Execute ran.
func (j *MockJob) Executed() int {
	return int(j.executed.Load())
}

// Status reports completed steps.
func (j *MockJob) Status(ctx context.Context) (map[string]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return map[string]string{"steps": strconv.Itoa(j.steps)}, nil
}
