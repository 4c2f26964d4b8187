// Package storage archives research jobs and their reports.
package storage

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/yt110010111/market-analysis-LLM/pkg/research"
)

var ErrNotFound = errors.New("report not found")

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job tracks one asynchronous research request. Result is set once the
// worker finishes.
type Job struct {
	ID        string           `json:"id"`
	Query     string           `json:"query"`
	Status    JobStatus        `json:"status"`
	Error     string           `json:"error,omitempty"`
	Attempts  int              `json:"attempts"`
	Result    *research.Result `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type Archive interface {
	Put(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	List(ctx context.Context) ([]string, error)
}

// Memory keeps jobs in process. It backs tests and deployments without S3.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

var _ Archive = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]Job)}
}

func (m *Memory) Put(ctx context.Context, job Job) error {
	if job.ID == "" {
		return errors.New("job id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
