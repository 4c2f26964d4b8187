package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yt110010111/market-analysis-LLM/internal/storage"
	"github.com/yt110010111/market-analysis-LLM/pkg/leaselock"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/research"
)

// Runner is satisfied by *research.Orchestrator.
type Runner interface {
	Run(ctx context.Context, query string) research.Result
}

type Processor struct {
	Runner  Runner
	Archive storage.Archive
	Locker  leaselock.Locker
	Lease   leaselock.Options
}

// ProcessResearch runs one research job under the lease for its query and
// archives the outcome. A returned error asks for a retry unless it wraps
// ErrInvalidMessage.
func (p *Processor) ProcessResearch(ctx context.Context, body []byte) error {
	msg, err := ParseResearchJob(body)
	if err != nil {
		return err
	}

	job, err := p.Archive.Get(ctx, msg.JobID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		job = storage.Job{ID: msg.JobID, Query: msg.Query, CreatedAt: time.Now()}
	case err != nil:
		return fmt.Errorf("failed to load job %s: %w", msg.JobID, err)
	}
	if job.Status == storage.JobDone {
		logger.Info("[Queue] Job already done, skipping", "job", job.ID)
		return nil
	}

	job.Status = storage.JobRunning
	job.Attempts++
	job.UpdatedAt = time.Now()
	if err := p.Archive.Put(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job %s running: %w", job.ID, err)
	}

	var res research.Result
	err = p.Locker.WithLease(ctx, leaselock.QueryKey(msg.Query), p.Lease, func(ctx context.Context) error {
		res = p.Runner.Run(ctx, msg.Query)
		return nil
	})
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("failed to acquire research lease: %w", err))
	}

	switch res.Status {
	case research.StatusError:
		job.Result = &res
		return p.fail(ctx, job, errors.New(res.Error))
	case research.StatusCancelled:
		job.Result = &res
		return p.fail(ctx, job, fmt.Errorf("research cancelled: %s", res.Error))
	}

	job.Status = storage.JobDone
	job.Error = ""
	job.Result = &res
	job.UpdatedAt = time.Now()
	if err := p.Archive.Put(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("failed to archive job %s: %w", job.ID, err)
	}

	logger.Info("[Queue] Research job done",
		"job", job.ID,
		"status", res.Status,
		"stop_reason", res.StopReason,
		"entities", res.Stats.EntityCount,
	)
	return nil
}

func (p *Processor) fail(ctx context.Context, job storage.Job, cause error) error {
	job.Status = storage.JobFailed
	job.Error = cause.Error()
	job.UpdatedAt = time.Now()
	if err := p.Archive.Put(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("[Queue] Failed to record job failure", "job", job.ID, "err", err)
	}
	return cause
}
