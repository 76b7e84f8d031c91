// Package batchcoordinator implements the Batch Backtest Coordinator (C8):
// validates a batch submission, reserves quota, atomically creates the
// batch and its child jobs in one transaction, and emits one BacktestRequest
// per child. Grounded on spec §4.8's four submission steps; the atomic
// counter-and-status transition on child completion is delegated to
// repository.BatchRepository.RecordChildTerminal, whose concrete Postgres
// implementation is a single conditional UPDATE statement (grounded on
// original_source/services/api/internal/app/crud/crud_batch_backtests.py).
package batchcoordinator

import (
	"context"
	"fmt"
	"time"

	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
	"tradeforge-core/pkg/apperrors"
	"tradeforge-core/pkg/kafka"
)

// MaxChildYears bounds a child job's date range; the caller is expected to
// have already resolved the user's tier into this value (the core does not
// itself enforce per-tenant tiers, per spec's Non-goals).
const MaxChildYears = 5

// ChildSpec is one backtest to run as part of a batch submission.
type ChildSpec struct {
	StrategyID string
	Ticker     string
	Timeframe  domain.Timeframe
	StartDate  time.Time
	EndDate    time.Time
}

// SubmissionRequest is a batch submission: a description plus 1..50 child
// specs.
type SubmissionRequest struct {
	UserID      string
	Description string
	Children    []ChildSpec
}

// RequestPublisher emits one BacktestRequest per child job, keyed by job_id.
type RequestPublisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

type Coordinator struct {
	Batches repository.BatchRepository
	Quota   repository.QuotaRepository
	Reqs    RequestPublisher
}

func New(batches repository.BatchRepository, quota repository.QuotaRepository, reqs RequestPublisher) *Coordinator {
	return &Coordinator{Batches: batches, Quota: quota, Reqs: reqs}
}

// Submit validates req, reserves quota, atomically creates the batch and
// its children, and emits the child BacktestRequest events. Returns the
// created batch on success.
func (c *Coordinator) Submit(ctx context.Context, req SubmissionRequest) (*domain.BacktestBatch, error) {
	if err := c.validate(req); err != nil {
		return nil, apperrors.NewValidationError("batchcoordinator: invalid submission", err)
	}

	if err := c.Quota.CheckAndReserve(ctx, req.UserID, len(req.Children)); err != nil {
		return nil, apperrors.NewValidationError("batchcoordinator: quota exceeded", err)
	}

	now := time.Now()
	batch := &domain.BacktestBatch{
		UserID:      req.UserID,
		Description: req.Description,
		Status:      domain.BatchStatusPending,
		TotalCount:  len(req.Children),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	jobs := make([]domain.BacktestJob, len(req.Children))
	for i, child := range req.Children {
		jobs[i] = domain.BacktestJob{
			UserID:             req.UserID,
			StrategyID:         child.StrategyID,
			Ticker:             child.Ticker,
			Timeframe:          child.Timeframe,
			StartDate:          child.StartDate,
			EndDate:            child.EndDate,
			Status:             domain.BacktestStatusPending,
			CountsTowardsLimit: true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
	}

	if err := c.Batches.CreateWithJobs(ctx, batch, jobs); err != nil {
		return nil, apperrors.NewRetryableError("batchcoordinator: failed to create batch", err)
	}

	for _, job := range jobs {
		if err := c.Reqs.Publish(ctx, job.ID, kafka.BacktestRequest{JobID: job.ID}); err != nil {
			return nil, apperrors.NewRetryableError("batchcoordinator: failed to publish child request", err)
		}
	}

	return batch, nil
}

func (c *Coordinator) validate(req SubmissionRequest) error {
	n := len(req.Children)
	if n == 0 {
		return fmt.Errorf("batch must contain at least 1 child")
	}
	if n > domain.MaxBatchChildren {
		return fmt.Errorf("batch of %d children exceeds max of %d", n, domain.MaxBatchChildren)
	}
	for i, child := range req.Children {
		if !child.Timeframe.Valid() {
			return fmt.Errorf("child %d: invalid timeframe %q", i, child.Timeframe)
		}
		if !child.EndDate.After(child.StartDate) {
			return fmt.Errorf("child %d: end_date must be after start_date", i)
		}
		if child.EndDate.Sub(child.StartDate) > MaxChildYears*365*24*time.Hour {
			return fmt.Errorf("child %d: date range exceeds %d years", i, MaxChildYears)
		}
	}
	return nil
}

// HandleChildTerminal records one child job's terminal outcome against its
// batch and returns the batch's post-update state.
func (c *Coordinator) HandleChildTerminal(ctx context.Context, batchID string, succeeded bool) (domain.BacktestBatch, error) {
	return c.Batches.RecordChildTerminal(ctx, batchID, succeeded)
}
