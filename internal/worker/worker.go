// Package worker drains queued campaign jobs from the SQLite job queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hrithiknl17/socialagent/internal/agent"
	"github.com/hrithiknl17/socialagent/internal/campaign"
	"github.com/hrithiknl17/socialagent/internal/catalog"
	"github.com/hrithiknl17/socialagent/internal/provider"
	"github.com/hrithiknl17/socialagent/internal/storage"
)

// JobTypeCampaign is the job type the worker claims.
const JobTypeCampaign = "campaign"

const defaultPoll = 500 * time.Millisecond

// ErrEmptyProductID is returned by Enqueue for a blank product ID.
var ErrEmptyProductID = errors.New("product id must not be empty")

// JobStore abstracts the job queue operations.
type JobStore interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id, result string) error
	FailJob(ctx context.Context, id, errMsg string) error
	FailJobPermanent(ctx context.Context, id, errMsg string) error
}

// errBadPayload marks a job whose payload cannot be decoded.
var errBadPayload = errors.New("bad job payload")

// Runner executes a campaign for a product.
type Runner interface {
	Execute(ctx context.Context, productID string) (campaign.Campaign, []agent.Event, error)
}

type campaignPayload struct {
	ProductID string `json:"product_id"`
}

// Enqueue queues a campaign run for productID and returns the job ID.
func Enqueue(ctx context.Context, store JobStore, productID string) (string, error) {
	if productID == "" {
		return "", ErrEmptyProductID
	}
	payload, err := json.Marshal(campaignPayload{ProductID: productID})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.NewString(),
		Type:        JobTypeCampaign,
		PayloadJSON: string(payload),
	}
	if err := store.EnqueueJob(ctx, job); err != nil {
		return "", fmt.Errorf("enqueueing campaign job: %w", err)
	}
	return job.ID, nil
}

// Worker processes campaign jobs.
type Worker struct {
	store  JobStore
	runner Runner
	poll   time.Duration
	logger *slog.Logger
}

// New creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func New(store JobStore, runner Runner, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultPoll
	}
	return &Worker{
		store:  store,
		runner: runner,
		poll:   pollInterval,
		logger: slog.Default().With("component", "worker"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single campaign job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobTypeCampaign})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	campaignID, err := w.processJob(ctx, job)
	if err != nil {
		fail := w.store.FailJob
		if permanent(err) {
			fail = w.store.FailJobPermanent
		}
		w.logger.Warn("job failed", "job_id", job.ID, "attempt", job.Attempts+1, "permanent", permanent(err), "error", err)
		if failErr := fail(context.WithoutCancel(ctx), job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(context.WithoutCancel(ctx), job.ID, campaignID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Info("job completed", "job_id", job.ID, "campaign_id", campaignID)
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload campaignPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if payload.ProductID == "" {
		return "", ErrEmptyProductID
	}

	c, _, err := w.runner.Execute(ctx, payload.ProductID)
	if err != nil {
		return "", fmt.Errorf("running campaign for %s: %w", payload.ProductID, err)
	}
	return c.ID, nil
}

// permanent reports whether retrying the job cannot change its outcome.
func permanent(err error) bool {
	return errors.Is(err, errBadPayload) ||
		errors.Is(err, ErrEmptyProductID) ||
		errors.Is(err, catalog.ErrNotFound) ||
		errors.Is(err, provider.ErrMalformedResponse) ||
		errors.Is(err, provider.ErrUnauthenticated)
}
