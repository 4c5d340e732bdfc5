package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sprachlab/sprachlab/internal/storage"
	"github.com/sprachlab/sprachlab/internal/webhooks"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// AudioGenerator renders passage audio for a test.
type AudioGenerator interface {
	GeneratePassageAudio(ctx context.Context, testID string) error
}

// Worker processes audio_generate and webhook_redrive jobs from the SQLite
// job queue.
type Worker struct {
	store        JobStore
	audio        AudioGenerator
	webhookStore webhooks.Store
	roles        webhooks.RoleSetter
	poll         time.Duration
	logger       *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, audio AudioGenerator, webhookStore webhooks.Store, roles webhooks.RoleSetter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:        store,
		audio:        audio,
		webhookStore: webhookStore,
		roles:        roles,
		poll:         pollInterval,
		logger:       slog.Default(),
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

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{storage.JobAudioGenerate, storage.JobWebhookRedrive})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// AudioPayload is the job payload for passage audio generation.
type AudioPayload struct {
	TestID string `json:"test_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case storage.JobAudioGenerate:
		var payload AudioPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		if payload.TestID == "" {
			return fmt.Errorf("audio job without test id")
		}
		return w.audio.GeneratePassageAudio(ctx, payload.TestID)
	case storage.JobWebhookRedrive:
		return webhooks.Redrive(w.webhookStore, w.roles, w.logger, job.PayloadJSON)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
