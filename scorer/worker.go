package scorer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/interviewrt/runtime/logger"
)

// jobEnvelope carries the owning session-id alongside the Job so the
// worker can deliver a best-effort completion notification without the
// Orchestrator needing a separate correlation table.
type jobEnvelope struct {
	SessionID string `json:"session_id"`
	Job       Job    `json:"job"`
}

// EnqueueForSession wraps job with its owning session and publishes it,
// the call the Orchestrator's flush-and-advance step makes.
func EnqueueForSession(ctx context.Context, pub EventPublisher, sessionID string, job Job) error {
	data, err := json.Marshal(jobEnvelope{SessionID: sessionID, Job: job})
	if err != nil {
		return err
	}
	return pub.Publish(ctx, ScoringSubject, data)
}

// Worker consumes scoring jobs from an EventSubscriber and runs them
// through a Scorer. Mirrors evals.EvalWorker's Start/handle shape: one
// subscription, one handler, context-cancellable.
type Worker struct {
	subscriber EventSubscriber
	scorer     *Scorer
}

// NewWorker constructs a Worker.
func NewWorker(subscriber EventSubscriber, scorer *Scorer) *Worker {
	return &Worker{subscriber: subscriber, scorer: scorer}
}

// Start subscribes to the scoring subject and processes jobs until ctx is
// cancelled or the subscription errors.
func (w *Worker) Start(ctx context.Context) error {
	logger.Info("scorer: worker starting", "subject", ScoringSubject)
	if err := w.subscriber.Subscribe(ctx, ScoringSubject, w.handle); err != nil {
		return fmt.Errorf("scorer: subscribe: %w", err)
	}
	return nil
}

func (w *Worker) handle(event []byte) error {
	var envelope jobEnvelope
	if err := json.Unmarshal(event, &envelope); err != nil {
		logger.Error("scorer: failed to decode job", "error", err)
		return fmt.Errorf("scorer: decode job: %w", err)
	}
	// Scoring never blocks the caller on failure (spec §4.H) — Score
	// logs and persists neutral defaults internally rather than
	// returning an error the worker loop would need to retry-drop.
	w.scorer.Score(context.Background(), envelope.SessionID, envelope.Job)
	return nil
}
