// Package scorer implements the Answer Scorer component (spec §4.H): an
// asynchronous worker triggered via a job queue on Answer creation, that
// optionally re-transcribes the media, prompts a multimodal LLM with a
// seven-dimension rubric, and persists the parsed scores.
//
// The job-queue consumer shape (EventSubscriber subscribing to a topic
// pattern, decoding a payload, running work, writing results) is
// grounded on evals/worker.go's EvalWorker and evals/dispatcher.go's
// EventSubscriber/ResultWriter interfaces.
package scorer

import (
	"context"
	"encoding/json"
)

// Job is the payload enqueued on Answer creation (spec §4.H: "Input:
// answer-id, optional media path").
type Job struct {
	AnswerID  string `json:"answer_id"`
	ClipPath  string `json:"clip_path,omitempty"`
}

// EventSubscriber subscribes to scoring jobs published on a topic.
// The interface is shipped, concrete implementations (Redis Streams,
// in-process channel, etc.) are provided by callers.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(event []byte) error) error
}

// EventPublisher enqueues a scoring Job. The Orchestrator's
// flush-and-advance step calls this in the same critical section as the
// Answer write (spec §5: "Answer writes and scoring-job enqueues for the
// same question are performed in the same critical section").
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

const ScoringSubject = "answer.scoring.requested"

// Enqueue publishes a Job to the scoring subject.
func Enqueue(ctx context.Context, pub EventPublisher, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, ScoringSubject, data)
}

// InProcessQueue is a minimal in-process EventSubscriber/EventPublisher
// backed by a buffered channel — the default wiring for a single-instance
// deployment, the way evals ships only the interfaces and leaves the
// transport to the platform.
type InProcessQueue struct {
	ch chan []byte
}

// NewInProcessQueue constructs an InProcessQueue with the given buffer size.
func NewInProcessQueue(buffer int) *InProcessQueue {
	return &InProcessQueue{ch: make(chan []byte, buffer)}
}

// Publish enqueues data, blocking if the buffer is full unless ctx is
// cancelled first.
func (q *InProcessQueue) Publish(ctx context.Context, _ string, data []byte) error {
	select {
	case q.ch <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe runs handler for every published message until ctx is
// cancelled. subject is ignored — InProcessQueue carries a single topic.
func (q *InProcessQueue) Subscribe(ctx context.Context, _ string, handler func(event []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-q.ch:
			_ = handler(data)
		}
	}
}
