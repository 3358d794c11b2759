package events

import "time"

// EventType identifies the type of event emitted by the runtime.
type EventType string

const (
	// EventSessionStarted marks an interview session starting (spec §4.I
	// INTRO phase entry).
	EventSessionStarted EventType = "session.started"
	// EventSessionCompleted marks a session reaching PhaseFinished cleanly.
	EventSessionCompleted EventType = "session.completed"
	// EventSessionFailed marks a session ending on a Fatal-kind error.
	EventSessionFailed EventType = "session.failed"

	// EventPhaseEntered marks the Orchestrator entering a new interview
	// phase (INTRO/QUESTION/CODE/FINISHED, spec §4.I).
	EventPhaseEntered EventType = "phase.entered"

	// EventProviderCallStarted marks an LLM provider call start.
	EventProviderCallStarted EventType = "provider.call.started"
	// EventProviderCallCompleted marks an LLM provider call completion.
	EventProviderCallCompleted EventType = "provider.call.completed"
	// EventProviderCallFailed marks an LLM provider call failure.
	EventProviderCallFailed EventType = "provider.call.failed"

	// EventProctorDetection marks one Proctor.Inspect call result (spec
	// §4.D).
	EventProctorDetection EventType = "proctor.detection"

	// EventStreamInterrupted marks an ASR socket disconnect/reconnect
	// (spec §4.E).
	EventStreamInterrupted EventType = "stream.interrupted"

	// EventValidationPassed marks an inbound client frame passing its
	// JSON-schema check (spec §7).
	EventValidationPassed EventType = "validation.passed"
	// EventValidationFailed marks an inbound client frame failing its
	// JSON-schema check.
	EventValidationFailed EventType = "validation.failed"

	// EventAnswerScored marks the Answer Scorer completing one dimension
	// score (spec §4.H).
	EventAnswerScored EventType = "answer.scored"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a runtime event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      EventData
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {
	// marker method to satisfy EventData
}

// SessionStartedData contains data for session start events.
type SessionStartedData struct {
	baseEventData
	PositionType string
}

// SessionCompletedData contains data for session completion events.
type SessionCompletedData struct {
	baseEventData
	Duration      time.Duration
	QuestionCount int
}

// SessionFailedData contains data for session failure events.
type SessionFailedData struct {
	baseEventData
	Error    error
	Duration time.Duration
}

// PhaseEnteredData contains data for phase-transition events.
type PhaseEnteredData struct {
	baseEventData
	Phase string
}

// ProviderCallStartedData contains data for provider call start events.
type ProviderCallStartedData struct {
	baseEventData
	Provider string
	Model    string
}

// ProviderCallCompletedData contains data for provider call completion events.
type ProviderCallCompletedData struct {
	baseEventData
	Provider     string
	Model        string
	Duration     time.Duration
	InputTokens  int
	OutputTokens int
	CachedTokens int
	Cost         float64
}

// ProviderCallFailedData contains data for provider call failure events.
type ProviderCallFailedData struct {
	baseEventData
	Provider string
	Model    string
	Error    error
	Duration time.Duration
}

// ProctorDetectionData contains data for one Proctor inspection result.
type ProctorDetectionData struct {
	baseEventData
	PersonCount int
	Cheat       bool
	Duration    time.Duration
}

// StreamInterruptedData contains data for an ASR stream interruption.
type StreamInterruptedData struct {
	baseEventData
	Reason string
}

// ValidationPassedData contains data for a validation success.
type ValidationPassedData struct {
	baseEventData
	MessageType string
	Duration    time.Duration
}

// ValidationFailedData contains data for a validation failure.
type ValidationFailedData struct {
	baseEventData
	MessageType string
	Error       error
	Duration    time.Duration
}

// AnswerScoredData contains data for one answer-dimension scoring result.
type AnswerScoredData struct {
	baseEventData
	Dimension string
	Duration  time.Duration
}
