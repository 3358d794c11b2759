package prometheus

import (
	"github.com/interviewrt/runtime/events"
)

// Status constants for metric labels.
const (
	statusSuccess = "success"
	statusError   = "error"
	statusPassed  = "passed"
	statusFailed  = "failed"
)

// MetricsListener records runtime events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
// This method is designed to be used with EventBus.SubscribeAll.
func (l *MetricsListener) Handle(event *events.Event) {
	//exhaustive:ignore
	switch event.Type {
	case events.EventSessionStarted:
		RecordSessionStart()
	case events.EventSessionCompleted:
		l.handleSessionCompleted(event)
	case events.EventSessionFailed:
		l.handleSessionFailed(event)
	case events.EventPhaseEntered:
		l.handlePhaseEntered(event)
	case events.EventProviderCallCompleted:
		l.handleProviderCallCompleted(event)
	case events.EventProviderCallFailed:
		l.handleProviderCallFailed(event)
	case events.EventProctorDetection:
		l.handleProctorDetection(event)
	case events.EventStreamInterrupted:
		l.handleStreamInterrupted(event)
	case events.EventValidationPassed:
		l.handleValidationPassed(event)
	case events.EventValidationFailed:
		l.handleValidationFailed(event)
	case events.EventAnswerScored:
		l.handleAnswerScored(event)
	default:
		// Ignore events that don't have metrics
	}
}

func (l *MetricsListener) handleSessionCompleted(event *events.Event) {
	if data, ok := event.Data.(*events.SessionCompletedData); ok {
		RecordSessionEnd(statusSuccess, data.Duration.Seconds())
	}
}

func (l *MetricsListener) handleSessionFailed(event *events.Event) {
	if data, ok := event.Data.(*events.SessionFailedData); ok {
		RecordSessionEnd(statusError, data.Duration.Seconds())
	}
}

func (l *MetricsListener) handlePhaseEntered(event *events.Event) {
	if data, ok := event.Data.(*events.PhaseEnteredData); ok {
		RecordPhaseTransition(data.Phase)
	}
}

func (l *MetricsListener) handleProviderCallCompleted(event *events.Event) {
	if data, ok := event.Data.(*events.ProviderCallCompletedData); ok {
		RecordProviderRequest(data.Provider, data.Model, statusSuccess, data.Duration.Seconds())
		RecordProviderTokens(data.Provider, data.Model, data.InputTokens, data.OutputTokens, data.CachedTokens)
		RecordProviderCost(data.Provider, data.Model, data.Cost)
	}
}

func (l *MetricsListener) handleProviderCallFailed(event *events.Event) {
	if data, ok := event.Data.(*events.ProviderCallFailedData); ok {
		RecordProviderRequest(data.Provider, data.Model, statusError, data.Duration.Seconds())
	}
}

func (l *MetricsListener) handleProctorDetection(event *events.Event) {
	if data, ok := event.Data.(*events.ProctorDetectionData); ok {
		RecordProctorDetection(data.Cheat)
	}
}

func (l *MetricsListener) handleStreamInterrupted(event *events.Event) {
	if data, ok := event.Data.(*events.StreamInterruptedData); ok {
		RecordASRReconnect(data.Reason)
	}
}

func (l *MetricsListener) handleValidationPassed(event *events.Event) {
	if data, ok := event.Data.(*events.ValidationPassedData); ok {
		RecordValidation(data.MessageType, statusPassed)
	}
}

func (l *MetricsListener) handleValidationFailed(event *events.Event) {
	if data, ok := event.Data.(*events.ValidationFailedData); ok {
		RecordValidation(data.MessageType, statusFailed)
	}
}

func (l *MetricsListener) handleAnswerScored(event *events.Event) {
	if data, ok := event.Data.(*events.AnswerScoredData); ok {
		RecordScorerLatency(data.Dimension, data.Duration.Seconds())
	}
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
