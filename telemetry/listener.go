package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/interviewrt/runtime/events"
)

// spanEntry tracks an in-flight span and its context.
type spanEntry struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // needed to parent child spans
}

// sessionState tracks the root span for a session.
type sessionState struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // needed to parent child spans
}

// OTelEventListener converts runtime events into OTel spans in real time:
// one root span per interview session (spec §4.I), with child spans for
// each LLM provider call (Question Planner, Answer Scorer, Evaluator) and
// span events for phase transitions, Proctor detections, ASR stream
// interruptions, and client-frame validation outcomes. It implements the
// events.Listener function signature via OnEvent and is safe for
// registration with EventBus.SubscribeAll.
type OTelEventListener struct {
	tracer trace.Tracer

	mu       sync.Mutex
	sessions map[string]*sessionState // sessionID -> root span + ctx
	inflight map[string]*spanEntry    // sessionID -> in-flight provider-call span
}

// NewOTelEventListener creates a listener that creates OTel spans from runtime events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:   tracer,
		sessions: make(map[string]*sessionState),
		inflight: make(map[string]*spanEntry),
	}
}

// OnEvent handles a single runtime event and creates/completes OTel spans
// accordingly. Safe for concurrent use.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	//nolint:exhaustive // only span-producing events are handled
	switch evt.Type {
	case events.EventSessionStarted:
		l.startSession(evt)
	case events.EventSessionCompleted, events.EventSessionFailed:
		l.endSession(evt)
	case events.EventPhaseEntered:
		l.recordPhase(evt)
	case events.EventProviderCallStarted:
		l.startProvider(evt)
	case events.EventProviderCallCompleted:
		l.completeProvider(evt, "")
	case events.EventProviderCallFailed:
		l.failProvider(evt)
	case events.EventProctorDetection:
		l.recordProctorDetection(evt)
	case events.EventStreamInterrupted:
		l.recordStreamInterrupted(evt)
	case events.EventValidationPassed, events.EventValidationFailed:
		l.recordValidation(evt)
	case events.EventAnswerScored:
		l.recordAnswerScored(evt)
	}
}

func (l *OTelEventListener) startSession(evt *events.Event) {
	ctx, span := l.tracer.Start(context.Background(), "interview.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("session.id", evt.SessionID)),
	)
	l.mu.Lock()
	l.sessions[evt.SessionID] = &sessionState{span: span, ctx: ctx}
	l.mu.Unlock()
}

func (l *OTelEventListener) endSession(evt *events.Event) {
	l.mu.Lock()
	ss, ok := l.sessions[evt.SessionID]
	if ok {
		delete(l.sessions, evt.SessionID)
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	if evt.Type == events.EventSessionFailed {
		if data, ok := evt.Data.(*events.SessionFailedData); ok && data.Error != nil {
			ss.span.SetStatus(codes.Error, data.Error.Error())
		}
	} else {
		ss.span.SetStatus(codes.Ok, "")
	}
	ss.span.End()
}

// sessionCtx returns the context for the session (to parent child spans),
// falling back to context.Background() if the session is unknown.
func (l *OTelEventListener) sessionCtx(sessionID string) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ss, ok := l.sessions[sessionID]; ok {
		return ss.ctx
	}
	return context.Background()
}

func (l *OTelEventListener) recordPhase(evt *events.Event) {
	data, ok := evt.Data.(*events.PhaseEnteredData)
	if !ok {
		return
	}
	l.mu.Lock()
	ss, ok := l.sessions[evt.SessionID]
	l.mu.Unlock()
	if !ok {
		return
	}
	ss.span.AddEvent("interview.phase_entered", trace.WithAttributes(
		attribute.String("phase", data.Phase),
	))
}

func (l *OTelEventListener) startProvider(evt *events.Event) {
	data, ok := evt.Data.(*events.ProviderCallStartedData)
	if !ok {
		return
	}
	parentCtx := l.sessionCtx(evt.SessionID)
	ctx, span := l.tracer.Start(parentCtx, "interview.provider_call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.system", data.Provider),
			attribute.String("gen_ai.request.model", data.Model),
		),
	)
	l.mu.Lock()
	l.inflight[evt.SessionID] = &spanEntry{span: span, ctx: ctx}
	l.mu.Unlock()
}

func (l *OTelEventListener) completeProvider(evt *events.Event, _ string) {
	data, ok := evt.Data.(*events.ProviderCallCompletedData)
	if !ok {
		return
	}
	entry := l.takeInflight(evt.SessionID)
	if entry == nil {
		return
	}
	entry.span.SetAttributes(
		attribute.Int64("provider.duration_ms", data.Duration.Milliseconds()),
		attribute.Int("gen_ai.usage.input_tokens", data.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", data.OutputTokens),
		attribute.Float64("provider.cost", data.Cost),
	)
	entry.span.SetStatus(codes.Ok, "")
	entry.span.End()
}

func (l *OTelEventListener) failProvider(evt *events.Event) {
	data, ok := evt.Data.(*events.ProviderCallFailedData)
	if !ok {
		return
	}
	entry := l.takeInflight(evt.SessionID)
	if entry == nil {
		return
	}
	entry.span.SetAttributes(attribute.Int64("provider.duration_ms", data.Duration.Milliseconds()))
	if data.Error != nil {
		entry.span.SetStatus(codes.Error, data.Error.Error())
	}
	entry.span.End()
}

func (l *OTelEventListener) takeInflight(sessionID string) *spanEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.inflight[sessionID]
	if !ok {
		return nil
	}
	delete(l.inflight, sessionID)
	return entry
}

func (l *OTelEventListener) recordProctorDetection(evt *events.Event) {
	data, ok := evt.Data.(*events.ProctorDetectionData)
	if !ok {
		return
	}
	l.mu.Lock()
	ss, ok := l.sessions[evt.SessionID]
	l.mu.Unlock()
	if !ok {
		return
	}
	ss.span.AddEvent("proctor.detection", trace.WithAttributes(
		attribute.Int("proctor.person_count", data.PersonCount),
		attribute.Bool("proctor.cheat", data.Cheat),
	))
}

func (l *OTelEventListener) recordStreamInterrupted(evt *events.Event) {
	data, ok := evt.Data.(*events.StreamInterruptedData)
	if !ok {
		return
	}
	l.mu.Lock()
	ss, ok := l.sessions[evt.SessionID]
	l.mu.Unlock()
	if !ok {
		return
	}
	ss.span.AddEvent("asr.stream_interrupted", trace.WithAttributes(
		attribute.String("reason", data.Reason),
	))
}

func (l *OTelEventListener) recordValidation(evt *events.Event) {
	l.mu.Lock()
	ss, ok := l.sessions[evt.SessionID]
	l.mu.Unlock()
	if !ok {
		return
	}
	switch data := evt.Data.(type) {
	case *events.ValidationPassedData:
		ss.span.AddEvent("transport.validation_passed", trace.WithAttributes(
			attribute.String("message.type", data.MessageType),
		))
	case *events.ValidationFailedData:
		attrs := []attribute.KeyValue{attribute.String("message.type", data.MessageType)}
		ss.span.AddEvent("transport.validation_failed", trace.WithAttributes(attrs...))
	}
}

func (l *OTelEventListener) recordAnswerScored(evt *events.Event) {
	data, ok := evt.Data.(*events.AnswerScoredData)
	if !ok {
		return
	}
	l.mu.Lock()
	ss, ok := l.sessions[evt.SessionID]
	l.mu.Unlock()
	if !ok {
		return
	}
	ss.span.AddEvent("scorer.answer_scored", trace.WithAttributes(
		attribute.String("dimension", data.Dimension),
		attribute.Int64("duration_ms", data.Duration.Milliseconds()),
	))
}
