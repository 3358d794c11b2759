package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/interviewrt/runtime/domain"
	"github.com/interviewrt/runtime/events"
	"github.com/interviewrt/runtime/logger"
	"github.com/interviewrt/runtime/mediabuf"
	"github.com/interviewrt/runtime/muxer"
	"github.com/interviewrt/runtime/planner"
	"github.com/interviewrt/runtime/proctor"
	"github.com/interviewrt/runtime/scorer"
	"github.com/interviewrt/runtime/template"
	"github.com/interviewrt/runtime/transcription"
)

// ASRClientFactory lazily constructs a per-session transcription.Client.
// Connecting eagerly at session creation would hold a vendor socket open
// for sessions that never produce audio (e.g. a client that disconnects
// during INTRO); deferring to first audio frame mirrors the original's
// lazy XunfeiRTASRClient construction in handle_audio_frame.
type ASRClientFactory func() *transcription.Client

// Deps bundles every collaborator a Session needs, wired once by
// cmd/interviewd and shared across sessions where safe to do so
// (planners, repositories, muxer, proctor factory) or constructed fresh
// per session (the ASR client).
type Deps struct {
	Interviews     domain.InterviewRepository
	Answers        domain.AnswerRepository
	CodingAnswers  domain.CodingAnswerRepository
	QuestionPlanner *planner.QuestionPlanner
	CodingPlanner   *planner.CodingPlanner
	Muxer           *muxer.Muxer
	Proctor         *proctor.Proctor
	ASRFactory      ASRClientFactory
	ScoringPub      scorer.EventPublisher
	Config          Config

	// EventBus receives the session lifecycle/phase/proctor/validation
	// events consumed by metrics/prometheus and telemetry (spec §10). Nil
	// disables event emission entirely, so tests and callers that don't
	// care about observability can omit it.
	EventBus *events.EventBus
}

// Session is one interview's state machine: the Orchestrator component
// (spec §4.I). A single goroutine runs Session.Run and owns every
// mutable field below — no locking needed, the same single-consumer
// discipline spec §5 requires of mediabuf.Buffers.
type Session struct {
	id       string
	streamID string
	cfg      Config

	deps Deps

	sender ClientSender
	room   RoomBroadcaster

	interview      *domain.Interview
	phase          Phase
	questionIndex  int
	codingProblems []*domain.CodingProblem
	codingIndex    int

	buffers *mediabuf.Buffers
	asr     *transcription.Client
	asrUp   bool

	transcript strings.Builder

	silenceTimer *time.Timer

	introRenderer *template.Renderer

	audioLimiter *rate.Limiter
	videoLimiter *rate.Limiter

	inbound   chan any
	closed    bool
	startedAt time.Time
}

// NewSession constructs a Session in the not-yet-started state. Run must
// be called to drive it.
func NewSession(id string, deps Deps, sender ClientSender, room RoomBroadcaster) *Session {
	if len(deps.Config.CompletionPhrases) == 0 {
		deps.Config.CompletionPhrases = DefaultCompletionPhrases
	}
	if deps.Config.CodingProblemCount == 0 {
		deps.Config.CodingProblemCount = DefaultConfig().CodingProblemCount
	}
	if deps.Config.InboundQueueSize == 0 {
		deps.Config.InboundQueueSize = DefaultConfig().InboundQueueSize
	}
	if deps.Config.IntroTemplate == "" {
		deps.Config.IntroTemplate = DefaultIntroTemplate
	}
	return &Session{
		id:            id,
		deps:          deps,
		cfg:           deps.Config,
		sender:        sender,
		room:          room,
		phase:         PhaseIntro,
		buffers:       mediabuf.New(),
		introRenderer: template.NewRenderer(),
		audioLimiter:  newFrameLimiter(deps.Config.AudioFrameRateLimit),
		videoLimiter:  newFrameLimiter(deps.Config.VideoFrameRateLimit),
		inbound:       make(chan any, maxInt(deps.Config.InboundQueueSize, 1)),
	}
}

// newFrameLimiter returns nil (unlimited) when perSecond is non-positive,
// otherwise a limiter with a one-second burst — tolerating a momentary
// catch-up burst after a GC pause or slow client tick without relaxing
// the steady-state cap.
func newFrameLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SessionID implements sessionstore.Handle.
func (s *Session) SessionID() string { return s.id }

// Notify implements sessionstore.Handle: a best-effort, non-blocking
// delivery of an out-of-band event (e.g. a scoring-complete callback)
// into the session's own inbound queue (spec §4.I "worker callbacks").
func (s *Session) Notify(event any) {
	select {
	case s.inbound <- event:
	default:
		logger.Warn("orchestrator: dropped notify, inbound queue full", "session_id", s.id)
	}
}

// NotifyScoringComplete implements scorer.SessionNotifier.
func (s *Session) NotifyScoringComplete(sessionID, answerID string) {
	s.Notify(scoringCompleteEvent{AnswerID: answerID})
}

// Submit delivers one inbound client frame. Blocks until accepted or ctx
// is cancelled, applying backpressure rather than dropping client input.
func (s *Session) Submit(ctx context.Context, msg ClientMessage) error {
	select {
	case s.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type scoringCompleteEvent struct{ AnswerID string }
type disconnectEvent struct{}
type silenceTimeoutEvent struct{}
type asrErrorEvent struct{ err error }

// Run is the Orchestrator's single-consumer event loop (spec §5): it
// fans in client messages, ASR events, and timer firings, processing
// exactly one at a time. Grounded on session/bidirectional_session.go's
// ctx.Done/provider.Done/provider.Response select loop, generalized to a
// fourth source (the silence timer) and a session-scoped inbound queue
// instead of a single provider stream.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown()

	for {
		var asrEvents <-chan transcription.Event
		var asrDone <-chan struct{}
		if s.asr != nil {
			asrEvents = s.asr.Events()
			asrDone = s.asr.Done()
		}

		select {
		case <-ctx.Done():
			return

		case raw := <-s.inbound:
			if s.handleInbound(ctx, raw) {
				return
			}

		case ev := <-asrEvents:
			s.handleASREvent(ctx, ev)

		case <-asrDone:
			reason := "closed"
			if err := s.asr.Err(); err != nil {
				reason = err.Error()
				logger.Warn("orchestrator: asr connection closed", "session_id", s.id, "error", err)
			}
			s.publish(events.EventStreamInterrupted, &events.StreamInterruptedData{Reason: reason})
			s.asr = nil
			s.asrUp = false

		case <-s.timerC():
			s.handleSilenceTimeout(ctx)
		}
	}
}

func (s *Session) timerC() <-chan time.Time {
	if s.silenceTimer == nil {
		return nil
	}
	return s.silenceTimer.C
}

// handleInbound dispatches one inbound value and reports whether the
// session should terminate.
func (s *Session) handleInbound(ctx context.Context, raw any) bool {
	switch v := raw.(type) {
	case ClientMessage:
		s.handleClientMessage(ctx, v)
	case scoringCompleteEvent:
		logger.Debug("orchestrator: scoring complete", "session_id", s.id, "answer_id", v.AnswerID)
		s.sendBestEffort(ServerMessage{Type: "scoring_complete", SessionID: s.id})
	case disconnectEvent:
		return true
	default:
		logger.Warn("orchestrator: unknown inbound event", "session_id", s.id, "type", fmt.Sprintf("%T", raw))
	}
	return false
}

func (s *Session) teardown() {
	if s.closed {
		return
	}
	s.closed = true
	s.stopSilenceTimer()
	if s.asr != nil {
		_ = s.asr.Close()
	}
	if s.phase != PhaseFinished {
		s.publishSessionFailed()
	}
	logger.Info("orchestrator: session ended", "session_id", s.id, "phase", s.phase)
}

// publish is a nil-safe wrapper around EventBus.Publish: most tests and
// several deployment configurations run with EventBus unset.
func (s *Session) publish(eventType events.EventType, data events.EventData) {
	if s.deps.EventBus == nil {
		return
	}
	s.deps.EventBus.Publish(&events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: s.id,
		Data:      data,
	})
}

func (s *Session) publishPhaseEntered(phase Phase) {
	s.publish(events.EventPhaseEntered, &events.PhaseEnteredData{Phase: string(phase)})
}

// publishSessionFailed fires from teardown whenever the session ends
// without reaching PhaseFinished — a client disconnect, a cancelled
// context, or any other path that skips finishInterview's normal
// EventSessionCompleted. Sessions that never got far enough to call
// onCreateStream (startedAt still zero) never published
// EventSessionStarted either, so there is nothing to close out here.
func (s *Session) publishSessionFailed() {
	if s.startedAt.IsZero() {
		return
	}
	s.publish(events.EventSessionFailed, &events.SessionFailedData{Duration: time.Since(s.startedAt)})
}

func (s *Session) sendBestEffort(msg ServerMessage) {
	msg.SessionID = s.id
	if err := s.sender.Send(msg); err != nil {
		logger.Warn("orchestrator: failed to send to client", "session_id", s.id, "error", err)
	}
}

func (s *Session) ensureASRConnected(ctx context.Context) {
	if s.asrUp || s.deps.ASRFactory == nil {
		return
	}
	s.asr = s.deps.ASRFactory()
	if err := s.asr.ConnectWithRetry(ctx); err != nil {
		logger.Error("orchestrator: asr connect failed, falling back to manual transcript", "session_id", s.id, "error", err)
		s.asr = nil
		return
	}
	s.asrUp = true
}

func (s *Session) resetSilenceTimer() {
	s.stopSilenceTimer()
	if s.cfg.SilenceTimeout <= 0 {
		return
	}
	if s.phase != PhaseIntro && s.phase != PhaseQuestion {
		return
	}
	s.silenceTimer = time.NewTimer(s.cfg.SilenceTimeout)
}

func (s *Session) stopSilenceTimer() {
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
}

func newAnswerID() string { return uuid.NewString() }

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
