package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/interviewrt/runtime/domain"
	"github.com/interviewrt/runtime/events"
	"github.com/interviewrt/runtime/logger"
	"github.com/interviewrt/runtime/scorer"
	"github.com/interviewrt/runtime/transcription"
)

// handleClientMessage dispatches one decoded client frame (spec §6).
// Unknown or malformed messages are logged and dropped — a single bad
// frame must not end the session (spec §7: "client protocol errors are
// reported, not fatal").
func (s *Session) handleClientMessage(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case "create_stream":
		s.onCreateStream(ctx, msg.Raw)
	case "join_stream":
		s.onJoinStream(ctx, msg.Raw)
	case "signal":
		s.onSignal(ctx, msg.Raw)
	case "audio_frame":
		s.onAudioFrame(ctx, msg.Raw)
	case "video_frame":
		s.onVideoFrame(ctx, msg.Raw)
	case "answer_completed":
		s.onAnswerCompleted(ctx, msg.Raw)
	case "manual_answer_text":
		s.onManualAnswerText(ctx, msg.Raw)
	case "request_next_question":
		s.onRequestNextQuestion(ctx)
	case "submit_coding_answer":
		s.onSubmitCodingAnswer(ctx, msg.Raw)
	case "disconnect":
		s.Notify(disconnectEvent{})
	default:
		logger.Warn("orchestrator: unknown client message type", "session_id", s.id, "type", msg.Type)
		s.sendBestEffort(ServerMessage{Type: "error", Status: "client_protocol", Message: "unknown message type: " + msg.Type})
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func (s *Session) onCreateStream(ctx context.Context, raw json.RawMessage) {
	payload, err := decode[createStreamMsg](raw)
	if err != nil {
		s.protocolError("malformed create_stream payload")
		return
	}

	interview, err := s.deps.Interviews.Get(ctx, payload.InterviewID)
	if err != nil {
		logger.Error("orchestrator: interview lookup failed", "session_id", s.id, "interview_id", payload.InterviewID, "error", err)
		s.sendBestEffort(ServerMessage{Type: "error", Status: "not_found", Message: "interview not found"})
		return
	}

	s.startedAt = time.Now()
	s.publish(events.EventSessionStarted, &events.SessionStartedData{PositionType: string(interview.PositionType)})

	if len(interview.QuestionQueue) == 0 && s.deps.QuestionPlanner != nil {
		resume := domain.Resume{} // résumé CRUD is out of scope (spec §1); planner tolerates the zero value
		start := time.Now()
		s.publish(events.EventProviderCallStarted, &events.ProviderCallStartedData{Provider: "question_planner"})
		interview.QuestionQueue = s.deps.QuestionPlanner.Plan(ctx, interview.PositionType, interview.PositionName, interview.CompanyName, interview.PositionDescription, resume)
		s.publish(events.EventProviderCallCompleted, &events.ProviderCallCompletedData{Provider: "question_planner", Duration: time.Since(start)})
		if err := s.deps.Interviews.Save(ctx, interview); err != nil {
			logger.Warn("orchestrator: failed to persist planned questions", "session_id", s.id, "error", err)
		}
	}

	s.interview = interview
	s.streamID = payload.Title + ":" + s.id
	if payload.InterviewID != "" {
		s.streamID = payload.InterviewID
	}
	s.phase = PhaseIntro
	s.questionIndex = -1
	s.resetSilenceTimer()
	if s.room != nil {
		s.room.Join(s.streamID, s.id, s.sender)
	}

	s.publishPhaseEntered(s.phase)

	s.sendBestEffort(ServerMessage{Type: "stream_created", StreamID: s.streamID, Phase: s.phase, Status: "ok", Text: s.renderIntro(interview)})
}

// renderIntro fills the configured greeting template with the interview's
// position/company, falling back to the raw template text if a placeholder
// is left unresolved rather than failing stream_created over a cosmetic
// string (grounded on template.Renderer's own recursive-substitution
// behavior, generalized here from persona/prompt assembly to the
// INTRO-phase greeting).
func (s *Session) renderIntro(interview *domain.Interview) string {
	tpl := s.deps.Config.IntroTemplate
	if tpl == "" {
		return ""
	}
	vars := map[string]string{
		"position_name": interview.PositionName,
		"company_name":  interview.CompanyName,
	}
	text, err := s.introRenderer.Render(tpl, vars)
	if err != nil {
		return tpl
	}
	return text
}

func (s *Session) onJoinStream(ctx context.Context, raw json.RawMessage) {
	payload, err := decode[joinStreamMsg](raw)
	if err != nil {
		s.protocolError("malformed join_stream payload")
		return
	}
	s.streamID = payload.StreamID
	if s.room != nil {
		s.room.Join(s.streamID, s.id, s.sender)
	}
	s.sendBestEffort(ServerMessage{Type: "joined", StreamID: s.streamID, Status: "ok"})
}

// onSignal relays WebRTC offer/answer/candidate frames to the rest of the
// room (spec §12 supplemented feature, grounded on original_source's
// multi-viewer signalling relay).
func (s *Session) onSignal(_ context.Context, raw json.RawMessage) {
	if s.room == nil || s.streamID == "" {
		return
	}
	var payload signalMsg
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.protocolError("malformed signal payload")
		return
	}
	s.room.Broadcast(s.streamID, ServerMessage{Type: "signal", PeerID: s.id, SessionID: s.id}, s.id)
}

func (s *Session) onAudioFrame(ctx context.Context, raw json.RawMessage) {
	payload, err := decode[audioFrameMsg](raw)
	if err != nil {
		s.protocolError("malformed audio_frame payload")
		return
	}
	if s.phase == PhaseFinished || s.phase == PhaseCode {
		return // audio isn't collected outside INTRO/QUESTION (spec §4.I)
	}
	if s.audioLimiter != nil && !s.audioLimiter.Allow() {
		logger.Warn("orchestrator: audio_frame rate exceeded, dropping frame", "session_id", s.id)
		return
	}
	if err := s.buffers.AppendAudioBase64(payload.AudioData); err != nil {
		s.protocolError(err.Error())
		return
	}

	s.ensureASRConnected(ctx)
	if s.asrUp {
		if err := s.asr.SendAudio(s.buffers.Audio()[len(s.buffers.Audio())-1], payload.End); err != nil {
			logger.Warn("orchestrator: asr send failed", "session_id", s.id, "error", err)
		}
	}
	s.resetSilenceTimer()
}

func (s *Session) onVideoFrame(ctx context.Context, raw json.RawMessage) {
	payload, err := decode[videoFrameMsg](raw)
	if err != nil {
		s.protocolError("malformed video_frame payload")
		return
	}
	if s.phase == PhaseFinished {
		return
	}
	if s.videoLimiter != nil && !s.videoLimiter.Allow() {
		logger.Warn("orchestrator: video_frame rate exceeded, dropping frame", "session_id", s.id)
		return
	}
	if err := s.buffers.AppendFrameBase64(payload.FrameData); err != nil {
		s.protocolError(err.Error())
		return
	}

	if s.deps.Proctor == nil {
		return
	}
	frames := s.buffers.Frames()
	result, err := s.deps.Proctor.Inspect(ctx, frames[len(frames)-1])
	if err != nil {
		logger.Warn("orchestrator: proctor inspect failed", "session_id", s.id, "error", err)
		return
	}
	s.publish(events.EventProctorDetection, &events.ProctorDetectionData{
		PersonCount: result.PersonCount,
		Cheat:       result.CheatMultiPerson,
	})
	if result.CheatMultiPerson {
		msg := ServerMessage{Type: "cheat_detected", SessionID: s.id, Status: "multi_person"}
		s.sendBestEffort(msg)
		if s.room != nil && s.streamID != "" {
			s.room.Broadcast(s.streamID, msg, "")
		}
	}
}

// onAnswerCompleted is the client's explicit end-of-turn signal —
// together with the ASR completion-phrase check and the silence timer,
// one of the three triggers for flush-and-advance (spec §4.I).
func (s *Session) onAnswerCompleted(ctx context.Context, raw json.RawMessage) {
	payload, _ := decode[answerCompletedMsg](raw)
	text := payload.AnswerText
	if text == "" {
		text = strings.TrimSpace(s.transcript.String())
	}
	s.flushAndAdvance(ctx, text)
}

// onManualAnswerText is the keyboard fallback path (spec §9: degraded
// mode when ASR is unavailable or the candidate prefers typing). It is
// itself a completion trigger, not merely buffered input.
func (s *Session) onManualAnswerText(ctx context.Context, raw json.RawMessage) {
	payload, err := decode[manualAnswerTextMsg](raw)
	if err != nil || strings.TrimSpace(payload.Text) == "" {
		s.protocolError("malformed or empty manual_answer_text")
		return
	}
	s.flushAndAdvance(ctx, payload.Text)
}

// onRequestNextQuestion pops and emits the next question without flushing
// (spec §4.I, §8 scenario 4: "No Answer written for the skipped
// question"). It resets the buffers/transcript the same way
// flushAndAdvance does but never muxes a clip, creates a domain.Answer,
// or enqueues a scoring job for the question being skipped.
func (s *Session) onRequestNextQuestion(ctx context.Context) {
	s.stopSilenceTimer()
	s.buffers.Reset()
	s.transcript.Reset()

	if s.phase != PhaseQuestion {
		logger.Warn("orchestrator: request_next_question received outside QUESTION phase", "session_id", s.id, "phase", s.phase)
		return
	}

	s.questionIndex++
	if s.interview != nil && s.questionIndex < len(s.interview.QuestionQueue) {
		s.resetSilenceTimer()
		s.sendCurrentQuestion(ctx)
		return
	}

	s.enterCodePhase(ctx)
}

func (s *Session) onSubmitCodingAnswer(ctx context.Context, raw json.RawMessage) {
	payload, err := decode[submitCodingAnswerMsg](raw)
	if err != nil {
		s.protocolError("malformed submit_coding_answer payload")
		return
	}
	if s.phase != PhaseCode || s.codingIndex < 0 || s.codingIndex >= len(s.codingProblems) {
		s.protocolError("submit_coding_answer received outside CODE phase")
		return
	}

	problem := s.codingProblems[s.codingIndex]
	_, _, err = s.deps.CodingAnswers.Create(ctx, &domain.CodingAnswer{
		ID:          newAnswerID(),
		InterviewID: s.interview.ID,
		ProblemID:   problem.ID,
		Code:        payload.Code,
		Language:    payload.Language,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		logger.Error("orchestrator: failed to persist coding answer", "session_id", s.id, "error", err)
		s.sendBestEffort(ServerMessage{Type: "error", Status: "persistence", Message: "failed to save coding answer"})
		return
	}

	s.codingIndex++
	s.advanceCoding(ctx)
}

// handleASREvent processes one transcription.Event (spec §4.I: "internal
// event asr_result"). Fragments accumulate into the running transcript;
// a completion phrase anywhere in the accumulated text triggers
// flush-and-advance independent of the silence timer, mirroring
// original_source's `'说完了' in asr_text` check.
func (s *Session) handleASREvent(ctx context.Context, ev transcription.Event) {
	switch ev.Kind {
	case transcription.KindFragment:
		if ev.Text == "" {
			return
		}
		s.transcript.WriteString(ev.Text)
		s.resetSilenceTimer()
		if s.cfg.containsCompletionPhrase(s.transcript.String()) {
			text := strings.TrimSpace(s.transcript.String())
			s.flushAndAdvance(ctx, text)
		}
	case transcription.KindError:
		logger.Warn("orchestrator: asr reported an error, continuing in manual-text mode", "session_id", s.id, "error", ev.Err)
		s.asrUp = false
	}
}

func (s *Session) handleSilenceTimeout(ctx context.Context) {
	text := strings.TrimSpace(s.transcript.String())
	logger.Debug("orchestrator: silence timeout, flushing", "session_id", s.id, "phase", s.phase)
	s.flushAndAdvance(ctx, text)
}

func (s *Session) protocolError(message string) {
	logger.Warn("orchestrator: client protocol error", "session_id", s.id, "message", message)
	s.sendBestEffort(ServerMessage{Type: "error", Status: "client_protocol", Message: message})
}

// flushAndAdvance is the six-step critical section spec §4.I names for
// ending the current turn: (1) snapshot media buffers, (2) reset them,
// (3) mux a clip, (4) create the Answer record, (5) enqueue a scoring
// job in the same critical section as the Answer write (spec §5), and
// (6) advance phase/question index and notify the client. It is the one
// place INTRO, QUESTION, and the silence/ASR/manual-text trigger paths
// all converge.
func (s *Session) flushAndAdvance(ctx context.Context, answerText string) {
	s.stopSilenceTimer()

	audio, frames := s.buffers.Snapshot()
	s.buffers.Reset()
	s.transcript.Reset()

	var clipPath string
	if s.deps.Muxer != nil && (len(audio) > 0 || len(frames) > 0) {
		result, err := s.deps.Muxer.Mux(ctx, s.id, s.currentFlushIndex(), audio, frames)
		if err != nil {
			logger.Warn("orchestrator: mux failed, continuing without a clip", "session_id", s.id, "error", err)
		}
		clipPath = result.ClipPath
	}

	switch s.phase {
	case PhaseIntro:
		s.finishIntro(ctx)
	case PhaseQuestion:
		s.finishQuestion(ctx, answerText, clipPath)
	default:
		logger.Warn("orchestrator: flush requested outside INTRO/QUESTION", "session_id", s.id, "phase", s.phase)
	}
}

// currentFlushIndex names the (sessionID, questionIndex) pair the Clip
// Muxer files artefacts under. INTRO has no question index of its own;
// -1 keeps its clip files from colliding with question 0's.
func (s *Session) currentFlushIndex() int {
	if s.phase == PhaseIntro {
		return -1
	}
	return s.questionIndex
}

func (s *Session) finishIntro(ctx context.Context) {
	s.phase = PhaseQuestion
	s.questionIndex = 0
	s.publishPhaseEntered(s.phase)
	s.sendBestEffort(ServerMessage{Type: "phase_changed", Phase: s.phase})
	s.sendCurrentQuestion(ctx)
}

func (s *Session) finishQuestion(ctx context.Context, answerText, clipPath string) {
	q := s.currentQuestion()
	if q != nil {
		answer := &domain.Answer{
			ID:              newAnswerID(),
			InterviewID:     s.interview.ID,
			QuestionIndex:   s.questionIndex,
			Question:        q.Question,
			AnswerText:      answerText,
			KnowledgePoints: q.KnowledgePoints,
			ClipPath:        clipPath,
			CreatedAt:       time.Now(),
		}
		created, _, err := s.deps.Answers.Create(ctx, answer)
		if err != nil {
			logger.Error("orchestrator: failed to persist answer", "session_id", s.id, "error", err)
			s.sendBestEffort(ServerMessage{Type: "error", Status: "persistence", Message: "failed to save answer"})
		} else if s.deps.ScoringPub != nil {
			if err := scorer.EnqueueForSession(ctx, s.deps.ScoringPub, s.id, scorer.Job{AnswerID: created.ID, ClipPath: clipPath}); err != nil {
				logger.Error("orchestrator: failed to enqueue scoring job", "session_id", s.id, "error", err)
			}
		}
	}

	s.questionIndex++
	if s.interview != nil && s.questionIndex < len(s.interview.QuestionQueue) {
		s.resetSilenceTimer()
		s.sendCurrentQuestion(ctx)
		return
	}

	s.enterCodePhase(ctx)
}

func (s *Session) currentQuestion() *domain.PlannedQuestion {
	if s.interview == nil || s.questionIndex < 0 || s.questionIndex >= len(s.interview.QuestionQueue) {
		return nil
	}
	return &s.interview.QuestionQueue[s.questionIndex]
}

func (s *Session) sendCurrentQuestion(_ context.Context) {
	q := s.currentQuestion()
	if q == nil {
		return
	}
	s.sendBestEffort(ServerMessage{Type: "question", Phase: s.phase, Question: q.Question})
}

func (s *Session) enterCodePhase(ctx context.Context) {
	s.phase = PhaseCode
	s.stopSilenceTimer() // the silence timer never applies to CODE (spec §4.I)
	s.publishPhaseEntered(s.phase)

	if s.deps.CodingPlanner != nil && s.interview != nil {
		resume := domain.Resume{}
		start := time.Now()
		s.publish(events.EventProviderCallStarted, &events.ProviderCallStartedData{Provider: "coding_planner"})
		problems, err := s.deps.CodingPlanner.Plan(ctx, s.interview.PositionType, resume, s.cfg.CodingProblemCount)
		if err != nil {
			s.publish(events.EventProviderCallFailed, &events.ProviderCallFailedData{Provider: "coding_planner", Error: err, Duration: time.Since(start)})
			logger.Error("orchestrator: coding planner failed, skipping CODE phase", "session_id", s.id, "error", err)
			s.finishInterview(ctx)
			return
		}
		s.publish(events.EventProviderCallCompleted, &events.ProviderCallCompletedData{Provider: "coding_planner", Duration: time.Since(start)})
		s.codingProblems = problems
	}

	s.codingIndex = 0
	s.sendBestEffort(ServerMessage{Type: "phase_changed", Phase: s.phase})
	s.advanceCoding(ctx)
}

func (s *Session) advanceCoding(ctx context.Context) {
	if s.codingIndex >= len(s.codingProblems) {
		s.finishInterview(ctx)
		return
	}
	problem := s.codingProblems[s.codingIndex]
	s.sendBestEffort(ServerMessage{Type: "coding_problem", Phase: s.phase, Problem: problem})
}

func (s *Session) finishInterview(ctx context.Context) {
	s.phase = PhaseFinished
	s.stopSilenceTimer()
	s.publishPhaseEntered(s.phase)
	if s.interview != nil {
		s.interview.Completed = true
		if err := s.deps.Interviews.Save(ctx, s.interview); err != nil {
			logger.Warn("orchestrator: failed to persist interview completion", "session_id", s.id, "error", err)
		}
	}
	questionCount := 0
	if s.interview != nil {
		questionCount = len(s.interview.QuestionQueue)
	}
	s.publish(events.EventSessionCompleted, &events.SessionCompletedData{
		Duration:      time.Since(s.startedAt),
		QuestionCount: questionCount,
	})
	s.sendBestEffort(ServerMessage{Type: "phase_changed", Phase: s.phase, Status: "completed"})
}
