package scorer

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/interviewrt/runtime/domain"
	"github.com/interviewrt/runtime/events"
	"github.com/interviewrt/runtime/logger"
	"github.com/interviewrt/runtime/providers"
	"github.com/interviewrt/runtime/stt"
	"github.com/interviewrt/runtime/types"
)

// rubricDimension pairs the Chinese label the LLM is asked to emit with
// the RubricScores field it maps to (spec §4.H).
type rubricDimension struct {
	label string
	set   func(*domain.RubricScores, float64)
}

var rubricDimensions = []rubricDimension{
	{"专业知识", func(r *domain.RubricScores, v float64) { r.ProfessionalKnowledge = v }},
	{"技能匹配", func(r *domain.RubricScores, v float64) { r.SkillMatching = v }},
	{"沟通表达", func(r *domain.RubricScores, v float64) { r.Communication = v }},
	{"逻辑思维", func(r *domain.RubricScores, v float64) { r.LogicalThinking = v }},
	{"创新能力", func(r *domain.RubricScores, v float64) { r.Innovation = v }},
	{"抗压能力", func(r *domain.RubricScores, v float64) { r.StressHandling = v }},
	{"正确性", func(r *domain.RubricScores, v float64) { r.Correctness = v }},
}

const anchorPrompt = `1分：完全不符合要求。
2分：大部分不符合要求，存在明显短板。
3分：基本符合要求，有待提升。
4分：符合要求，表现良好。
5分：完全符合要求，表现优秀。`

// Scorer runs the Answer Scorer pipeline for one job.
type Scorer struct {
	answers  domain.AnswerRepository
	llm      providers.Provider
	offline  stt.Service
	sessions SessionNotifier

	// EventBus, if set, receives EventProviderCallStarted/Completed/Failed
	// around the rubric-scoring LLM call and EventAnswerScored once
	// scores are persisted (spec §10). Left nil by New; callers that want
	// these events set it directly after construction.
	EventBus *events.EventBus
}

// SessionNotifier delivers a best-effort "scoring completed" callback to
// a still-live session (spec §4.I: "Worker callbacks: scoring completion
// (informational; not required to advance phase)"). Implementations
// typically wrap sessionstore.Store.NotifyBestEffort.
type SessionNotifier interface {
	NotifyScoringComplete(sessionID, answerID string)
}

// New constructs a Scorer. offline may be nil to skip re-transcription.
func New(answers domain.AnswerRepository, llm providers.Provider, offline stt.Service, sessions SessionNotifier) *Scorer {
	return &Scorer{answers: answers, llm: llm, offline: offline, sessions: sessions}
}

// Score runs one scoring job: optional re-transcription, LLM rubric
// scoring, and persistence. Scoring failures never propagate to the
// caller as a fatal error — the Answer keeps neutral defaults and an
// analysis string records the failure (spec §4.H, §7).
func (s *Scorer) Score(ctx context.Context, sessionID string, job Job) {
	answer, err := s.answers.Get(ctx, job.AnswerID)
	if err != nil {
		logger.Error("scorer: answer not found", "answer_id", job.AnswerID, "error", err)
		return
	}

	if s.offline != nil && job.ClipPath != "" {
		if retext, err := s.reTranscribe(ctx, job.ClipPath); err == nil && retext != "" {
			answer.AnswerText = retext
		} else if err != nil {
			logger.Warn("scorer: offline re-transcription failed, keeping original text", "answer_id", job.AnswerID, "error", err)
		}
	}

	start := time.Now()
	scores, analysis, err := s.runRubric(ctx, sessionID, answer, job.ClipPath)
	if err != nil {
		logger.Error("scorer: rubric scoring failed, keeping neutral defaults", "answer_id", job.AnswerID, "error", err)
		scores = domain.NeutralRubricScores()
		analysis = fmt.Sprintf("scoring failed: %v", err)
	}

	if err := s.answers.UpdateScores(ctx, job.AnswerID, scores, analysis); err != nil {
		logger.Error("scorer: failed to persist scores", "answer_id", job.AnswerID, "error", err)
		return
	}

	s.publish(sessionID, events.EventAnswerScored, &events.AnswerScoredData{
		Dimension: "overall",
		Duration:  time.Since(start),
	})

	if s.sessions != nil && sessionID != "" {
		s.sessions.NotifyScoringComplete(sessionID, job.AnswerID)
	}
}

func (s *Scorer) publish(sessionID string, eventType events.EventType, data events.EventData) {
	if s.EventBus == nil {
		return
	}
	s.EventBus.Publish(&events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      data,
	})
}

func (s *Scorer) reTranscribe(ctx context.Context, clipPath string) (string, error) {
	data, err := os.ReadFile(clipPath)
	if err != nil {
		return "", fmt.Errorf("scorer: read clip: %w", err)
	}
	text, err := s.offline.Transcribe(ctx, data, stt.DefaultTranscriptionConfig())
	if err != nil {
		return "", fmt.Errorf("scorer: offline transcribe: %w", err)
	}
	return text, nil
}

func (s *Scorer) runRubric(ctx context.Context, sessionID string, answer *domain.Answer, clipPath string) (domain.RubricScores, string, error) {
	if s.llm == nil {
		return domain.RubricScores{}, "", fmt.Errorf("scorer: no llm provider configured")
	}

	prompt := buildRubricPrompt(answer.Question, answer.AnswerText, answer.KnowledgePoints)
	msg := types.Message{Role: "user", Content: prompt}
	if clipPath != "" && strings.HasSuffix(clipPath, ".mp4") {
		if videoPart, err := videoContentPart(clipPath); err == nil {
			msg.Parts = append(msg.Parts, videoPart)
		}
	}

	start := time.Now()
	s.publish(sessionID, events.EventProviderCallStarted, &events.ProviderCallStartedData{Provider: s.llm.ID()})

	stream, err := s.llm.ChatStream(ctx, providers.ChatRequest{
		Messages:    []types.Message{msg},
		Temperature: 0.3,
		MaxTokens:   2048,
	})
	if err != nil {
		s.publish(sessionID, events.EventProviderCallFailed, &events.ProviderCallFailedData{Provider: s.llm.ID(), Error: err, Duration: time.Since(start)})
		return domain.RubricScores{}, "", fmt.Errorf("scorer: chat stream: %w", err)
	}

	var full strings.Builder
	for chunk := range stream {
		if chunk.Error != nil {
			s.publish(sessionID, events.EventProviderCallFailed, &events.ProviderCallFailedData{Provider: s.llm.ID(), Error: chunk.Error, Duration: time.Since(start)})
			return domain.RubricScores{}, "", fmt.Errorf("scorer: stream error: %w", chunk.Error)
		}
		full.WriteString(chunk.Delta)
	}
	s.publish(sessionID, events.EventProviderCallCompleted, &events.ProviderCallCompletedData{Provider: s.llm.ID(), Duration: time.Since(start)})

	scores, rationale := parseRubricResponse(full.String())
	return scores, rationale, nil
}

func videoContentPart(path string) (types.ContentPart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ContentPart{}, err
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return types.ContentPart{
		Type: types.ContentTypeVideo,
		Media: &types.MediaContent{
			Data:     &encoded,
			MIMEType: "video/mp4",
		},
	}, nil
}

func buildRubricPrompt(question, answerText string, knowledgePoints []string) string {
	var b strings.Builder
	b.WriteString("请根据以下面试问题和候选人回答，按七个维度打分（1-5分），并给出理由。\n")
	b.WriteString("评分标准：\n")
	b.WriteString(anchorPrompt)
	b.WriteString("\n\n维度：专业知识、技能匹配、沟通表达、逻辑思维、创新能力、抗压能力、正确性\n")
	b.WriteString("知识点：" + strings.Join(knowledgePoints, "、") + "\n\n")
	fmt.Fprintf(&b, "面试问题：%s\n候选人回答：%s\n\n", question, answerText)
	b.WriteString("请严格按每行一个维度的格式输出：<维度>：<分数>分。理由：<理由>")
	return b.String()
}

// rubricLineRe matches "<dimension>：<score>分。理由：..." lines (spec §4.H).
var rubricLineRe = regexp.MustCompile(`^(.+?)[：:]\s*([0-9.]+)\s*分[。.]\s*理由[：:]\s*(.*)$`)

// parseRubricResponse parses the LLM's per-line rubric output. Lines that
// don't parse for a dimension leave that dimension at its neutral
// default (3.0) per spec §4.H.
func parseRubricResponse(text string) (domain.RubricScores, string) {
	scores := domain.NeutralRubricScores()
	var rationale strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m := rubricLineRe.FindStringSubmatch(line)
		if m == nil {
			rationale.WriteString(line)
			rationale.WriteString("\n")
			continue
		}
		label, scoreStr, reason := strings.TrimSpace(m[1]), m[2], m[3]
		value, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			value = 3.0
		}
		for _, dim := range rubricDimensions {
			if strings.Contains(label, dim.label) {
				dim.set(&scores, value)
				break
			}
		}
		rationale.WriteString(line)
		rationale.WriteString("\n")
	}
	return scores, strings.TrimSpace(rationale.String())
}
