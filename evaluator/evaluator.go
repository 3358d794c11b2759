// Package evaluator implements the Evaluator component (spec §4.J): once
// an interview is FINISHED, aggregate its scored Answers into the
// chart-ready datasets the frontend renders (radar/bar/trend), generate
// narrative comments via an LLM with deterministic fallbacks, and compute
// a delta against the candidate's most recent prior interview for the
// same position type.
//
// The four independent comment-generation calls are the domain stack's
// wiring home for golang.org/x/sync/errgroup — grounded on the
// fan-out-with-shared-cancellation shape, generalized here from
// concurrent stage execution (pipeline package) to concurrent LLM calls.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/interviewrt/runtime/domain"
	"github.com/interviewrt/runtime/events"
	"github.com/interviewrt/runtime/logger"
	"github.com/interviewrt/runtime/providers"
	"github.com/interviewrt/runtime/types"
)

// reportSchemaVersion is the semver-validated schema version stamped on
// every Report (spec §6 "persisted state" implies a stable, evolvable
// report shape). Validated at package init with semver.StrictNewVersion
// the same way prompt/version.go validates version strings elsewhere in
// the teacher's codebase, so a malformed bump fails at build time rather
// than surfacing as a client-side parsing surprise.
var reportSchemaVersion = func() string {
	const v = "1.0.0"
	if _, err := semver.StrictNewVersion(v); err != nil {
		panic(fmt.Sprintf("evaluator: invalid reportSchemaVersion %q: %v", v, err))
	}
	return v
}()

// KnowledgePointScore is one bar-chart data point: a knowledge point's
// mastery, the mean of mean(correctness/5) across every Answer that
// probed it (spec §4.J).
type KnowledgePointScore struct {
	Point   string  `json:"point"`
	Mastery float64 `json:"mastery"`
}

// PieSlice is one pie-chart data point: how many Answers probed a given
// knowledge point (spec §4.J).
type PieSlice struct {
	Point string `json:"point"`
	Count int    `json:"count"`
}

// TrendPoint is one line-chart data point: the six-ability-dimension
// average, rescaled to the percentile scale, for every Answer created on
// a given date (spec §4.J, §8 scenario 5: "one point per distinct
// creation date").
type TrendPoint struct {
	Date      string  `json:"date"`
	Composite float64 `json:"composite"`
}

// Comparison is the delta against the candidate's previous interview for
// the same position type, when one exists.
type Comparison struct {
	PriorInterviewID string              `json:"prior_interview_id"`
	Delta            domain.RubricScores `json:"delta"`
	Improved         bool                `json:"improved"`
}

// Report is the full Evaluator output for one interview (spec §4.J).
type Report struct {
	ReportVersion string                `json:"report_version"`
	InterviewID   string                `json:"interview_id"`
	Radar         domain.RubricScores   `json:"radar"`
	Pie           []PieSlice            `json:"pie"`
	Bar           []KnowledgePointScore `json:"bar"`
	Trend         []TrendPoint          `json:"trend"`

	Summary        string `json:"summary"`
	Strengths      string `json:"strengths"`
	Weaknesses     string `json:"weaknesses"`
	Recommendation string `json:"recommendation"`

	ComparedTo *Comparison `json:"compared_to,omitempty"`
}

// PriorInterviewLookup finds the candidate's most recent completed
// interview before the one being evaluated, for the same position type.
// Returns (nil, nil) when there is none.
type PriorInterviewLookup func(ctx context.Context, userID string, positionType domain.PositionType, beforeInterviewID string) (*domain.Interview, error)

// Evaluator aggregates a finished interview's Answers into a Report.
type Evaluator struct {
	interviews  domain.InterviewRepository
	answers     domain.AnswerRepository
	llm         providers.Provider
	priorLookup PriorInterviewLookup

	// EventBus, if set, receives EventProviderCallStarted/Completed/Failed
	// around each of the four narrative comment-generation LLM calls
	// (spec §10). The evaluation runs after the live session has ended,
	// so events are published with SessionID set to interviewID rather
	// than a WebSocket session ID. Left nil by New.
	EventBus *events.EventBus
}

// New constructs an Evaluator. llm may be nil to always use the
// deterministic comment fallbacks; priorLookup may be nil to skip
// comparison.
func New(interviews domain.InterviewRepository, answers domain.AnswerRepository, llm providers.Provider, priorLookup PriorInterviewLookup) *Evaluator {
	return &Evaluator{interviews: interviews, answers: answers, llm: llm, priorLookup: priorLookup}
}

// Evaluate builds the Report for interviewID. The interview must already
// be Completed (spec §4.J: evaluation only runs once FINISHED).
func (e *Evaluator) Evaluate(ctx context.Context, interviewID string) (*Report, error) {
	interview, err := e.interviews.Get(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("evaluator: load interview: %w", err)
	}
	if !interview.Completed {
		return nil, fmt.Errorf("evaluator: interview %s is not yet finished", interviewID)
	}

	answers, err := e.answers.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("evaluator: list answers: %w", err)
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionIndex < answers[j].QuestionIndex })

	report := &Report{
		ReportVersion: reportSchemaVersion,
		InterviewID:   interviewID,
		Radar:         radarAverage(answers),
		Pie:           knowledgePointDistribution(answers),
		Bar:           knowledgePointMastery(answers),
		Trend:         trendSeries(answers),
	}

	e.fillComments(ctx, interview, answers, report)

	if e.priorLookup != nil {
		if cmp, err := e.compareToPrior(ctx, interview); err != nil {
			logger.Warn("evaluator: prior-interview comparison failed", "interview_id", interviewID, "error", err)
		} else {
			report.ComparedTo = cmp
		}
	}

	return report, nil
}

// percentileScale rescales a 0-5 rubric mean to the 0-100 scale the
// frontend's charts render (spec §4.J, §8 scenario 5: mean 4.0 -> 80.0).
const percentileScale = 20

// round1 rounds to one decimal place (spec §4.J: "round to one decimal").
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// radarAverage computes the per-dimension arithmetic mean of answers'
// scores, rescaled to the percentile scale and rounded to one decimal
// (spec §4.J).
func radarAverage(answers []*domain.Answer) domain.RubricScores {
	if len(answers) == 0 {
		return domain.NeutralRubricScores()
	}
	var sum domain.RubricScores
	for _, a := range answers {
		sum.ProfessionalKnowledge += a.Scores.ProfessionalKnowledge
		sum.SkillMatching += a.Scores.SkillMatching
		sum.Communication += a.Scores.Communication
		sum.LogicalThinking += a.Scores.LogicalThinking
		sum.Innovation += a.Scores.Innovation
		sum.StressHandling += a.Scores.StressHandling
		sum.Correctness += a.Scores.Correctness
	}
	n := float64(len(answers))
	return domain.RubricScores{
		ProfessionalKnowledge: round1(sum.ProfessionalKnowledge / n * percentileScale),
		SkillMatching:         round1(sum.SkillMatching / n * percentileScale),
		Communication:         round1(sum.Communication / n * percentileScale),
		LogicalThinking:       round1(sum.LogicalThinking / n * percentileScale),
		Innovation:            round1(sum.Innovation / n * percentileScale),
		StressHandling:        round1(sum.StressHandling / n * percentileScale),
		Correctness:           round1(sum.Correctness / n * percentileScale),
	}
}

func composite(s domain.RubricScores) float64 {
	return (s.ProfessionalKnowledge + s.SkillMatching + s.Communication +
		s.LogicalThinking + s.Innovation + s.StressHandling + s.Correctness) / 7
}

// sixAbilityAverage averages the six ability dimensions (every rubric
// facet but Correctness, which knowledgePointMastery already reports on
// its own) used by the Trend dataset (spec §4.J).
func sixAbilityAverage(s domain.RubricScores) float64 {
	return (s.ProfessionalKnowledge + s.SkillMatching + s.Communication +
		s.LogicalThinking + s.Innovation + s.StressHandling) / 6
}

// knowledgePointDistribution counts how many Answers probed each
// knowledge point, for the pie dataset (spec §4.J). Points are reported
// in first-seen order for a stable chart legend.
func knowledgePointDistribution(answers []*domain.Answer) []PieSlice {
	counts := map[string]int{}
	var order []string
	for _, a := range answers {
		for _, p := range a.KnowledgePoints {
			if _, seen := counts[p]; !seen {
				order = append(order, p)
			}
			counts[p]++
		}
	}
	out := make([]PieSlice, 0, len(order))
	for _, p := range order {
		out = append(out, PieSlice{Point: p, Count: counts[p]})
	}
	return out
}

// knowledgePointMastery computes, per knowledge point, the mean of
// correctness/5 across every Answer that probed it, for the bar dataset
// (spec §4.J).
func knowledgePointMastery(answers []*domain.Answer) []KnowledgePointScore {
	sums := map[string]float64{}
	counts := map[string]int{}
	var order []string
	for _, a := range answers {
		for _, p := range a.KnowledgePoints {
			if _, seen := counts[p]; !seen {
				order = append(order, p)
			}
			sums[p] += a.Scores.Correctness / 5
			counts[p]++
		}
	}
	out := make([]KnowledgePointScore, 0, len(order))
	for _, p := range order {
		out = append(out, KnowledgePointScore{Point: p, Mastery: sums[p] / float64(counts[p])})
	}
	return out
}

// trendSeries groups Answers by creation date and averages their six
// ability dimensions, rescaled to the percentile scale, for the line
// dataset (spec §4.J, §8 scenario 5: "one point per distinct creation
// date"). Dates are returned in ascending order.
func trendSeries(answers []*domain.Answer) []TrendPoint {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, a := range answers {
		date := a.CreatedAt.Format("2006-01-02")
		sums[date] += sixAbilityAverage(a.Scores)
		counts[date]++
	}
	dates := make([]string, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]TrendPoint, 0, len(dates))
	for _, d := range dates {
		out = append(out, TrendPoint{Date: d, Composite: round1(sums[d] / float64(counts[d]) * percentileScale)})
	}
	return out
}

func deltaScores(a, b domain.RubricScores) domain.RubricScores {
	return domain.RubricScores{
		ProfessionalKnowledge: a.ProfessionalKnowledge - b.ProfessionalKnowledge,
		SkillMatching:         a.SkillMatching - b.SkillMatching,
		Communication:         a.Communication - b.Communication,
		LogicalThinking:       a.LogicalThinking - b.LogicalThinking,
		Innovation:            a.Innovation - b.Innovation,
		StressHandling:        a.StressHandling - b.StressHandling,
		Correctness:           a.Correctness - b.Correctness,
	}
}

func (e *Evaluator) compareToPrior(ctx context.Context, interview *domain.Interview) (*Comparison, error) {
	prior, err := e.priorLookup(ctx, interview.UserID, interview.PositionType, interview.ID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}

	priorAnswers, err := e.answers.ListByInterview(ctx, prior.ID)
	if err != nil {
		return nil, err
	}

	currentAnswers, err := e.answers.ListByInterview(ctx, interview.ID)
	if err != nil {
		return nil, err
	}

	delta := deltaScores(radarAverage(currentAnswers), radarAverage(priorAnswers))
	return &Comparison{
		PriorInterviewID: prior.ID,
		Delta:            delta,
		Improved:         composite(delta) > 0,
	}, nil
}

// fillComments generates the four narrative fields concurrently via
// errgroup, each call independent of the others and each falling back to
// a deterministic template on any LLM failure (spec §4.J: "a comment
// field never blocks the rest of the report").
func (e *Evaluator) fillComments(ctx context.Context, interview *domain.Interview, answers []*domain.Answer, report *Report) {
	radar := report.Radar

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.Summary = e.comment(gctx, "summary", interview, radar, answers)
		return nil
	})
	g.Go(func() error {
		report.Strengths = e.comment(gctx, "strengths", interview, radar, answers)
		return nil
	})
	g.Go(func() error {
		report.Weaknesses = e.comment(gctx, "weaknesses", interview, radar, answers)
		return nil
	})
	g.Go(func() error {
		report.Recommendation = e.comment(gctx, "recommendation", interview, radar, answers)
		return nil
	})
	_ = g.Wait() // each Go func always returns nil; failures are handled per-call via fallback
}

func (e *Evaluator) comment(ctx context.Context, kind string, interview *domain.Interview, radar domain.RubricScores, answers []*domain.Answer) string {
	if e.llm == nil {
		return fallbackComment(kind, radar)
	}

	prompt := buildCommentPrompt(kind, interview, radar, answers)

	start := time.Now()
	e.publish(interview.ID, events.EventProviderCallStarted, &events.ProviderCallStartedData{Provider: e.llm.ID()})

	resp, err := e.llm.Chat(ctx, providers.ChatRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.5,
		MaxTokens:   512,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		e.publish(interview.ID, events.EventProviderCallFailed, &events.ProviderCallFailedData{Provider: e.llm.ID(), Error: err, Duration: time.Since(start)})
		logger.Warn("evaluator: comment generation failed, using fallback", "kind", kind, "error", err)
		return fallbackComment(kind, radar)
	}
	e.publish(interview.ID, events.EventProviderCallCompleted, &events.ProviderCallCompletedData{Provider: e.llm.ID(), Duration: time.Since(start)})
	return strings.TrimSpace(resp.Content)
}

func (e *Evaluator) publish(sessionID string, eventType events.EventType, data events.EventData) {
	if e.EventBus == nil {
		return
	}
	e.EventBus.Publish(&events.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      data,
	})
}

func buildCommentPrompt(kind string, interview *domain.Interview, radar domain.RubricScores, answers []*domain.Answer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "候选人应聘职位：%s（%s）\n", interview.PositionName, interview.PositionType)
	fmt.Fprintf(&b, "各维度平均分（百分制）：专业知识%.1f 技能匹配%.1f 沟通表达%.1f 逻辑思维%.1f 创新能力%.1f 抗压能力%.1f 正确性%.1f\n",
		radar.ProfessionalKnowledge, radar.SkillMatching, radar.Communication,
		radar.LogicalThinking, radar.Innovation, radar.StressHandling, radar.Correctness)
	fmt.Fprintf(&b, "共回答 %d 个问题。\n", len(answers))

	switch kind {
	case "summary":
		b.WriteString("请用一段话总结候选人的整体表现。")
	case "strengths":
		b.WriteString("请列出候选人的主要优势，不超过三点。")
	case "weaknesses":
		b.WriteString("请列出候选人的主要不足，不超过三点。")
	case "recommendation":
		b.WriteString("请给出是否推荐进入下一轮面试的建议，并简要说明理由。")
	}
	return b.String()
}

// fallbackComment produces a deterministic comment from the radar scores
// alone, used whenever no LLM is configured or the call fails — the
// Evaluator's equivalent of the Answer Scorer's neutral-default policy.
// radar is already on the percentile scale (spec §4.J), so the thresholds
// here are percentileScale-relative too (avg >= 3.5/5 becomes avg >= 70).
func fallbackComment(kind string, radar domain.RubricScores) string {
	avg := composite(radar)
	switch kind {
	case "summary":
		return fmt.Sprintf("综合评分 %.1f/100，各维度表现%s。", avg, tier(avg))
	case "strengths":
		return strongestDimension(radar) + "方面表现相对突出。"
	case "weaknesses":
		return weakestDimension(radar) + "方面有待提升。"
	case "recommendation":
		if avg >= 70 {
			return "建议进入下一轮面试。"
		}
		return "建议谨慎考虑，可安排针对性复核。"
	default:
		return ""
	}
}

func tier(avg float64) string {
	switch {
	case avg >= 80:
		return "优秀"
	case avg >= 60:
		return "良好"
	default:
		return "有待加强"
	}
}

func strongestDimension(r domain.RubricScores) string {
	dims := dimensionMap(r)
	best, bestLabel := -1.0, ""
	for label, v := range dims {
		if v > best {
			best, bestLabel = v, label
		}
	}
	return bestLabel
}

func weakestDimension(r domain.RubricScores) string {
	dims := dimensionMap(r)
	worst, worstLabel := 6.0, ""
	for label, v := range dims {
		if v < worst {
			worst, worstLabel = v, label
		}
	}
	return worstLabel
}

func dimensionMap(r domain.RubricScores) map[string]float64 {
	return map[string]float64{
		"专业知识": r.ProfessionalKnowledge,
		"技能匹配": r.SkillMatching,
		"沟通表达": r.Communication,
		"逻辑思维": r.LogicalThinking,
		"创新能力": r.Innovation,
		"抗压能力": r.StressHandling,
		"正确性":  r.Correctness,
	}
}
