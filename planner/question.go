// Package planner implements the Question Planner (spec §4.F) and Coding
// Planner (spec §4.G): session-start components that build the ordered
// question queue and the coding-problem selection. LLM calls go through
// providers.Provider, the teacher's chat-provider abstraction; prompts
// are assembled with text/template, the same templating approach the
// teacher uses in its own prompt package.
package planner

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/interviewrt/runtime/domain"
	"github.com/interviewrt/runtime/logger"
	"github.com/interviewrt/runtime/providers"
	"github.com/interviewrt/runtime/types"
)

const (
	minQuestions          = 8
	maxQuestions          = 10
	fallbackMaxQuestions  = 8
	minKnowledgePoints    = 3
	maxKnowledgePoints    = 6
	defaultPlanDeadline   = 5 * time.Second
)

// QuestionPlanner produces the question queue for a new session.
type QuestionPlanner struct {
	llm      providers.Provider
	deadline time.Duration
}

// NewQuestionPlanner constructs a QuestionPlanner. deadline <= 0 uses the
// spec default of 5 seconds (spec §5: "hard deadline (default 5 s)").
func NewQuestionPlanner(llm providers.Provider, deadline time.Duration) *QuestionPlanner {
	if deadline <= 0 {
		deadline = defaultPlanDeadline
	}
	return &QuestionPlanner{llm: llm, deadline: deadline}
}

var questionPromptTmpl = template.Must(template.New("questions").Parse(
	`你是一名{{.PositionName}}（{{.CompanyName}}）的面试官。
岗位描述：{{.PositionDescription}}
候选人技能：{{.Skills}}
候选人项目经历：{{.Projects}}
候选人工作经历：{{.WorkHistory}}

请生成 8-10 个面试问题，按从易到难排列，每行一个问题，前面带数字编号。`))

// Plan returns the ordered question queue for (positionType, positionName,
// companyName, positionDescription, résumé). It tries the LLM path under
// a deadline and falls back to a deterministic template on timeout or
// error (spec §4.F) — session start must never block longer than the
// deadline.
func (p *QuestionPlanner) Plan(ctx context.Context, positionType domain.PositionType, positionName, companyName, positionDescription string, resume domain.Resume) []domain.PlannedQuestion {
	if p.llm != nil {
		ctx, cancel := context.WithTimeout(ctx, p.deadline)
		defer cancel()
		if questions, err := p.planWithLLM(ctx, positionName, companyName, positionDescription, resume); err == nil {
			return p.annotate(ctx, questions)
		} else {
			logger.Warn("question planner: llm path failed, using fallback", "error", err)
		}
	}
	return p.fallback(positionType, resume)
}

func (p *QuestionPlanner) planWithLLM(ctx context.Context, positionName, companyName, positionDescription string, resume domain.Resume) ([]string, error) {
	var prompt strings.Builder
	if err := questionPromptTmpl.Execute(&prompt, struct {
		PositionName, CompanyName, PositionDescription, Skills, Projects, WorkHistory string
	}{
		PositionName:         positionName,
		CompanyName:          companyName,
		PositionDescription:  positionDescription,
		Skills:               strings.Join(resume.Skills, "、"),
		Projects:             strings.Join(resume.Projects, "；"),
		WorkHistory:          summarizeWorkHistory(resume.WorkExperiences),
	}); err != nil {
		return nil, fmt.Errorf("planner: render prompt: %w", err)
	}

	resp, err := p.llm.Chat(ctx, providers.ChatRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt.String()}},
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("planner: llm chat: %w", err)
	}

	return parseNumberedLines(resp.Content), nil
}

// annotate calls the LLM once per question for knowledge-point tags,
// falling back to a position-type default set per question on failure.
func (p *QuestionPlanner) annotate(ctx context.Context, questions []string) []domain.PlannedQuestion {
	out := make([]domain.PlannedQuestion, 0, len(questions))
	for _, q := range questions {
		tags, err := p.tagKnowledgePoints(ctx, q)
		if err != nil || len(tags) == 0 {
			tags = defaultKnowledgePoints
		}
		out = append(out, domain.PlannedQuestion{Question: q, KnowledgePoints: tags})
	}
	return out
}

func (p *QuestionPlanner) tagKnowledgePoints(ctx context.Context, question string) ([]string, error) {
	resp, err := p.llm.Chat(ctx, providers.ChatRequest{
		Messages: []types.Message{{
			Role:    "user",
			Content: fmt.Sprintf("列出以下面试问题考察的3-6个知识点，每行一个：\n%s", question),
		}},
		Temperature: 0.3,
		MaxTokens:   256,
	})
	if err != nil {
		return nil, err
	}
	tags := parseBulletLines(resp.Content)
	if len(tags) > maxKnowledgePoints {
		tags = tags[:maxKnowledgePoints]
	}
	return tags, nil
}

var defaultKnowledgePoints = []string{"基础知识", "实践经验"}

// fallback builds a deterministic question set per position type: a
// fixed core, plus skill-keyword-triggered additions, plus a
// project-triggered addition, plus two closing questions, total <= 8
// (spec §4.F).
func (p *QuestionPlanner) fallback(positionType domain.PositionType, resume domain.Resume) []domain.PlannedQuestion {
	core := fallbackCore[positionType]
	if core == nil {
		core = fallbackCore[domain.PositionOther]
	}

	questions := append([]string{}, core...)

	for keyword, extra := range fallbackSkillTriggers {
		if hasSkill(resume.Skills, keyword) {
			questions = append(questions, extra)
		}
	}

	if len(resume.Projects) > 0 {
		questions = append(questions, "请介绍一下你最近的一个项目。")
	}

	questions = append(questions, "你遇到过最大的技术难题是什么？", "你对未来的职业规划是什么？")

	if len(questions) > fallbackMaxQuestions {
		questions = questions[:fallbackMaxQuestions]
	}

	out := make([]domain.PlannedQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, domain.PlannedQuestion{Question: q, KnowledgePoints: positionDefaultKnowledgePoints(positionType)})
	}
	return out
}

var fallbackCore = map[domain.PositionType][]string{
	domain.PositionBackend:  {"请简单自我介绍一下。", "你为什么选择我们公司？", "请介绍一下你熟悉的后端技术栈。"},
	domain.PositionFrontend: {"请简单自我介绍一下。", "你为什么选择我们公司？", "请介绍一下你熟悉的前端框架。"},
	domain.PositionPM:       {"请简单自我介绍一下。", "你为什么选择我们公司？", "请描述一次你主导的产品决策。"},
	domain.PositionQA:       {"请简单自我介绍一下。", "你为什么选择我们公司？", "请介绍一下你的测试方法论。"},
	domain.PositionAlgo:     {"请简单自我介绍一下。", "你为什么选择我们公司？", "请介绍一下你熟悉的算法领域。"},
	domain.PositionData:     {"请简单自我介绍一下。", "你为什么选择我们公司？", "请介绍一下你熟悉的数据处理工具。"},
	domain.PositionOther:    {"请简单自我介绍一下。", "你为什么选择我们公司？"},
}

var fallbackSkillTriggers = map[string]string{
	"java":   "请谈谈你对面向对象设计原则的理解。",
	"python": "请谈谈你使用 Python 做过的自动化或数据处理工作。",
	"go":     "请谈谈你对 Go 并发模型的理解。",
	"react":  "请谈谈你对 React 组件状态管理的理解。",
	"sql":    "请谈谈你做过的数据库查询优化。",
}

func positionDefaultKnowledgePoints(positionType domain.PositionType) []string {
	if pts, ok := fallbackKnowledgePoints[positionType]; ok {
		return pts
	}
	return defaultKnowledgePoints
}

var fallbackKnowledgePoints = map[domain.PositionType][]string{
	domain.PositionBackend:  {"系统设计", "数据库", "并发"},
	domain.PositionFrontend: {"前端框架", "性能优化", "浏览器原理"},
	domain.PositionAlgo:     {"数据结构", "算法复杂度"},
}

func hasSkill(skills []string, keyword string) bool {
	for _, s := range skills {
		if strings.EqualFold(s, keyword) || strings.Contains(strings.ToLower(s), keyword) {
			return true
		}
	}
	return false
}

func summarizeWorkHistory(experiences []domain.WorkExperience) string {
	parts := make([]string, 0, len(experiences))
	for _, exp := range experiences {
		parts = append(parts, fmt.Sprintf("%s - %s: %s", exp.Company, exp.Title, exp.Description))
	}
	return strings.Join(parts, "；")
}

// parseNumberedLines parses newline-delimited "1. question" style output,
// stripping ordinals (spec §4.F).
func parseNumberedLines(text string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, stripOrdinal(line))
	}
	return out
}

// parseBulletLines parses bullet ("- x", "* x") or numbered lines,
// stripping the marker.
func parseBulletLines(text string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "-")
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(stripOrdinal(strings.TrimSpace(line)))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// stripOrdinal removes a leading "N." / "N、" / "N）" numbering marker.
func stripOrdinal(line string) string {
	i := 0
	for i < len(line) && (line[i] >= '0' && line[i] <= '9') {
		i++
	}
	if i == 0 {
		return line
	}
	rest := line[i:]
	for _, marker := range []string{".", "、", ")", "）", ":", "："} {
		if strings.HasPrefix(rest, marker) {
			return strings.TrimSpace(rest[len(marker):])
		}
	}
	if _, err := strconv.Atoi(line[:i]); err == nil {
		return strings.TrimSpace(rest)
	}
	return line
}
