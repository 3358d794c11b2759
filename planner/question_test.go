package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewrt/runtime/domain"
	"github.com/interviewrt/runtime/providers"
	"github.com/interviewrt/runtime/types"
)

// fakeProvider is a minimal providers.Provider stub letting each test
// script the exact Chat response/error sequence, rather than wiring the
// teacher's scenario-driven MockProvider for single-call assertions.
type fakeProvider struct {
	chatFn func(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error)
}

func (f *fakeProvider) ID() string { return "fake" }
func (f *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
	return f.chatFn(ctx, req)
}
func (f *fakeProvider) ChatStream(ctx context.Context, req providers.ChatRequest) (<-chan providers.StreamChunk, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeProvider) SupportsStreaming() bool       { return false }
func (f *fakeProvider) ShouldIncludeRawOutput() bool  { return false }
func (f *fakeProvider) Close() error                  { return nil }
func (f *fakeProvider) CalculateCost(int, int, int) types.CostInfo {
	return types.CostInfo{}
}

func TestQuestionPlanner_Plan_FallbackWhenNoLLM(t *testing.T) {
	p := NewQuestionPlanner(nil, 0)
	questions := p.Plan(context.Background(), domain.PositionBackend, "Backend Engineer", "Acme", "builds services", domain.Resume{})
	require.NotEmpty(t, questions)
	assert.LessOrEqual(t, len(questions), fallbackMaxQuestions)
	assert.Contains(t, questions[0].Question, "自我介绍")
}

func TestQuestionPlanner_Plan_FallbackAddsSkillTriggeredQuestion(t *testing.T) {
	p := NewQuestionPlanner(nil, 0)
	resume := domain.Resume{Skills: []string{"Go", "SQL"}}
	questions := p.Plan(context.Background(), domain.PositionBackend, "Backend Engineer", "Acme", "", resume)

	found := false
	for _, q := range questions {
		if q.Question == "请谈谈你对 Go 并发模型的理解。" {
			found = true
		}
	}
	assert.True(t, found, "a Go skill on the resume should trigger the Go-specific fallback question")
}

func TestQuestionPlanner_Plan_UsesLLMWhenAvailable(t *testing.T) {
	calls := 0
	llm := &fakeProvider{chatFn: func(_ context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
		calls++
		if calls == 1 {
			return providers.ChatResponse{Content: "1. 第一个问题\n2. 第二个问题\n"}, nil
		}
		return providers.ChatResponse{Content: "- 知识点一\n- 知识点二"}, nil
	}}

	p := NewQuestionPlanner(llm, time.Second)
	questions := p.Plan(context.Background(), domain.PositionBackend, "Backend Engineer", "Acme", "desc", domain.Resume{})

	require.Len(t, questions, 2)
	assert.Equal(t, "第一个问题", questions[0].Question)
	assert.Equal(t, []string{"知识点一", "知识点二"}, questions[0].KnowledgePoints)
}

func TestQuestionPlanner_Plan_FallsBackOnLLMError(t *testing.T) {
	llm := &fakeProvider{chatFn: func(context.Context, providers.ChatRequest) (providers.ChatResponse, error) {
		return providers.ChatResponse{}, errors.New("provider unavailable")
	}}

	p := NewQuestionPlanner(llm, time.Second)
	questions := p.Plan(context.Background(), domain.PositionFrontend, "Frontend Engineer", "Acme", "desc", domain.Resume{})

	require.NotEmpty(t, questions)
	assert.Contains(t, questions[0].Question, "自我介绍")
}

func TestStripOrdinal(t *testing.T) {
	cases := map[string]string{
		"1. 第一个问题":  "第一个问题",
		"2、第二个问题":   "第二个问题",
		"3）第三个问题":   "第三个问题",
		"no ordinal here": "no ordinal here",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripOrdinal(in))
	}
}

func TestParseBulletLines(t *testing.T) {
	out := parseBulletLines("- 知识点一\n* 知识点二\n1. 知识点三\n\n")
	assert.Equal(t, []string{"知识点一", "知识点二", "知识点三"}, out)
}

func TestHasSkill(t *testing.T) {
	assert.True(t, hasSkill([]string{"Golang", "Docker"}, "go"))
	assert.False(t, hasSkill([]string{"Java"}, "go"))
}
