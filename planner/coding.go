package planner

import (
	"context"
	"math/rand"
	"sort"
	"strings"

	"github.com/interviewrt/runtime/domain"
)

const (
	jitterMax         = 5.0
	tagOverlapWeight  = 10.0
	companyOverlapWeight = 20.0
)

// CodingPlanner selects the N coding problems presented in the CODE phase
// (spec §4.G).
type CodingPlanner struct {
	bank domain.CodingProblemRepository
	rng  *rand.Rand
}

// NewCodingPlanner constructs a CodingPlanner over a fixed problem bank.
func NewCodingPlanner(bank domain.CodingProblemRepository, rng *rand.Rand) *CodingPlanner {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &CodingPlanner{bank: bank, rng: rng}
}

// Plan selects N problems for (positionType, résumé) per spec §4.G:
// filter by applicable position type, then by résumé-derived difficulty
// preference, score by tag/company overlap plus jitter, return the top N.
func (p *CodingPlanner) Plan(ctx context.Context, positionType domain.PositionType, resume domain.Resume, n int) ([]*domain.CodingProblem, error) {
	all, err := p.bank.List(ctx)
	if err != nil {
		return nil, err
	}

	candidates := filterByPositionType(all, positionType)
	if len(candidates) == 0 {
		candidates = all
	}

	preferredDifficulty := difficultyFromExperience(len(resume.WorkExperiences))
	if filtered := filterByDifficulty(candidates, preferredDifficulty); len(filtered) > 0 {
		candidates = filtered
	}

	baseline := baselineTags[positionType]
	keywordTags := keywordDerivedTags(resume.ExpectedSkills)
	preferredTags := unionTags(baseline, keywordTags)

	companies := workCompanies(resume.WorkExperiences)

	scored := make([]scoredProblem, 0, len(candidates))
	for _, problem := range candidates {
		score := tagOverlapWeight*float64(countOverlap(problem.Tags, preferredTags)) +
			companyOverlapWeight*float64(countOverlap(problem.Companies, companies)) +
			p.rng.Float64()*jitterMax
		scored = append(scored, scoredProblem{problem: problem, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if n > len(scored) {
		n = len(scored)
	}
	out := make([]*domain.CodingProblem, n)
	for i := 0; i < n; i++ {
		out[i] = scored[i].problem
	}
	return out, nil
}

type scoredProblem struct {
	problem *domain.CodingProblem
	score   float64
}

func filterByPositionType(problems []*domain.CodingProblem, positionType domain.PositionType) []*domain.CodingProblem {
	var out []*domain.CodingProblem
	for _, p := range problems {
		for _, pt := range p.PositionTypes {
			if pt == positionType {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// difficultyFromExperience maps résumé work-experience count to a
// preferred difficulty tier: 0 -> easy, 1-2 -> medium, >=3 -> hard.
func difficultyFromExperience(experienceCount int) domain.Difficulty {
	switch {
	case experienceCount == 0:
		return domain.DifficultyEasy
	case experienceCount <= 2:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyHard
	}
}

func filterByDifficulty(problems []*domain.CodingProblem, difficulty domain.Difficulty) []*domain.CodingProblem {
	var out []*domain.CodingProblem
	for _, p := range problems {
		if p.Difficulty == difficulty {
			out = append(out, p)
		}
	}
	return out
}

var baselineTags = map[domain.PositionType][]string{
	domain.PositionBackend:  {"系统设计", "数据库"},
	domain.PositionFrontend: {"前端", "DOM"},
	domain.PositionAlgo:     {"算法", "数据结构"},
	domain.PositionData:     {"数据处理"},
}

// keywordDerivedTags maps résumé-expected-position keywords (e.g. "java")
// to tag sets the way spec §4.G's example does ("java" -> {面向对象, Java}).
func keywordDerivedTags(expectedSkills []string) []string {
	mapping := map[string][]string{
		"java":   {"面向对象", "Java"},
		"go":     {"并发", "Go"},
		"python": {"脚本", "Python"},
	}
	var out []string
	for _, skill := range expectedSkills {
		if tags, ok := mapping[strings.ToLower(skill)]; ok {
			out = append(out, tags...)
		}
	}
	return out
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, t := range append(append([]string{}, a...), b...) {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func workCompanies(experiences []domain.WorkExperience) []string {
	out := make([]string, 0, len(experiences))
	for _, e := range experiences {
		out = append(out, e.Company)
	}
	return out
}

func countOverlap(a, b []string) int {
	set := make(map[string]struct{}, len(b))
	for _, item := range b {
		set[item] = struct{}{}
	}
	count := 0
	for _, item := range a {
		if _, ok := set[item]; ok {
			count++
		}
	}
	return count
}
