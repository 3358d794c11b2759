// Package domain holds the persisted entities of the interview system:
// Interview, Answer, CodingProblem, CodingAnswer, and the knowledge-point
// tags threaded through them.
package domain

import "time"

// PositionType enumerates the job categories a question bank and coding
// problem bank are organized around.
type PositionType string

const (
	PositionBackend  PositionType = "backend"
	PositionFrontend PositionType = "frontend"
	PositionPM       PositionType = "pm"
	PositionQA       PositionType = "qa"
	PositionAlgo     PositionType = "algo"
	PositionData     PositionType = "data"
	PositionOther    PositionType = "other"
)

// PlannedQuestion is one entry of an Interview's question_queue: the
// question text plus the knowledge points it probes.
type PlannedQuestion struct {
	Question        string   `json:"question"`
	KnowledgePoints []string `json:"knowledge_points"`
}

// Interview is the durable record of a scheduled interview. Created once;
// QuestionQueue is populated at creation time and is thereafter
// append-only via re-planning only when empty.
type Interview struct {
	ID                     string            `json:"id"`
	UserID                 string            `json:"user_id"`
	ResumeID               string            `json:"resume_id"`
	InterviewTime          time.Time         `json:"interview_time"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
	PositionName           string            `json:"position_name"`
	CompanyName            string            `json:"company_name"`
	PositionType           PositionType      `json:"position_type"`
	PositionDescription    string            `json:"position_description"`
	PositionRequirements   string            `json:"position_requirements,omitempty"`
	QuestionQueue          []PlannedQuestion `json:"question_queue"`
	Completed              bool              `json:"completed"`
}

// RubricScores holds the seven scored facets of an Answer, each in [0,5].
type RubricScores struct {
	ProfessionalKnowledge float64 `json:"professional_knowledge"`
	SkillMatching         float64 `json:"skill_matching"`
	Communication         float64 `json:"communication"`
	LogicalThinking       float64 `json:"logical_thinking"`
	Innovation            float64 `json:"innovation"`
	StressHandling        float64 `json:"stress_handling"`
	Correctness           float64 `json:"correctness"`
}

// NeutralRubricScores returns the default scores used when the Answer
// Scorer fails: every dimension defaults to 3.0 rather than 0, so an
// unscored answer does not read as a failing one.
func NeutralRubricScores() RubricScores {
	const neutral = 3.0
	return RubricScores{
		ProfessionalKnowledge: neutral,
		SkillMatching:         neutral,
		Communication:         neutral,
		LogicalThinking:       neutral,
		Innovation:            neutral,
		StressHandling:        neutral,
		Correctness:           neutral,
	}
}

// Answer is the persisted record for one question of one interview.
// Created exactly once per (InterviewID, QuestionIndex); mutated exactly
// once by the Scorer (Scores + Analysis).
type Answer struct {
	ID              string       `json:"id"`
	InterviewID     string       `json:"interview_id"`
	QuestionIndex   int          `json:"question_index"`
	Question        string       `json:"question"`
	AnswerText      string       `json:"answer_text"`
	KnowledgePoints []string     `json:"knowledge_points"`
	ClipPath        string       `json:"clip_path,omitempty"`
	Scores          RubricScores `json:"scores"`
	Scored          bool         `json:"scored"`
	Analysis        string       `json:"analysis,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Difficulty enumerates coding problem difficulty tiers.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// CodingExample is one worked input/output pair shown alongside a problem.
type CodingExample struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// CodingProblem is immutable within a session.
type CodingProblem struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Difficulty    Difficulty      `json:"difficulty"`
	Tags          []string        `json:"tags"`
	Companies     []string        `json:"companies"`
	PositionTypes []PositionType  `json:"position_types"`
	Examples      []CodingExample `json:"examples"`
}

// CodingAnswer is created at most once per (InterviewID, ProblemID).
type CodingAnswer struct {
	ID          string    `json:"id"`
	InterviewID string    `json:"interview_id"`
	ProblemID   string    `json:"problem_id"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkExperience is one entry of a candidate résumé's work history, used by
// the Question Planner and Coding Planner to tailor content.
type WorkExperience struct {
	Company     string   `json:"company"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
}

// Resume is the subset of candidate résumé data the planners consume.
// Résumé CRUD itself is out of scope (spec §1); this is the read shape.
type Resume struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	Skills          []string         `json:"skills"`
	WorkExperiences []WorkExperience `json:"work_experiences"`
	Projects        []string         `json:"projects"`
	ExpectedSkills  []string         `json:"expected_skills"`
}
