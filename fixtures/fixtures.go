// Package fixtures loads the static content SPEC_FULL.md's domain stack
// wires through gopkg.in/yaml.v3: the coding problem bank, and the
// position-type-aware fallback question set's overrides when an operator
// wants to supply their own rather than use planner's built-in Chinese
// defaults.
package fixtures

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/interviewrt/runtime/domain"
)

// codingProblemsFile is the on-disk shape of the coding-problem-bank YAML.
type codingProblemsFile struct {
	Problems []codingProblemEntry `yaml:"problems"`
}

type codingProblemEntry struct {
	ID            string                `yaml:"id"`
	Number        string                `yaml:"number"`
	Title         string                `yaml:"title"`
	Description   string                `yaml:"description"`
	Difficulty    string                `yaml:"difficulty"`
	Tags          []string              `yaml:"tags"`
	Companies     []string              `yaml:"companies"`
	PositionTypes []string              `yaml:"position_types"`
	Examples      []codingExampleEntry  `yaml:"examples"`
}

type codingExampleEntry struct {
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	Explanation string `yaml:"explanation"`
}

// LoadCodingProblems reads a YAML problem bank from path.
func LoadCodingProblems(path string) ([]*domain.CodingProblem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixtures: read %s: %w", path, err)
	}

	var file codingProblemsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("fixtures: parse %s: %w", path, err)
	}

	out := make([]*domain.CodingProblem, 0, len(file.Problems))
	for _, entry := range file.Problems {
		examples := make([]domain.CodingExample, 0, len(entry.Examples))
		for _, ex := range entry.Examples {
			examples = append(examples, domain.CodingExample{
				Input: ex.Input, Output: ex.Output, Explanation: ex.Explanation,
			})
		}
		positionTypes := make([]domain.PositionType, 0, len(entry.PositionTypes))
		for _, pt := range entry.PositionTypes {
			positionTypes = append(positionTypes, domain.PositionType(pt))
		}
		out = append(out, &domain.CodingProblem{
			ID:            entry.ID,
			Number:        entry.Number,
			Title:         entry.Title,
			Description:   entry.Description,
			Difficulty:    domain.Difficulty(entry.Difficulty),
			Tags:          entry.Tags,
			Companies:     entry.Companies,
			PositionTypes: positionTypes,
			Examples:      examples,
		})
	}
	return out, nil
}
