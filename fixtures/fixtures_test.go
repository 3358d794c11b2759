package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewrt/runtime/domain"
)

const sampleYAML = `
problems:
  - id: p-1
    number: "1"
    title: 两数之和
    description: 给定一个数组和目标值
    difficulty: easy
    tags: [数组, 哈希表]
    companies: [字节跳动]
    position_types: [backend, algorithm]
    examples:
      - input: "[2,7,11,15], 9"
        output: "[0,1]"
        explanation: 2+7=9
  - id: p-2
    number: "2"
    title: 反转链表
    description: 反转一个单链表
    difficulty: medium
    tags: [链表]
    position_types: [backend]
`

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "problems.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCodingProblems_ParsesEntries(t *testing.T) {
	path := writeYAML(t, sampleYAML)

	problems, err := LoadCodingProblems(path)
	require.NoError(t, err)
	require.Len(t, problems, 2)

	first := problems[0]
	assert.Equal(t, "p-1", first.ID)
	assert.Equal(t, "两数之和", first.Title)
	assert.Equal(t, domain.Difficulty("easy"), first.Difficulty)
	assert.Equal(t, []string{"数组", "哈希表"}, first.Tags)
	assert.Equal(t, []domain.PositionType{domain.PositionBackend, "algorithm"}, first.PositionTypes)
	require.Len(t, first.Examples, 1)
	assert.Equal(t, "2+7=9", first.Examples[0].Explanation)

	second := problems[1]
	assert.Equal(t, "反转链表", second.Title)
	assert.Empty(t, second.Examples)
}

func TestLoadCodingProblems_MissingFile(t *testing.T) {
	_, err := LoadCodingProblems(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadCodingProblems_MalformedYAML(t *testing.T) {
	path := writeYAML(t, "problems: [this is not: valid: yaml: at all")
	_, err := LoadCodingProblems(path)
	assert.Error(t, err)
}

func TestLoadCodingProblems_EmptyFile(t *testing.T) {
	path := writeYAML(t, "")
	problems, err := LoadCodingProblems(path)
	require.NoError(t, err)
	assert.Empty(t, problems)
}
