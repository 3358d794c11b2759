package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_ResultMessage(t *testing.T) {
	raw := []byte(`{"action":"result","data":{"result":{"text":"你好，世界"}}}`)
	event := Parse(raw)
	assert.Equal(t, KindFragment, event.Kind)
	assert.Equal(t, "你好，世界", event.Text)
}

func TestParse_ResultMessageWithNestedList(t *testing.T) {
	raw := []byte(`{"action":"result","data":{"ws":[{"cw":[{"w":"我"}]},{"cw":[{"w":"说完了"}]}]}}`)
	event := Parse(raw)
	assert.Equal(t, KindFragment, event.Kind)
	assert.Equal(t, "我说完了", event.Text)
}

func TestParse_ErrorMessage(t *testing.T) {
	raw := []byte(`{"action":"error","desc":"rate limit exceeded"}`)
	event := Parse(raw)
	assert.Equal(t, KindError, event.Kind)
	assert.Equal(t, "rate limit exceeded", event.Err)
}

func TestParse_UndecodableFrameFallsBackToRawExtraction(t *testing.T) {
	raw := []byte(`not even json 你好`)
	event := Parse(raw)
	assert.Equal(t, KindFragment, event.Kind)
	assert.Equal(t, "你好", event.Text)
}

func TestParse_IgnoresLatinText(t *testing.T) {
	raw := []byte(`{"action":"result","data":{"text":"hello world"}}`)
	event := Parse(raw)
	assert.Empty(t, event.Text)
}

func TestIsCJKOrPunctuation(t *testing.T) {
	assert.True(t, isCJKOrPunctuation('你'))
	assert.True(t, isCJKOrPunctuation('，'))
	assert.False(t, isCJKOrPunctuation('a'))
	assert.False(t, isCJKOrPunctuation('1'))
}
