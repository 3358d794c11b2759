package orchestrator

import (
	"strings"
	"time"
)

// Config holds session-independent Orchestrator tuning, loaded by the
// config package from environment variables (SPEC_FULL.md §10).
type Config struct {
	// SilenceTimeout auto-advances INTRO/QUESTION after this much
	// inbound silence, the way original_source's start_silence_timer
	// does. Zero disables the timer entirely (spec §9 Open Question,
	// resolved in SPEC_FULL.md §13: default OFF, operator opt-in).
	SilenceTimeout time.Duration

	// CompletionPhrases are substrings that, when found anywhere in an
	// ASR transcript fragment, trigger the same flush-and-advance as a
	// silence timeout — independent of whether the timer is enabled
	// (grounded on original_source's literal `'说完了' in asr_text`
	// check, which the Python consumer runs regardless of its timer
	// state too).
	CompletionPhrases []string

	// CodingProblemCount is how many problems the Coding Planner selects
	// at CODE-phase entry (spec §4.G).
	CodingProblemCount int

	// InboundQueueSize bounds the per-session event channel (spec §5:
	// "single-consumer discipline" — a bounded channel applies natural
	// backpressure to producers rather than growing unbounded).
	InboundQueueSize int

	// IntroTemplate is the greeting sent with stream_created, rendered
	// through template.Renderer against the interview's position/company
	// (spec §4.I INTRO phase entry). An operator can swap in their own
	// wording via INTERVIEWD_INTRO_TEMPLATE without touching code.
	IntroTemplate string

	// AudioFrameRateLimit and VideoFrameRateLimit cap inbound
	// audio_frame/video_frame messages per second (spec §5: protecting
	// the Orchestrator's single-consumer loop from a runaway or
	// misbehaving client). Zero disables the corresponding limiter.
	AudioFrameRateLimit float64
	VideoFrameRateLimit float64
}

// DefaultCompletionPhrases mirrors original_source's single literal
// phrase, extended with a couple of equivalent common phrasings.
var DefaultCompletionPhrases = []string{"说完了", "回答完毕", "我说完了"}

// DefaultIntroTemplate is the stock greeting rendered at stream_created.
const DefaultIntroTemplate = "您好，欢迎参加{{company_name}} {{position_name}}岗位的面试，面试即将开始。"

// DefaultConfig returns the spec's defaults: silence timer disabled,
// completion-phrase detection always active, 3 coding problems, a
// 128-deep inbound queue.
func DefaultConfig() Config {
	return Config{
		SilenceTimeout:     0,
		CompletionPhrases:  DefaultCompletionPhrases,
		CodingProblemCount: 3,
		InboundQueueSize:   128,
		IntroTemplate:      DefaultIntroTemplate,
		// 30fps video and a generous 100/s ceiling on audio chunks comfortably
		// cover legitimate streaming while bounding a runaway/misbehaving client.
		AudioFrameRateLimit: 100,
		VideoFrameRateLimit: 30,
	}
}

func (c Config) containsCompletionPhrase(text string) bool {
	for _, phrase := range c.CompletionPhrases {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
