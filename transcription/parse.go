package transcription

import (
	"encoding/json"
)

// EventKind is the small enum spec §9 calls for: "parsing is a pure
// function from transcription messages to a small enum {Fragment{text},
// Complete, Error{…}}". Completion-phrase detection (spec §4.I, §12) is
// layered on top of Fragment by the Orchestrator, not here — Parse only
// extracts text; the caller decides whether it contains a completion
// phrase.
type EventKind int

const (
	KindFragment EventKind = iota
	KindError
)

// Event is the result of parsing one ingress message from the ASR vendor.
type Event struct {
	Kind EventKind
	Text string
	Err  string
}

// vendorMessage is the wire shape of one ASR ingress message: an
// "action" discriminator ("result" or "error") with a nested, loosely
// typed payload for successful results.
type vendorMessage struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
	Desc   string          `json:"desc"`
}

// Parse extracts an Event from one raw ingress message. action=result
// messages have their nested structure walked to extract every rune in
// the CJK Unified Ideographs range plus common Chinese punctuation,
// concatenated in document order (spec §4.E). action=error messages
// become KindError, carrying the vendor's description.
func Parse(raw []byte) Event {
	var msg vendorMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		// Vendor payloads are loosely typed; an undecodable frame still
		// yields the best-effort Chinese extraction from the raw bytes
		// rather than discarding the frame outright.
		return Event{Kind: KindFragment, Text: extractChinese(string(raw))}
	}

	if msg.Action == "error" {
		return Event{Kind: KindError, Err: msg.Desc}
	}

	var nested any
	if len(msg.Data) > 0 {
		_ = json.Unmarshal(msg.Data, &nested)
	}
	return Event{Kind: KindFragment, Text: extractChineseAny(nested)}
}

// extractChineseAny walks an arbitrary decoded JSON value (string, map,
// slice) and concatenates the Chinese-script runs found within it, the
// same recursive walk the original's extract_chinese() performs.
func extractChineseAny(v any) string {
	switch t := v.(type) {
	case string:
		return extractChinese(t)
	case []any:
		out := ""
		for _, item := range t {
			out += extractChineseAny(item)
		}
		return out
	case map[string]any:
		out := ""
		for _, item := range t {
			out += extractChineseAny(item)
		}
		return out
	default:
		return ""
	}
}

// isCJKOrPunctuation reports whether r is a CJK Unified Ideograph or one
// of the common Chinese punctuation marks retained alongside it.
func isCJKOrPunctuation(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FA5: // CJK Unified Ideographs (common range)
		return true
	case r == '，' || r == '。' || r == '！' || r == '？' || r == '、' || r == '；' || r == '：':
		return true
	}
	return false
}

func extractChinese(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if isCJKOrPunctuation(r) {
			out = append(out, r)
		}
	}
	return string(out)
}
