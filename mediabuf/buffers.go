// Package mediabuf implements the Media Buffers component (spec §4.B):
// two append-only in-memory sequences per session — audio PCM chunks and
// decoded JPEG keyframes — scoped to the current question and cleared
// atomically on question transition. Owned solely by the Orchestrator;
// never shared (spec §5), so no internal locking is needed — the zero
// value is ready to use from a single goroutine.
package mediabuf

import "encoding/base64"

// Buffers holds one question's worth of audio and video data.
type Buffers struct {
	audio  [][]byte
	frames [][]byte
}

// New returns an empty Buffers.
func New() *Buffers {
	return &Buffers{}
}

// AppendAudioBase64 base64-decodes chunk and appends the raw PCM bytes.
// Returns an error (ClientProtocol per spec §7) without mutating the
// buffer if chunk isn't valid base64 — malformed frames are rejected, not
// silently dropped or buffered as garbage (spec §9 open question).
func (b *Buffers) AppendAudioBase64(chunk string) error {
	decoded, err := base64.StdEncoding.DecodeString(chunk)
	if err != nil {
		return &DecodeError{Kind: "audio", Cause: err}
	}
	b.audio = append(b.audio, decoded)
	return nil
}

// AppendFrameBase64 base64-decodes a JPEG frame and appends the raw
// bytes. Decode validation of the JPEG itself happens in the Proctor /
// Clip Muxer, not here — this layer only guards against malformed
// base64 transport encoding.
func (b *Buffers) AppendFrameBase64(chunk string) error {
	decoded, err := base64.StdEncoding.DecodeString(chunk)
	if err != nil {
		return &DecodeError{Kind: "frame", Cause: err}
	}
	b.frames = append(b.frames, decoded)
	return nil
}

// Audio returns the accumulated raw PCM chunks, in arrival order.
func (b *Buffers) Audio() [][]byte {
	return b.audio
}

// Frames returns the accumulated raw JPEG frame bytes, in arrival order.
func (b *Buffers) Frames() [][]byte {
	return b.frames
}

// Empty reports whether both sequences are empty.
func (b *Buffers) Empty() bool {
	return len(b.audio) == 0 && len(b.frames) == 0
}

// Snapshot returns copies of both sequences for handoff to the Clip
// Muxer, and does NOT clear the receiver — callers clear separately via
// Reset so that buffer-clear and question-advance can be sequenced
// atomically by the Orchestrator (spec invariant 5).
func (b *Buffers) Snapshot() (audio [][]byte, frames [][]byte) {
	audio = make([][]byte, len(b.audio))
	copy(audio, b.audio)
	frames = make([][]byte, len(b.frames))
	copy(frames, b.frames)
	return audio, frames
}

// Reset clears both sequences. Called by the Orchestrator as part of the
// flush-and-advance critical section, after Snapshot has handed ownership
// of the current contents to the Clip Muxer.
func (b *Buffers) Reset() {
	b.audio = nil
	b.frames = nil
}

// DecodeError reports a malformed base64 payload for one media kind.
type DecodeError struct {
	Kind  string
	Cause error
}

func (e *DecodeError) Error() string {
	return "mediabuf: malformed base64 " + e.Kind + " payload: " + e.Cause.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
