// Package orchestrator implements the Orchestrator component (spec
// §4.I): the per-session state machine that fans in client messages,
// transcription events, proctor events, and worker callbacks, and drives
// interview phases. Grounded on session/bidirectional_session.go's
// multi-source select loop (ctx.Done / providerSession.Done /
// providerSession.Response fan-in), generalized here to a fourth source
// (proctor) and a richer per-phase dispatch table.
package orchestrator

import "encoding/json"

// Phase is the sum type spec §9 calls for: {Intro, Question{idx},
// Code{idx}, Finished}. idx is tracked separately on Session rather than
// embedded in the Phase value, since Go has no parametrized enum variants
// — the (Phase, QuestionIndex) pair together carry the same information.
type Phase string

const (
	PhaseIntro     Phase = "intro"
	PhaseQuestion  Phase = "question"
	PhaseCode      Phase = "code"
	PhaseFinished  Phase = "finished"
)

// ClientMessage is one inbound frame: a string type tag plus a raw
// payload decoded per-type by the handler (spec §6).
type ClientMessage struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// Inbound client message payloads (spec §6 "Client -> Server").
type createStreamMsg struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	InterviewID string `json:"interview_id"`
}

type joinStreamMsg struct {
	StreamID string `json:"stream_id"`
}

type signalMsg struct {
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	TargetPeer   string          `json:"target_peer,omitempty"`
}

type audioFrameMsg struct {
	AudioData string `json:"audio_data"`
	End       bool   `json:"end"`
}

type videoFrameMsg struct {
	FrameData string `json:"frame_data"`
	FrameType string `json:"frame_type"`
}

type answerCompletedMsg struct {
	AnswerText string `json:"answer_text"`
}

type manualAnswerTextMsg struct {
	Text string `json:"text"`
}

type submitCodingAnswerMsg struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// ServerMessage is one outbound frame (spec §6 "Server -> Client").
// ClientSender implementations marshal this to wire JSON.
type ServerMessage struct {
	Type         string      `json:"type"`
	SessionID    string      `json:"session_id,omitempty"`
	StreamID     string      `json:"stream_id,omitempty"`
	PeerID       string      `json:"peer_id,omitempty"`
	Phase        Phase       `json:"phase,omitempty"`
	Text         string      `json:"text,omitempty"`
	Question     string      `json:"question,omitempty"`
	Status       string      `json:"status,omitempty"`
	Message      string      `json:"message,omitempty"`
	Problem      interface{} `json:"problem,omitempty"`
}

// ClientSender delivers a ServerMessage to the connected client. Owned
// by the transport layer; the Orchestrator never touches the socket
// directly (spec §9: "neither party imports the other's internals").
type ClientSender interface {
	Send(msg ServerMessage) error
}

// RoomBroadcaster relays signalling and observer frames to other
// sessions in the same stream/room (spec §4.I "observer fan-out",
// §12 supplemented from original_source's multi-viewer support).
type RoomBroadcaster interface {
	Join(streamID, sessionID string, sender ClientSender)
	Broadcast(streamID string, msg ServerMessage, exclude string)
}
