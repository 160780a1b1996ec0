package protocol

import (
	"encoding/json"
)

// EventType discriminates inbound server events.
type EventType string

// Supported inbound event types
const (
	EventTranscript EventType = "transcript"
	EventResponse   EventType = "response"
	EventReset      EventType = "reset"
	EventError      EventType = "error"
	EventAudioStart EventType = "audio_start"
	EventAudioChunk EventType = "audio_chunk"
	EventAudioEnd   EventType = "audio_end"
)

// Control frames are sent as literal strings, not JSON.
const (
	ControlCommit = "commit"
	ControlReset  = "reset"
)

// Event is the tagged union carried by inbound text frames. Only the
// fields relevant to the Type are populated.
type Event struct {
	Type EventType `json:"type"`

	// transcript
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	// response
	Metrics  *Metrics `json:"metrics,omitempty"`
	AudioURL string   `json:"audio_url,omitempty"`

	// audio_chunk: base64-encoded payload fragment
	Data string `json:"data,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Metrics reports per-stage pipeline latency for a reply.
type Metrics struct {
	SttMs   int64 `json:"stt_ms"`
	LlmMs   int64 `json:"llm_ms"`
	TtsMs   int64 `json:"tts_ms"`
	TotalMs int64 `json:"total_ms"`
}

// DecodeEvent parses one inbound text frame. Frames that are not valid
// JSON objects are treated as protocol keepalives: ok is false and no
// error is surfaced, so decoding never fails the event-handling path.
// Frames with an unrecognized type also report ok false.
func DecodeEvent(frame []byte) (Event, bool) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return Event{}, false
	}
	switch ev.Type {
	case EventTranscript, EventResponse, EventReset, EventError,
		EventAudioStart, EventAudioChunk, EventAudioEnd:
		return ev, true
	default:
		return ev, false
	}
}

// EncodeEvent marshals an event for an outbound text frame (server side).
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// EncodeControl returns the text frame payload for a control command.
// command must be ControlCommit or ControlReset.
func EncodeControl(command string) []byte {
	return []byte(command)
}

// EncodeAudio wraps raw audio bytes for a binary frame send. Framing
// relies on the transport's message boundaries: one message, one frame.
// The bytes pass through untouched.
func EncodeAudio(frame []byte) []byte {
	return frame
}
