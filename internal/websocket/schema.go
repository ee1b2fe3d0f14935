package websocket

import (
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing       Action = "ping"
	ActionMediaGrant Action = "media_grant"
	ActionFrame      Action = "frame"
	ActionAudio      Action = "audio"
	ActionAnswer     Action = "answer"
	ActionFullscreen Action = "fullscreen"
	ActionVisibility Action = "visibility"
	ActionViolation  Action = "violation"
	ActionSubmit     Action = "submit"
)

// RequestEnvelope carries every client message. Only the fields of the
// named action are read.
type RequestEnvelope struct {
	Action Action `json:"action"`

	// media_grant
	Video bool `json:"video,omitempty"`
	Audio bool `json:"audio,omitempty"`

	// frame: base64 RGBA pixels plus the native detector's count, if any.
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Data   string `json:"data,omitempty"`
	Faces  *int   `json:"faces,omitempty"`

	// audio: analyser frequency bins, base64 in JSON.
	Bins []byte `json:"bins,omitempty"`

	// answer
	QID   string `json:"q_id,omitempty"`
	Value string `json:"value,omitempty"`

	// fullscreen / visibility
	Active *bool `json:"active,omitempty"`
	Hidden *bool `json:"hidden,omitempty"`

	// violation
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`

	// submit: answers typed but not yet saved.
	Answers map[string]string `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventAck          Event = "ack"
	EventPong         Event = "pong"
	EventRequestMedia Event = "request_media"
	EventReleaseMedia Event = "release_media"
	EventSession      Event = "session"
)

// AckResponse confirms an action that changes session state.
type AckResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
}

// MediaRequest asks the browser to open the camera and microphone and
// answer with a media_grant action.
type MediaRequest struct {
	Event       Event               `json:"event"`
	Constraints proctor.Constraints `json:"constraints"`
}

// MediaRelease asks the browser to stop its tracks.
type MediaRelease struct {
	Event Event `json:"event"`
}

// SessionMessage forwards a session event such as a tick or a violation.
type SessionMessage struct {
	Event   Event         `json:"event"`
	Session session.Event `json:"session"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
