package websocket

import (
	"encoding/json"

	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	// Student stream actions.
	ActionAnswer      Action = "answer"
	ActionSave        Action = "save"
	ActionNavigate    Action = "navigate"
	ActionSubmit      Action = "submit"
	ActionTelemetry   Action = "telemetry"
	ActionAckLockdown Action = "ack-lockdown"
	ActionPing        Action = "ping"

	// Proctor console actions.
	ActionMessage   Action = "message"
	ActionWarning   Action = "warning"
	ActionTerminate Action = "terminate"

	// Shared by both roles.
	ActionSignal Action = "signal"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest stages an answer for the current question.
type AnswerRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Answer string `json:"ans"`
}

// NavigateRequest moves between questions.
type NavigateRequest struct {
	Action    Action `json:"action"`
	Direction string `json:"direction"` // "next" | "previous"
}

// TelemetryRequest reports a browser-side observation (tab switch,
// fullscreen exit, camera loss, ...).
type TelemetryRequest struct {
	Action      Action          `json:"action"`
	Type        model.EventType `json:"type"`
	Description string          `json:"description"`
}

// SignalRequest carries a WebRTC signaling frame to be relayed to the
// other side of the room.
type SignalRequest struct {
	Action    Action          `json:"action"`
	Signal    realtime.Kind   `json:"signal"` // webrtc-offer | webrtc-answer | webrtc-ice-candidate
	StudentID string          `json:"student_id"`
	Payload   json.RawMessage `json:"payload"`
}

// MessageRequest sends a proctor chat message to one student.
type MessageRequest struct {
	Action    Action `json:"action"`
	StudentID string `json:"student_id"`
	Message   string `json:"message"`
}

// WarningRequest sends a formal warning to one student.
type WarningRequest struct {
	Action    Action `json:"action"`
	StudentID string `json:"student_id"`
	Message   string `json:"message"`
}

// TerminateRequest forcefully ends one student's session.
type TerminateRequest struct {
	Action    Action `json:"action"`
	StudentID string `json:"student_id"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSuccess    Event = "success"
	EventState      Event = "state"
	EventSubmitted  Event = "submitted"
	EventLockdown   Event = "lockdown"
	EventRoster     Event = "roster"
	EventLog        Event = "log"
	EventRelay      Event = "relay"
	EventPong       Event = "pong"
)

// StateResponse pushes the full attempt view to the student. Sent on
// connect, after navigation, and on every countdown tick.
type StateResponse struct {
	Event   Event                     `json:"event"`
	Session *model.ExamAttemptSession `json:"session"`
}

// SuccessResponse acknowledges an action that has no richer payload.
type SuccessResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
}

// SubmittedResponse tells the student their attempt reached a terminal
// state. Redirect distinguishes "recorded now" from "already recorded".
type SubmittedResponse struct {
	Event    Event `json:"event"`
	Redirect bool  `json:"redirect"`
}

// LockdownResponse tells the student the session froze pending an
// acknowledgement.
type LockdownResponse struct {
	Event  Event `json:"event"`
	Frozen bool  `json:"frozen"`
}

// RelayResponse wraps a realtime room message for delivery to either
// role. Kind tells the client how to decode Payload.
type RelayResponse struct {
	Event   Event           `json:"event"`
	Kind    realtime.Kind   `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// RosterResponse pushes the current per-student monitor records to a
// proctor console on connect.
type RosterResponse struct {
	Event    Event                        `json:"event"`
	Students []model.StudentMonitorRecord `json:"students"`
}

// LogResponse pushes the merged event log to a proctor console.
type LogResponse struct {
	Event  Event                `json:"event"`
	Events []model.ProctorEvent `json:"events"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
