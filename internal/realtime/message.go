// Package realtime implements the room-scoped realtime channel: a
// closed set of typed message kinds, an in-process pub/sub hub keyed
// by room, and an optional Redis PubSub bridge for multi-instance
// fanout. The channel routes; it never interprets payloads beyond
// room membership.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Suraj08344/examproct-backend/internal/model"
)

// Kind identifies a realtime message kind on the wire.
type Kind string

const (
	KindJoinProctor              Kind = "join-proctor"
	KindStudentStartedExam       Kind = "student-started-exam"
	KindStudentProgressUpdate    Kind = "student-progress-update"
	KindStudentActivityDetected  Kind = "student-activity-detected"
	KindStudentStatusChange      Kind = "student-status-change"
	KindStudentLeftExam          Kind = "student-left-exam"
	KindProctorMessageSent       Kind = "proctor-message-sent"
	KindStudentSessionTerminated Kind = "student-session-terminated"
	KindWebRTCOffer              Kind = "webrtc-offer"
	KindWebRTCAnswer             Kind = "webrtc-answer"
	KindWebRTCICECandidate       Kind = "webrtc-ice-candidate"
)

// Role addresses one side of a peer negotiation.
type Role string

const (
	RoleStudent Role = "student"
	RoleProctor Role = "proctor"
)

// Message is the closed union of channel message payloads. Every
// concrete payload lives in this package; consumers switch
// exhaustively on the concrete type or on Kind().
type Message interface {
	MessageKind() Kind
}

// JoinProctor announces a proctor attaching to an exam room.
type JoinProctor struct {
	ExamID      string `json:"exam_id"`
	ProctorName string `json:"proctor_name,omitempty"`
}

// StudentStartedExam announces a student joining the exam room.
type StudentStartedExam struct {
	StudentID    string `json:"student_id"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email,omitempty"`
	ExamID       string `json:"exam_id"`
}

// StudentProgressUpdate carries live attempt progress to proctors.
type StudentProgressUpdate struct {
	StudentID       string `json:"student_id"`
	Progress        int    `json:"progress"`
	CurrentQuestion int    `json:"current_question"`
	TimeRemaining   int    `json:"time_remaining"`
}

// StudentActivityDetected wraps a telemetry-originated proctor event.
type StudentActivityDetected struct {
	Event model.ProctorEvent `json:"event"`
}

// StudentStatusChange flips a student's display status.
type StudentStatusChange struct {
	StudentID string              `json:"student_id"`
	Status    model.MonitorStatus `json:"status"`
}

// StudentLeftExam announces a student leaving the room. It does not
// cancel the attempt; the machine keeps running against the session
// store so a later resume is possible.
type StudentLeftExam struct {
	StudentID string `json:"student_id"`
}

// ProctorMessageSent is an operator message or warning addressed to
// one student.
type ProctorMessageSent struct {
	StudentID string    `json:"student_id"`
	Type      string    `json:"type"` // "warning" | "message"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StudentSessionTerminated tells a student their session was ended by
// an operator.
type StudentSessionTerminated struct {
	StudentID string `json:"student_id"`
}

// WebRTCSignal is a peer-negotiation message (offer, answer or ICE
// candidate). The Payload is opaque to the channel and the relay.
type WebRTCSignal struct {
	Signal     Kind            `json:"signal"`
	ExamID     string          `json:"exam_id"`
	StudentID  string          `json:"student_id"`
	Payload    json.RawMessage `json:"payload"`
	TargetRole Role            `json:"target_role"`
}

func (JoinProctor) MessageKind() Kind              { return KindJoinProctor }
func (StudentStartedExam) MessageKind() Kind       { return KindStudentStartedExam }
func (StudentProgressUpdate) MessageKind() Kind    { return KindStudentProgressUpdate }
func (StudentActivityDetected) MessageKind() Kind  { return KindStudentActivityDetected }
func (StudentStatusChange) MessageKind() Kind      { return KindStudentStatusChange }
func (StudentLeftExam) MessageKind() Kind          { return KindStudentLeftExam }
func (ProctorMessageSent) MessageKind() Kind       { return KindProctorMessageSent }
func (StudentSessionTerminated) MessageKind() Kind { return KindStudentSessionTerminated }
func (s WebRTCSignal) MessageKind() Kind           { return s.Signal }

// Envelope is the wire form of a message: kind tag plus raw payload.
// Origin carries the publishing instance ID so the Redis bridge can
// filter its own echo.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps a message into an Envelope.
func Encode(msg Message) (Envelope, error) {
	kind := msg.MessageKind()
	switch kind {
	case KindJoinProctor, KindStudentStartedExam, KindStudentProgressUpdate,
		KindStudentActivityDetected, KindStudentStatusChange, KindStudentLeftExam,
		KindProctorMessageSent, KindStudentSessionTerminated,
		KindWebRTCOffer, KindWebRTCAnswer, KindWebRTCICECandidate:
	default:
		return Envelope{}, fmt.Errorf("encode: unknown message kind %q", kind)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return Envelope{Kind: kind, Payload: payload}, nil
}

// Decode turns an envelope back into its typed message. Unknown kinds
// are an error; there is no pass-through for unrecognized traffic.
func (e Envelope) Decode() (Message, error) {
	var msg Message
	switch e.Kind {
	case KindJoinProctor:
		msg = &JoinProctor{}
	case KindStudentStartedExam:
		msg = &StudentStartedExam{}
	case KindStudentProgressUpdate:
		msg = &StudentProgressUpdate{}
	case KindStudentActivityDetected:
		msg = &StudentActivityDetected{}
	case KindStudentStatusChange:
		msg = &StudentStatusChange{}
	case KindStudentLeftExam:
		msg = &StudentLeftExam{}
	case KindProctorMessageSent:
		msg = &ProctorMessageSent{}
	case KindStudentSessionTerminated:
		msg = &StudentSessionTerminated{}
	case KindWebRTCOffer, KindWebRTCAnswer, KindWebRTCICECandidate:
		sig := &WebRTCSignal{}
		if err := json.Unmarshal(e.Payload, sig); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		sig.Signal = e.Kind
		return sig, nil
	default:
		return nil, fmt.Errorf("decode: unknown message kind %q", e.Kind)
	}

	if err := json.Unmarshal(e.Payload, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
	}
	return msg, nil
}
