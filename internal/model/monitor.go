package model

import (
	"time"
)

// MonitorStatus enumerates the display status of a monitored student.
type MonitorStatus string

const (
	MonitorActive       MonitorStatus = "active"
	MonitorPaused       MonitorStatus = "paused"
	MonitorDisconnected MonitorStatus = "disconnected"
	MonitorCompleted    MonitorStatus = "completed"
)

// StudentMonitorRecord is the proctor-side projection of one student's
// live state, built exclusively from inbound channel events. It is
// never written back to the student.
type StudentMonitorRecord struct {
	StudentID       string        `json:"student_id"`
	Name            string        `json:"name"`
	Email           string        `json:"email,omitempty"`
	Status          MonitorStatus `json:"status"`
	Progress        int           `json:"progress"`
	TimeRemaining   int           `json:"time_remaining"`
	CurrentQuestion int           `json:"current_question"`
	TotalQuestions  int           `json:"total_questions"`
	Alerts          int           `json:"alerts"`
	FaceDetected    bool          `json:"face_detected"`
	ScreenShared    bool          `json:"screen_shared"`
	AudioEnabled    bool          `json:"audio_enabled"`
	JoinedAt        time.Time     `json:"joined_at"`
}

// OperatorMessageRequest is the payload for a proctor message or
// warning sent over REST instead of the console socket.
type OperatorMessageRequest struct {
	Message string `json:"message" binding:"required,max=500"`
}

// PeerConnectionBinding is the ephemeral negotiation context the relay
// tracks per viewed student. A new offer for an already-bound student
// replaces the prior binding.
type PeerConnectionBinding struct {
	StudentID string    `json:"student_id"`
	OfferedAt time.Time `json:"offered_at"`
}
