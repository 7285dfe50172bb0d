package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates proctor event kinds. Student-side telemetry and
// operator actions share the same event space.
type EventType string

const (
	EventTabSwitch          EventType = "tab-switch"
	EventEscapeAttempt      EventType = "escape-attempt"
	EventFaceNotDetected    EventType = "face-not-detected"
	EventMultipleFaces      EventType = "multiple-faces"
	EventScreenShareLost    EventType = "screen-share-lost"
	EventAudioLost          EventType = "audio-lost"
	EventNetworkIssue       EventType = "network-issue"
	EventSuspiciousActivity EventType = "suspicious-activity"
	EventWarningSent        EventType = "warning-sent"
	EventMessageSent        EventType = "message-sent"
	EventSessionTerminated  EventType = "session-terminated"
)

// Severity classifies how urgently an event needs operator attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DefaultSeverity maps an event type to its standard severity.
func DefaultSeverity(t EventType) Severity {
	switch t {
	case EventTabSwitch, EventFaceNotDetected, EventAudioLost:
		return SeverityMedium
	case EventEscapeAttempt, EventMultipleFaces, EventScreenShareLost, EventSuspiciousActivity:
		return SeverityHigh
	case EventSessionTerminated:
		return SeverityCritical
	default:
		return SeverityLow
	}
}

// ProctorEvent is an immutable fact about one attempt. Only the
// Resolved flag may change after creation.
type ProctorEvent struct {
	ID          uuid.UUID `json:"id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name,omitempty"`
	Type        EventType `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Resolved    bool      `json:"resolved"`
}
