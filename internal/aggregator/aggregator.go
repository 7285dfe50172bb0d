// Package aggregator maintains one operator's live view of an exam
// room: the student monitor table, the merged event log, and the
// outbound operator commands. State updates are local and never block
// on the network; commands are synchronous requests to the external
// notification service followed by fire-and-forget publishes.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
	"github.com/Suraj08344/examproct-backend/internal/signaling"
)

// NotificationService is the external collaborator executing operator
// actions against the student's authoritative record.
type NotificationService interface {
	SendMessage(ctx context.Context, examID, studentID, message string) error
	SendWarning(ctx context.Context, examID, studentID, message string) error
	TerminateSession(ctx context.Context, examID, studentID string) error
}

// Aggregator is one operator view over one exam room.
type Aggregator struct {
	examID         string
	totalQuestions int
	hub            *realtime.Hub
	notifier       NotificationService
	relay          *signaling.Relay
	log            zerolog.Logger

	mu      sync.Mutex
	records map[string]*model.StudentMonitorRecord
	events  []model.ProctorEvent // arrival order; display order is computed
}

// New creates an aggregator for one exam room. relay may be nil when
// the operator view does not negotiate peer connections.
func New(examID string, totalQuestions int, hub *realtime.Hub, notifier NotificationService, relay *signaling.Relay, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		examID:         examID,
		totalQuestions: totalQuestions,
		hub:            hub,
		notifier:       notifier,
		relay:          relay,
		log:            log.With().Str("component", "aggregator").Str("exam_id", examID).Logger(),
		records:        make(map[string]*model.StudentMonitorRecord),
	}
}

// Seed prefills the view from durable attempt state, so an operator
// joining mid-exam sees students who connected before the console did.
// Live messages always win: a seeded record is never overwritten once
// a student with the same ID exists.
func (a *Aggregator) Seed(records []model.StudentMonitorRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range records {
		rec := records[i]
		if _, ok := a.records[rec.StudentID]; ok {
			continue
		}
		if rec.TotalQuestions == 0 {
			rec.TotalQuestions = a.totalQuestions
		}
		a.records[rec.StudentID] = &rec
	}
}

// Apply folds one inbound channel message into the view. Unknown or
// irrelevant kinds are ignored; the channel may redeliver and reorder,
// so every branch is idempotent.
func (a *Aggregator) Apply(msg realtime.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch m := msg.(type) {
	case *realtime.StudentStartedExam:
		a.applyStarted(m)
	case *realtime.StudentProgressUpdate:
		if rec, ok := a.records[m.StudentID]; ok {
			rec.Progress = m.Progress
			rec.CurrentQuestion = m.CurrentQuestion
			rec.TimeRemaining = m.TimeRemaining
		}
	case *realtime.StudentActivityDetected:
		a.applyActivity(m.Event)
	case *realtime.StudentStatusChange:
		if rec, ok := a.records[m.StudentID]; ok {
			rec.Status = m.Status
		}
	case *realtime.StudentLeftExam:
		if rec, ok := a.records[m.StudentID]; ok {
			rec.Status = model.MonitorDisconnected
		}
	}
}

// applyStarted implements the idempotent-join dedup rule: a started
// event for a known student never creates a second record. Room
// rejoin can race a buffered start, so duplicates are expected.
func (a *Aggregator) applyStarted(m *realtime.StudentStartedExam) {
	if rec, ok := a.records[m.StudentID]; ok {
		// Duplicate join: keep the record, only fill identity fields a
		// placeholder may lack.
		if rec.Name == "" {
			rec.Name = m.StudentName
		}
		if rec.Email == "" {
			rec.Email = m.StudentEmail
		}
		return
	}
	a.records[m.StudentID] = &model.StudentMonitorRecord{
		StudentID:       m.StudentID,
		Name:            m.StudentName,
		Email:           m.StudentEmail,
		Status:          model.MonitorActive,
		TotalQuestions:  a.totalQuestions,
		CurrentQuestion: 1,
		FaceDetected:    true,
		ScreenShared:    true,
		AudioEnabled:    true,
		JoinedAt:        time.Now().UTC(),
	}
}

func (a *Aggregator) applyActivity(event model.ProctorEvent) {
	a.events = append(a.events, event)

	rec, ok := a.records[event.StudentID]
	if !ok {
		return
	}

	switch event.Type {
	case model.EventWarningSent, model.EventMessageSent, model.EventSessionTerminated:
		// Operator-originated; not an alert against the student.
	default:
		rec.Alerts++
	}

	switch event.Type {
	case model.EventFaceNotDetected, model.EventMultipleFaces:
		rec.FaceDetected = event.Type == model.EventMultipleFaces
	case model.EventScreenShareLost:
		rec.ScreenShared = false
	case model.EventAudioLost:
		rec.AudioEnabled = false
	}
}

// ─── Operator actions ───────────────────────────────────────────────

// SendMessage delivers an operator message to one student. On
// notification failure no local state changes.
func (a *Aggregator) SendMessage(ctx context.Context, studentID, message string) error {
	return a.operatorSend(ctx, studentID, message, "message", model.EventMessageSent, a.notifier.SendMessage)
}

// SendWarning delivers an operator warning to one student.
func (a *Aggregator) SendWarning(ctx context.Context, studentID, message string) error {
	return a.operatorSend(ctx, studentID, message, "warning", model.EventWarningSent, a.notifier.SendWarning)
}

func (a *Aggregator) operatorSend(
	ctx context.Context,
	studentID, message, kind string,
	eventType model.EventType,
	send func(ctx context.Context, examID, studentID, message string) error,
) error {
	if err := send(ctx, a.examID, studentID, message); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}

	now := time.Now().UTC()
	if err := a.hub.Publish(realtime.StudentRoom(a.examID, studentID), &realtime.ProctorMessageSent{
		StudentID: studentID,
		Type:      kind,
		Message:   message,
		Timestamp: now,
	}); err != nil {
		a.log.Debug().Err(err).Str("student_id", studentID).Msg("Command publish failed")
	}

	a.appendLocal(model.ProctorEvent{
		ID:          uuid.New(),
		StudentID:   studentID,
		Type:        eventType,
		Severity:    model.SeverityLow,
		Description: message,
		Timestamp:   now,
	})
	return nil
}

// TerminateSession ends a student's session from the operator side.
// On success the student's record is forced to disconnected without
// waiting for any student-side acknowledgment; the student's attempt
// machine is untouched, and the result service is the authority that
// rejects a submission after termination.
func (a *Aggregator) TerminateSession(ctx context.Context, studentID string) error {
	if err := a.notifier.TerminateSession(ctx, a.examID, studentID); err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}

	if err := a.hub.Publish(realtime.StudentRoom(a.examID, studentID), &realtime.StudentSessionTerminated{
		StudentID: studentID,
	}); err != nil {
		a.log.Debug().Err(err).Str("student_id", studentID).Msg("Termination publish failed")
	}

	a.appendLocal(model.ProctorEvent{
		ID:          uuid.New(),
		StudentID:   studentID,
		Type:        model.EventSessionTerminated,
		Severity:    model.SeverityCritical,
		Description: "Session terminated by proctor",
		Timestamp:   time.Now().UTC(),
	})

	a.mu.Lock()
	if rec, ok := a.records[studentID]; ok {
		rec.Status = model.MonitorDisconnected
	}
	a.mu.Unlock()
	return nil
}

func (a *Aggregator) appendLocal(event model.ProctorEvent) {
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()
}

// ─── Views ──────────────────────────────────────────────────────────

// Record returns a copy of one student's monitor record.
func (a *Aggregator) Record(studentID string) (model.StudentMonitorRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[studentID]
	if !ok {
		return model.StudentMonitorRecord{}, false
	}
	return *rec, true
}

// Records returns the monitor table ordered by join time.
func (a *Aggregator) Records() []model.StudentMonitorRecord {
	a.mu.Lock()
	out := make([]model.StudentMonitorRecord, 0, len(a.records))
	for _, rec := range a.records {
		out = append(out, *rec)
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

// EventLog returns the merged log — operator-originated and remote
// events together — ordered by timestamp descending, ties broken by
// arrival order. Transport-level duplicates are displayed as-is.
func (a *Aggregator) EventLog() []model.ProctorEvent {
	a.mu.Lock()
	out := make([]model.ProctorEvent, len(a.events))
	copy(out, a.events)
	a.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// RemoveStudent drops a student's record and their peer binding.
func (a *Aggregator) RemoveStudent(studentID string) {
	a.mu.Lock()
	delete(a.records, studentID)
	a.mu.Unlock()
	if a.relay != nil {
		a.relay.DropBinding(a.examID, studentID)
	}
}

// Close tears the view down when the operator leaves the room. The
// dashboard is not persisted across operator reloads.
func (a *Aggregator) Close() {
	if a.relay != nil {
		a.relay.DropExam(a.examID)
	}
}
