// Package telemetry turns browser/runtime signals reported by the
// student client into typed proctor events. The emitter is a pure
// producer: emission is fire-and-forget, is never a delivery
// guarantee, and never blocks the attempt machine.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/Suraj08344/examproct-backend/internal/config"
	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
)

// Emitter raises proctor events for one student's attempt.
type Emitter struct {
	exam        *model.Exam
	studentID   string
	studentName string
	hub         *realtime.Hub
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewEmitter binds an emitter to one attempt's identity. rdb may be
// nil, in which case events are not queued for persistence.
func NewEmitter(exam *model.Exam, studentID, studentName string, hub *realtime.Hub, rdb *redis.Client, log zerolog.Logger) *Emitter {
	return &Emitter{
		exam:        exam,
		studentID:   studentID,
		studentName: studentName,
		hub:         hub,
		rdb:         rdb,
		log:         log.With().Str("component", "telemetry").Str("student_id", studentID).Logger(),
	}
}

// VisibilityLost handles a page-visibility loss. It emits a tab-switch
// event only while the exam enforces tab-switch prevention; otherwise
// it is a no-op. Returns the emitted event, if any.
func (e *Emitter) VisibilityLost(ctx context.Context) *model.ProctorEvent {
	if !e.exam.PreventTabSwitch {
		return nil
	}
	return e.emit(ctx, model.EventTabSwitch, model.SeverityMedium, "Student switched away from the exam tab")
}

// EscapeAttempt handles an attempted escape from the enforced
// lockdown mode. The returned event requires an operator-visible
// acknowledgment before the student may continue; the caller is
// responsible for freezing the attempt until then. Emits nothing when
// the exam does not enforce lockdown.
func (e *Emitter) EscapeAttempt(ctx context.Context) *model.ProctorEvent {
	if !e.exam.LockdownMode {
		return nil
	}
	return e.emit(ctx, model.EventEscapeAttempt, model.SeverityHigh, "Student attempted to leave lockdown mode")
}

// Detection is the delivery point for external face/audio/screen
// detection hooks: each detection maps 1:1 to a typed event with its
// default severity.
func (e *Emitter) Detection(ctx context.Context, t model.EventType, description string) *model.ProctorEvent {
	return e.emit(ctx, t, model.DefaultSeverity(t), description)
}

func (e *Emitter) emit(ctx context.Context, t model.EventType, sev model.Severity, description string) *model.ProctorEvent {
	event := &model.ProctorEvent{
		ID:          uuid.New(),
		StudentID:   e.studentID,
		StudentName: e.studentName,
		Type:        t,
		Severity:    sev,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}

	if err := e.hub.Publish(realtime.ProctorRoom(e.exam.ID.String()), &realtime.StudentActivityDetected{Event: *event}); err != nil {
		e.log.Debug().Err(err).Str("type", string(t)).Msg("Event publish failed")
	}

	if e.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"exam_id": e.exam.ID.String(),
			"event":   event,
		})
		if err := e.rdb.RPush(ctx, config.WorkerKey.PersistEventsQueue, payload).Err(); err != nil {
			e.log.Warn().Err(err).Str("type", string(t)).Msg("Event persist enqueue failed")
		}
	}

	return event
}
