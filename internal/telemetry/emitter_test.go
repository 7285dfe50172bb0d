package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
)

func newTestEmitter(preventTabSwitch, lockdown bool) (*Emitter, *realtime.Hub, *model.Exam) {
	hub := realtime.NewHub(zerolog.Nop())
	exam := &model.Exam{
		ID:               uuid.New(),
		Title:            "Midterm",
		DurationMinutes:  30,
		QuestionIDs:      []string{"q1", "q2"},
		PreventTabSwitch: preventTabSwitch,
		LockdownMode:     lockdown,
	}
	return NewEmitter(exam, "s1", "Alice", hub, nil, zerolog.Nop()), hub, exam
}

func expectActivity(t *testing.T, sub *realtime.Subscription) model.ProctorEvent {
	t.Helper()
	select {
	case env := <-sub.C:
		require.Equal(t, realtime.KindStudentActivityDetected, env.Kind)
		msg, err := env.Decode()
		require.NoError(t, err)
		act, ok := msg.(*realtime.StudentActivityDetected)
		require.True(t, ok)
		return act.Event
	case <-time.After(time.Second):
		t.Fatal("no activity event published")
		return model.ProctorEvent{}
	}
}

func TestVisibilityLostGatedOnFlag(t *testing.T) {
	emitter, hub, exam := newTestEmitter(false, false)
	sub := hub.Subscribe(realtime.ProctorRoom(exam.ID.String()))
	defer sub.Cancel()

	require.Nil(t, emitter.VisibilityLost(context.Background()))
	select {
	case env := <-sub.C:
		t.Fatalf("event published despite flag off: %v", env.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVisibilityLostEmitsTabSwitch(t *testing.T) {
	emitter, hub, exam := newTestEmitter(true, false)
	sub := hub.Subscribe(realtime.ProctorRoom(exam.ID.String()))
	defer sub.Cancel()

	event := emitter.VisibilityLost(context.Background())
	require.NotNil(t, event)
	require.Equal(t, model.EventTabSwitch, event.Type)
	require.Equal(t, model.SeverityMedium, event.Severity)
	require.Equal(t, "s1", event.StudentID)
	require.Equal(t, "Alice", event.StudentName)

	published := expectActivity(t, sub)
	require.Equal(t, event.ID, published.ID)
}

func TestEscapeAttemptGatedOnLockdown(t *testing.T) {
	emitter, _, _ := newTestEmitter(true, false)
	require.Nil(t, emitter.EscapeAttempt(context.Background()))
}

func TestEscapeAttemptEmitsHighSeverity(t *testing.T) {
	emitter, hub, exam := newTestEmitter(false, true)
	sub := hub.Subscribe(realtime.ProctorRoom(exam.ID.String()))
	defer sub.Cancel()

	event := emitter.EscapeAttempt(context.Background())
	require.NotNil(t, event)
	require.Equal(t, model.EventEscapeAttempt, event.Type)
	require.Equal(t, model.SeverityHigh, event.Severity)
	expectActivity(t, sub)
}

func TestDetectionUsesDefaultSeverity(t *testing.T) {
	emitter, hub, exam := newTestEmitter(false, false)
	sub := hub.Subscribe(realtime.ProctorRoom(exam.ID.String()))
	defer sub.Cancel()

	event := emitter.Detection(context.Background(), model.EventMultipleFaces, "Two faces in frame")
	require.NotNil(t, event)
	require.Equal(t, model.SeverityHigh, event.Severity)
	require.Equal(t, "Two faces in frame", event.Description)

	published := expectActivity(t, sub)
	require.Equal(t, model.EventMultipleFaces, published.Type)
}

func TestEmitWithoutRedisIsSafe(t *testing.T) {
	emitter, _, _ := newTestEmitter(true, true)

	// rdb is nil for every emitter in this file; emission must still
	// publish and return without panicking.
	require.NotNil(t, emitter.VisibilityLost(context.Background()))
	require.NotNil(t, emitter.EscapeAttempt(context.Background()))
}
