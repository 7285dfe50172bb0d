package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
)

type fakeNotifier struct {
	messages     []string
	warnings     []string
	terminated   []string
	messageErr   error
	terminateErr error
}

func (f *fakeNotifier) SendMessage(_ context.Context, _, studentID, message string) error {
	if f.messageErr != nil {
		return f.messageErr
	}
	f.messages = append(f.messages, studentID+":"+message)
	return nil
}

func (f *fakeNotifier) SendWarning(_ context.Context, _, studentID, message string) error {
	f.warnings = append(f.warnings, studentID+":"+message)
	return nil
}

func (f *fakeNotifier) TerminateSession(_ context.Context, _, studentID string) error {
	if f.terminateErr != nil {
		return f.terminateErr
	}
	f.terminated = append(f.terminated, studentID)
	return nil
}

func newTestAggregator(t *testing.T) (*Aggregator, *fakeNotifier, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub(zerolog.Nop())
	notifier := &fakeNotifier{}
	agg := New("e1", 10, hub, notifier, nil, zerolog.Nop())
	return agg, notifier, hub
}

func started(studentID, name string) *realtime.StudentStartedExam {
	return &realtime.StudentStartedExam{StudentID: studentID, StudentName: name, ExamID: "e1"}
}

func activity(studentID string, t model.EventType) *realtime.StudentActivityDetected {
	return &realtime.StudentActivityDetected{Event: model.ProctorEvent{
		ID:        uuid.New(),
		StudentID: studentID,
		Type:      t,
		Severity:  model.DefaultSeverity(t),
		Timestamp: time.Now().UTC(),
	}}
}

func TestJoinCreatesRecordWithDefaults(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	agg.Apply(started("s1", "Alice"))

	rec, ok := agg.Record("s1")
	require.True(t, ok)
	require.Equal(t, "Alice", rec.Name)
	require.Equal(t, model.MonitorActive, rec.Status)
	require.Equal(t, 10, rec.TotalQuestions)
	require.Equal(t, 1, rec.CurrentQuestion)
	require.True(t, rec.FaceDetected)
	require.True(t, rec.ScreenShared)
	require.True(t, rec.AudioEnabled)
}

func TestDuplicateJoinKeepsExistingRecord(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	agg.Apply(started("s1", "Alice"))
	agg.Apply(&realtime.StudentProgressUpdate{StudentID: "s1", Progress: 5, CurrentQuestion: 6, TimeRemaining: 900})
	agg.Apply(started("s1", "Alice"))

	rec, ok := agg.Record("s1")
	require.True(t, ok)
	require.Equal(t, 5, rec.Progress)
	require.Equal(t, 6, rec.CurrentQuestion)
	require.Len(t, agg.Records(), 1)
}

func TestProgressForUnknownStudentIgnored(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	agg.Apply(&realtime.StudentProgressUpdate{StudentID: "ghost", Progress: 3})
	_, ok := agg.Record("ghost")
	require.False(t, ok)
}

func TestActivityIncrementsAlertsAndFlipsSignals(t *testing.T) {
	agg, _, _ := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))

	agg.Apply(activity("s1", model.EventTabSwitch))
	agg.Apply(activity("s1", model.EventFaceNotDetected))
	agg.Apply(activity("s1", model.EventScreenShareLost))
	agg.Apply(activity("s1", model.EventAudioLost))

	rec, _ := agg.Record("s1")
	require.Equal(t, 4, rec.Alerts)
	require.False(t, rec.FaceDetected)
	require.False(t, rec.ScreenShared)
	require.False(t, rec.AudioEnabled)

	// All four land in the log regardless of record state.
	require.Len(t, agg.EventLog(), 4)
}

func TestOperatorEventsAreNotAlerts(t *testing.T) {
	agg, _, _ := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))

	agg.Apply(activity("s1", model.EventWarningSent))
	agg.Apply(activity("s1", model.EventMessageSent))
	agg.Apply(activity("s1", model.EventSessionTerminated))

	rec, _ := agg.Record("s1")
	require.Zero(t, rec.Alerts)
	require.Len(t, agg.EventLog(), 3)
}

func TestStatusChangeAndLeave(t *testing.T) {
	agg, _, _ := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))

	agg.Apply(&realtime.StudentStatusChange{StudentID: "s1", Status: model.MonitorCompleted})
	rec, _ := agg.Record("s1")
	require.Equal(t, model.MonitorCompleted, rec.Status)

	agg.Apply(&realtime.StudentLeftExam{StudentID: "s1"})
	rec, _ = agg.Record("s1")
	require.Equal(t, model.MonitorDisconnected, rec.Status)
}

func TestSeedDoesNotOverwriteLiveRecords(t *testing.T) {
	agg, _, _ := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))
	agg.Apply(&realtime.StudentProgressUpdate{StudentID: "s1", Progress: 7})

	agg.Seed([]model.StudentMonitorRecord{
		{StudentID: "s1", Name: "Stale Alice", Progress: 2, Status: model.MonitorDisconnected},
		{StudentID: "s2", Name: "Bob", Status: model.MonitorDisconnected},
	})

	live, _ := agg.Record("s1")
	require.Equal(t, "Alice", live.Name)
	require.Equal(t, 7, live.Progress)

	seeded, ok := agg.Record("s2")
	require.True(t, ok)
	require.Equal(t, model.MonitorDisconnected, seeded.Status)
	require.Equal(t, 10, seeded.TotalQuestions)
}

func TestSendMessagePublishesAndLogs(t *testing.T) {
	agg, notifier, hub := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))

	sub := hub.Subscribe(realtime.StudentRoom("e1", "s1"))
	defer sub.Cancel()

	require.NoError(t, agg.SendMessage(context.Background(), "s1", "hello"))
	require.Equal(t, []string{"s1:hello"}, notifier.messages)

	select {
	case env := <-sub.C:
		require.Equal(t, realtime.KindProctorMessageSent, env.Kind)
	case <-time.After(time.Second):
		t.Fatal("no command delivered to student room")
	}

	log := agg.EventLog()
	require.Len(t, log, 1)
	require.Equal(t, model.EventMessageSent, log[0].Type)

	// Operator echo stays out of the alert count.
	rec, _ := agg.Record("s1")
	require.Zero(t, rec.Alerts)
}

func TestSendMessageFailureLeavesNoTrace(t *testing.T) {
	agg, notifier, hub := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))
	notifier.messageErr = errors.New("db down")

	sub := hub.Subscribe(realtime.StudentRoom("e1", "s1"))
	defer sub.Cancel()

	require.Error(t, agg.SendMessage(context.Background(), "s1", "hello"))
	require.Empty(t, agg.EventLog())
	select {
	case env := <-sub.C:
		t.Fatalf("unexpected publish after failed notification: %v", env.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTerminateSessionForcesDisconnected(t *testing.T) {
	agg, notifier, hub := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))

	sub := hub.Subscribe(realtime.StudentRoom("e1", "s1"))
	defer sub.Cancel()

	require.NoError(t, agg.TerminateSession(context.Background(), "s1"))
	require.Equal(t, []string{"s1"}, notifier.terminated)

	rec, _ := agg.Record("s1")
	require.Equal(t, model.MonitorDisconnected, rec.Status)

	select {
	case env := <-sub.C:
		require.Equal(t, realtime.KindStudentSessionTerminated, env.Kind)
	case <-time.After(time.Second):
		t.Fatal("no termination delivered to student room")
	}

	log := agg.EventLog()
	require.Len(t, log, 1)
	require.Equal(t, model.EventSessionTerminated, log[0].Type)
	require.Equal(t, model.SeverityCritical, log[0].Severity)
}

func TestTerminateSessionFailurePreservesStatus(t *testing.T) {
	agg, notifier, _ := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))
	notifier.terminateErr = errors.New("db down")

	require.Error(t, agg.TerminateSession(context.Background(), "s1"))
	rec, _ := agg.Record("s1")
	require.Equal(t, model.MonitorActive, rec.Status)
}

func TestEventLogOrderedNewestFirst(t *testing.T) {
	agg, _, _ := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 2 * time.Minute, time.Minute} {
		ev := activity("s1", model.EventTabSwitch)
		ev.Event.Timestamp = base.Add(offset)
		ev.Event.Description = string(rune('a' + i))
		agg.Apply(ev)
	}

	log := agg.EventLog()
	require.Len(t, log, 3)
	require.Equal(t, "b", log[0].Description)
	require.Equal(t, "c", log[1].Description)
	require.Equal(t, "a", log[2].Description)
}

func TestRecordsOrderedByJoinTime(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	agg.Apply(started("s1", "Alice"))
	time.Sleep(2 * time.Millisecond)
	agg.Apply(started("s2", "Bob"))

	records := agg.Records()
	require.Len(t, records, 2)
	require.Equal(t, "s1", records[0].StudentID)
	require.Equal(t, "s2", records[1].StudentID)
}

func TestRemoveStudent(t *testing.T) {
	agg, _, _ := newTestAggregator(t)
	agg.Apply(started("s1", "Alice"))

	agg.RemoveStudent("s1")
	_, ok := agg.Record("s1")
	require.False(t, ok)
}
