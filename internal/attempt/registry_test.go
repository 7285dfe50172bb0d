package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/store"
)

type fakeExams struct {
	exam *model.Exam
}

func (f *fakeExams) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	return f.exam, nil
}

func newTestRegistry(t *testing.T, exam *model.Exam, clock *fakeClock, results *fakeResults, st store.Store) *Registry {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	r := NewRegistry(&fakeExams{exam: exam}, results, st, nil, Config{
		TickInterval:     time.Hour,
		AutosaveInterval: time.Hour,
		Clock:            clock,
	}, zerolog.Nop())
	t.Cleanup(func() { r.Shutdown(context.Background()) })
	return r
}

func TestRegistrySingleLiveInstance(t *testing.T) {
	exam := testExam()
	r := newTestRegistry(t, exam, newFakeClock(), &fakeResults{}, nil)
	student := Student{ID: "s1"}

	_, err := r.Start(context.Background(), exam.ID, student)
	require.NoError(t, err)

	_, err = r.Start(context.Background(), exam.ID, student)
	require.ErrorIs(t, err, ErrAttemptActive)
}

func TestRegistryResumeReattachesLiveMachine(t *testing.T) {
	exam := testExam()
	r := newTestRegistry(t, exam, newFakeClock(), &fakeResults{}, nil)
	student := Student{ID: "s1"}

	m, err := r.Start(context.Background(), exam.ID, student)
	require.NoError(t, err)

	resumed, err := r.Resume(context.Background(), exam.ID, student)
	require.NoError(t, err)
	require.Same(t, m, resumed)
}

func TestRegistryResumeFromStore(t *testing.T) {
	exam := testExam()
	clock := newFakeClock()
	st := store.NewMemoryStore()
	r := newTestRegistry(t, exam, clock, &fakeResults{}, st)
	student := Student{ID: "s1"}

	m, err := r.Start(context.Background(), exam.ID, student)
	require.NoError(t, err)
	require.NoError(t, m.SetAnswer("q1", "kept"))
	require.NoError(t, m.SaveCurrentAnswer(context.Background()))

	// Instance restart: the machine goes away, the snapshot stays.
	r.Remove(exam.ID, student.ID)
	require.Nil(t, r.Get(exam.ID, student.ID))

	clock.Advance(5 * time.Minute)
	resumed, err := r.Resume(context.Background(), exam.ID, student)
	require.NoError(t, err)

	sess := resumed.Snapshot()
	require.Equal(t, 1800-300, sess.TimeLeftSeconds)
	require.Equal(t, "kept", sess.SavedAnswers["q1"])
}

func TestRegistryResumeWithoutRecord(t *testing.T) {
	exam := testExam()
	r := newTestRegistry(t, exam, newFakeClock(), &fakeResults{}, nil)

	_, err := r.Resume(context.Background(), exam.ID, Student{ID: "nobody"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegistryShutdownSnapshotsLiveAttempts(t *testing.T) {
	exam := testExam()
	clock := newFakeClock()
	st := store.NewMemoryStore()
	r := newTestRegistry(t, exam, clock, &fakeResults{}, st)
	student := Student{ID: "s1"}

	m, err := r.Start(context.Background(), exam.ID, student)
	require.NoError(t, err)
	require.NoError(t, m.SetAnswer("q1", "draft"))

	clock.Advance(5 * time.Minute)
	r.Shutdown(context.Background())

	// The stored record reflects the moment of shutdown, not the last
	// autosave cycle.
	rec, err := st.Get(context.Background(), exam.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, 1800-300, rec.TimeLeftSeconds)
	require.Equal(t, "draft", rec.Answers["q1"])
	require.Nil(t, r.Get(exam.ID, student.ID))
}

func TestRegistryShutdownSkipsSubmittedAttempts(t *testing.T) {
	exam := testExam()
	st := store.NewMemoryStore()
	r := newTestRegistry(t, exam, newFakeClock(), &fakeResults{}, st)
	student := Student{ID: "s1"}

	m, err := r.Start(context.Background(), exam.ID, student)
	require.NoError(t, err)
	_, err = m.Submit(context.Background())
	require.NoError(t, err)

	r.Shutdown(context.Background())

	// A submitted attempt's record stays cleared; shutdown must not
	// resurrect it.
	_, err = st.Get(context.Background(), exam.ID, student.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegistryStartDiscardsStaleRecord(t *testing.T) {
	exam := testExam()
	clock := newFakeClock()
	st := store.NewMemoryStore()
	r := newTestRegistry(t, exam, clock, &fakeResults{}, st)
	student := Student{ID: "s1"}

	stale := &model.SessionRecord{
		ExamID:          exam.ID,
		StartTime:       clock.Now().Add(-10 * time.Minute),
		TimeLeftSeconds: 60,
		Answers:         map[string]string{"q1": "old"},
	}
	require.NoError(t, st.Put(context.Background(), student.ID, stale))

	m, err := r.Start(context.Background(), exam.ID, student)
	require.NoError(t, err)

	sess := m.Snapshot()
	require.Equal(t, 1800, sess.TimeLeftSeconds)
	require.Empty(t, sess.Answers)
}
