package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Suraj08344/examproct-backend/internal/model"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	examID := uuid.New()

	rec := &model.SessionRecord{
		ExamID:               examID,
		StartTime:            time.Now().UTC(),
		TimeLeftSeconds:      900,
		CurrentQuestionIndex: 2,
		Answers:              map[string]string{"q1": "a"},
		SavedAnswers:         map[string]string{"q1": "a"},
	}
	require.NoError(t, st.Put(ctx, "s1", rec))

	got, err := st.Get(ctx, examID, "s1")
	require.NoError(t, err)
	require.Equal(t, 900, got.TimeLeftSeconds)
	require.Equal(t, 2, got.CurrentQuestionIndex)
	require.Equal(t, "a", got.Answers["q1"])
}

func TestMemoryStoreMissing(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.Get(context.Background(), uuid.New(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIsolation(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	examID := uuid.New()

	rec := &model.SessionRecord{
		ExamID:  examID,
		Answers: map[string]string{"q1": "original"},
	}
	require.NoError(t, st.Put(ctx, "s1", rec))

	// Mutating the caller's copy must not reach stored state.
	rec.Answers["q1"] = "mutated"

	got, err := st.Get(ctx, examID, "s1")
	require.NoError(t, err)
	require.Equal(t, "original", got.Answers["q1"])

	// Mutating a read copy must not either.
	got.Answers["q1"] = "mutated again"
	again, err := st.Get(ctx, examID, "s1")
	require.NoError(t, err)
	require.Equal(t, "original", again.Answers["q1"])
}

func TestMemoryStoreDelete(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	examID := uuid.New()

	require.NoError(t, st.Put(ctx, "s1", &model.SessionRecord{ExamID: examID}))
	require.NoError(t, st.Delete(ctx, examID, "s1"))

	_, err := st.Get(ctx, examID, "s1")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent record is a no-op.
	require.NoError(t, st.Delete(ctx, examID, "s1"))
}

func TestMemoryStoreKeyedPerPair(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	examA := uuid.New()
	examB := uuid.New()

	require.NoError(t, st.Put(ctx, "s1", &model.SessionRecord{ExamID: examA, TimeLeftSeconds: 100}))
	require.NoError(t, st.Put(ctx, "s1", &model.SessionRecord{ExamID: examB, TimeLeftSeconds: 200}))
	require.NoError(t, st.Put(ctx, "s2", &model.SessionRecord{ExamID: examA, TimeLeftSeconds: 300}))

	a, err := st.Get(ctx, examA, "s1")
	require.NoError(t, err)
	require.Equal(t, 100, a.TimeLeftSeconds)

	b, err := st.Get(ctx, examB, "s1")
	require.NoError(t, err)
	require.Equal(t, 200, b.TimeLeftSeconds)

	c, err := st.Get(ctx, examA, "s2")
	require.NoError(t, err)
	require.Equal(t, 300, c.TimeLeftSeconds)
}
