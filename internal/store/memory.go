package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/Suraj08344/examproct-backend/internal/model"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store for tests and single-node dev.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.SessionRecord
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.SessionRecord)}
}

func key(examID uuid.UUID, studentID string) string {
	return studentID + "|" + examID.String()
}

func (s *MemoryStore) Get(_ context.Context, examID uuid.UUID, studentID string) (*model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key(examID, studentID)]
	if !ok {
		return nil, ErrNotFound
	}
	// Copy maps so callers cannot mutate stored state.
	out := rec
	out.Answers = copyMap(rec.Answers)
	out.SavedAnswers = copyMap(rec.SavedAnswers)
	return &out, nil
}

func (s *MemoryStore) Put(_ context.Context, studentID string, rec *model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	stored.Answers = copyMap(rec.Answers)
	stored.SavedAnswers = copyMap(rec.SavedAnswers)
	s.records[key(rec.ExamID, studentID)] = stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, examID uuid.UUID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key(examID, studentID))
	return nil
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
