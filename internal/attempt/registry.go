package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
	"github.com/Suraj08344/examproct-backend/internal/store"
)

// ErrAttemptActive is returned when a second live machine is requested
// for a (exam, student) pair that already has one in progress.
var ErrAttemptActive = errors.New("an attempt is already in progress for this exam")

// Registry owns the live attempt machines, at most one per
// (exam, student) pair. Machines outlive their WebSocket connections:
// a dropped connection keeps its machine registered so a later resume
// reattaches to the same timeline.
type Registry struct {
	exams   ExamDirectory
	results ResultService
	store   store.Store
	hub     *realtime.Hub
	cfg     Config
	log     zerolog.Logger

	mu       sync.Mutex
	machines map[string]*Machine
}

// NewRegistry creates an empty registry.
func NewRegistry(
	exams ExamDirectory,
	results ResultService,
	st store.Store,
	hub *realtime.Hub,
	cfg Config,
	log zerolog.Logger,
) *Registry {
	return &Registry{
		exams:    exams,
		results:  results,
		store:    st,
		hub:      hub,
		cfg:      cfg,
		log:      log,
		machines: make(map[string]*Machine),
	}
}

func registryKey(examID uuid.UUID, studentID string) string {
	return studentID + "|" + examID.String()
}

// Get returns the live machine for the pair, or nil.
func (r *Registry) Get(examID uuid.UUID, studentID string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machines[registryKey(examID, studentID)]
}

// Start creates and starts a fresh machine. A stored session record
// for the pair, if any, is discarded ("start fresh").
func (r *Registry) Start(ctx context.Context, examID uuid.UUID, student Student) (*Machine, error) {
	exam, err := r.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	m, err := r.adopt(examID, student, exam, func(m *Machine) error {
		if err := r.store.Delete(ctx, examID, student.ID); err != nil {
			r.log.Warn().Err(err).Str("student_id", student.ID).Msg("Stale record discard failed")
		}
		return m.Start(ctx)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Resume reattaches to a stored session record. When no record exists
// the caller gets store.ErrNotFound and should Start instead; an
// expired record surfaces ErrSessionExpired the same way.
func (r *Registry) Resume(ctx context.Context, examID uuid.UUID, student Student) (*Machine, error) {
	// A live machine is its own freshest state; reattach directly.
	if m := r.Get(examID, student.ID); m != nil && m.State() == model.AttemptInProgress {
		return m, nil
	}

	rec, err := r.store.Get(ctx, examID, student.ID)
	if err != nil {
		return nil, err
	}

	exam, err := r.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	m, err := r.adopt(examID, student, exam, func(m *Machine) error {
		return m.Resume(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// adopt installs a new machine for the pair, rolling back the slot if
// init fails. Enforces the single-live-instance invariant.
func (r *Registry) adopt(examID uuid.UUID, student Student, exam *model.Exam, init func(*Machine) error) (*Machine, error) {
	key := registryKey(examID, student.ID)

	r.mu.Lock()
	if existing, ok := r.machines[key]; ok {
		if existing.State() != model.AttemptSubmitted {
			r.mu.Unlock()
			return nil, ErrAttemptActive
		}
		delete(r.machines, key)
	}
	m := NewMachine(exam, student, r.store, r.results, r.hub, r.cfg, r.log)
	r.machines[key] = m
	r.mu.Unlock()

	if err := init(m); err != nil {
		r.mu.Lock()
		delete(r.machines, key)
		r.mu.Unlock()
		return nil, err
	}
	return m, nil
}

// Remove evicts and closes a machine, typically after terminal
// submission.
func (r *Registry) Remove(examID uuid.UUID, studentID string) {
	key := registryKey(examID, studentID)
	r.mu.Lock()
	m := r.machines[key]
	delete(r.machines, key)
	r.mu.Unlock()
	if m != nil {
		m.Close()
	}
}

// Shutdown writes a final snapshot for every in-progress machine and
// closes them all. The fresh snapshots keep resumes exact instead of
// losing up to one autosave interval on a graceful restart.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	machines := make([]*Machine, 0, len(r.machines))
	for _, m := range r.machines {
		machines = append(machines, m)
	}
	r.machines = make(map[string]*Machine)
	r.mu.Unlock()

	for _, m := range machines {
		m.autosave(ctx)
		m.Close()
	}
}
