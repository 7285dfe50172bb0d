// Package attempt implements the exam attempt state machine: countdown
// timing, answer capture, save/unsaved tracking, navigation gating,
// resume from the session store, periodic autosave, and exactly-once
// terminal submission.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
	"github.com/Suraj08344/examproct-backend/internal/store"
)

// Attempt lifecycle errors.
var (
	ErrAlreadySubmitted = errors.New("a completed attempt already exists for this exam")
	ErrEmptyExam        = errors.New("exam has no questions")
	ErrUnsavedAnswer    = errors.New("current answer has an unsaved change")
	ErrSessionExpired   = errors.New("stored session has expired")
	ErrNotInProgress    = errors.New("attempt is not in progress")
	ErrLockdownActive   = errors.New("lockdown violation awaiting acknowledgment")
	ErrUnknownQuestion  = errors.New("question does not belong to this exam")
	ErrSaveFailed       = errors.New("saving the answer failed")
	ErrSubmitFailed     = errors.New("submission failed")
)

// Direction moves the current question pointer.
type Direction int

const (
	Next     Direction = 1
	Previous Direction = -1
)

// Config tunes machine timing. Zero values take the production
// defaults; tests shorten them.
type Config struct {
	TickInterval     time.Duration
	AutosaveInterval time.Duration
	Clock            Clock
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.AutosaveInterval <= 0 {
		c.AutosaveInterval = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = SystemClock
	}
	return c
}

// Machine owns one student's run through one exam. All exported
// methods are safe for concurrent use; internally each attempt is a
// single cooperative timeline — one countdown, one autosave cycle —
// and no lock is held across a network round-trip.
type Machine struct {
	exam    *model.Exam
	student Student
	store   store.Store
	results ResultService
	hub     *realtime.Hub
	cfg     Config
	log     zerolog.Logger

	mu        sync.Mutex
	state     model.AttemptState
	sess      *model.ExamAttemptSession
	questions map[string]struct{}

	// Countdown reference: remaining seconds measured at a wall-clock
	// instant. Authoritative remaining time is always recomputed from
	// these two, never from tick counts.
	armedAt        time.Time
	armedRemaining int

	questionEnteredAt time.Time

	// Submission guard. inflight is non-nil while a submission is on
	// the wire; concurrent submitters wait on it and share the result.
	inflight      chan struct{}
	outcome       *model.SubmissionOutcome
	lastSubmitErr error

	frozen    bool
	connected bool

	runCancel context.CancelFunc
}

// NewMachine builds a machine in the NotStarted state.
func NewMachine(
	exam *model.Exam,
	student Student,
	st store.Store,
	results ResultService,
	hub *realtime.Hub,
	cfg Config,
	log zerolog.Logger,
) *Machine {
	questions := make(map[string]struct{}, len(exam.QuestionIDs))
	for _, qid := range exam.QuestionIDs {
		questions[qid] = struct{}{}
	}
	return &Machine{
		exam:      exam,
		student:   student,
		store:     st,
		results:   results,
		hub:       hub,
		cfg:       cfg.withDefaults(),
		log:       log.With().Str("component", "attempt_machine").Str("student_id", student.ID).Str("exam_id", exam.ID.String()).Logger(),
		state:     model.AttemptNotStarted,
		questions: questions,
		connected: true,
	}
}

// Start begins a fresh attempt. It fails with ErrAlreadySubmitted if
// the result service has a prior completed attempt and with
// ErrEmptyExam for an exam without questions.
func (m *Machine) Start(ctx context.Context) error {
	if m.exam.QuestionCount() == 0 {
		return ErrEmptyExam
	}

	done, err := m.results.CompletedAttempt(ctx, m.exam.ID, m.student.ID)
	if err != nil {
		return fmt.Errorf("check completed attempt: %w", err)
	}
	if done {
		return ErrAlreadySubmitted
	}

	now := m.cfg.Clock.Now()
	total := m.exam.DurationMinutes * 60

	m.mu.Lock()
	if m.state != model.AttemptNotStarted {
		m.mu.Unlock()
		return ErrNotInProgress
	}
	m.sess = &model.ExamAttemptSession{
		ExamID:               m.exam.ID,
		StudentID:            m.student.ID,
		StartTime:            now,
		TotalDurationSeconds: total,
		TimeLeftSeconds:      total,
		CurrentQuestionIndex: 0,
		Answers:              make(map[string]string),
		SavedAnswers:         make(map[string]string),
		PerQuestionTimeSpent: make(map[string]int),
	}
	m.arm(now, total)
	m.questionEnteredAt = now
	m.state = model.AttemptInProgress
	rec := m.recordLocked(now)
	m.mu.Unlock()

	if err := m.store.Put(ctx, m.student.ID, rec); err != nil {
		m.log.Warn().Err(err).Msg("Initial snapshot write failed")
	}

	m.announceStarted()
	m.startTimers()
	m.log.Info().Int("duration_seconds", total).Msg("Attempt started")
	return nil
}

// Resume reconstructs an attempt from a stored record. Remaining time
// is the stored remaining minus the wall-clock elapsed since the
// record's start time, floored at zero; a floor hit discards the
// record and returns ErrSessionExpired so the caller starts fresh.
func (m *Machine) Resume(ctx context.Context, rec *model.SessionRecord) error {
	now := m.cfg.Clock.Now()
	elapsed := int(now.Sub(rec.StartTime).Seconds())
	remaining := rec.TimeLeftSeconds - elapsed
	if remaining <= 0 {
		if err := m.store.Delete(ctx, rec.ExamID, m.student.ID); err != nil {
			m.log.Warn().Err(err).Msg("Expired record delete failed")
		}
		return ErrSessionExpired
	}
	if total := m.exam.DurationMinutes * 60; remaining > total {
		remaining = total
	}

	m.mu.Lock()
	if m.state != model.AttemptNotStarted {
		m.mu.Unlock()
		return ErrNotInProgress
	}
	m.sess = &model.ExamAttemptSession{
		ExamID:               rec.ExamID,
		StudentID:            m.student.ID,
		StartTime:            rec.StartTime,
		TotalDurationSeconds: m.exam.DurationMinutes * 60,
		TimeLeftSeconds:      remaining,
		CurrentQuestionIndex: rec.CurrentQuestionIndex,
		Answers:              copyAnswers(rec.Answers),
		SavedAnswers:         copyAnswers(rec.SavedAnswers),
		PerQuestionTimeSpent: make(map[string]int),
	}
	m.arm(now, remaining)
	m.questionEnteredAt = now
	m.state = model.AttemptInProgress
	m.mu.Unlock()

	m.announceStarted()
	m.startTimers()
	m.log.Info().Int("remaining_seconds", remaining).Msg("Attempt resumed")
	return nil
}

// SetAnswer records the answer text for a question. The answer is
// unsaved while it differs from the last persisted copy.
func (m *Machine) SetAnswer(questionID, value string) error {
	if _, ok := m.questions[questionID]; !ok {
		return ErrUnknownQuestion
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != model.AttemptInProgress {
		return ErrNotInProgress
	}
	if m.frozen {
		return ErrLockdownActive
	}
	m.sess.Answers[questionID] = value
	return nil
}

// SaveCurrentAnswer persists the current question's answer. It is a
// silent no-op when there is no pending change. A store failure leaves
// the answer unsaved and is retryable on the next explicit save.
func (m *Machine) SaveCurrentAnswer(ctx context.Context) error {
	m.mu.Lock()
	if m.state != model.AttemptInProgress {
		m.mu.Unlock()
		return ErrNotInProgress
	}
	if m.frozen {
		m.mu.Unlock()
		return ErrLockdownActive
	}

	qid := m.exam.QuestionIDs[m.sess.CurrentQuestionIndex]
	value, ok := m.sess.Answers[qid]
	if !ok || value == m.sess.SavedAnswers[qid] {
		m.mu.Unlock()
		return nil
	}

	// Commit optimistically so the snapshot carries the saved copy,
	// then write it out without holding the lock.
	m.sess.SavedAnswers[qid] = value
	rec := m.recordLocked(m.cfg.Clock.Now())
	m.mu.Unlock()

	if err := m.store.Put(ctx, m.student.ID, rec); err != nil {
		m.mu.Lock()
		// Roll back: the answer is dirty again until a save succeeds.
		if m.sess.Answers[qid] == value {
			delete(m.sess.SavedAnswers, qid)
		}
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

// Navigate moves the current question pointer. Navigation is gated:
// it fails with ErrUnsavedAnswer while the current question has a
// pending change. Time spent accumulates on the question being left.
func (m *Machine) Navigate(dir Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != model.AttemptInProgress {
		return ErrNotInProgress
	}
	if m.frozen {
		return ErrLockdownActive
	}

	qid := m.exam.QuestionIDs[m.sess.CurrentQuestionIndex]
	if v, ok := m.sess.Answers[qid]; ok && v != m.sess.SavedAnswers[qid] {
		return ErrUnsavedAnswer
	}

	target := m.sess.CurrentQuestionIndex + int(dir)
	if target < 0 || target >= m.exam.QuestionCount() {
		return nil
	}

	now := m.cfg.Clock.Now()
	m.sess.PerQuestionTimeSpent[qid] += int(now.Sub(m.questionEnteredAt).Seconds())
	m.sess.CurrentQuestionIndex = target
	m.questionEnteredAt = now
	return nil
}

// Submit drives the terminal transition. It is idempotent: once
// submitted, every later call returns the prior outcome without
// touching the result service, and concurrent callers — including the
// timer-triggered path — share a single in-flight submission. On
// failure the attempt stays in progress and may be retried.
func (m *Machine) Submit(ctx context.Context) (*model.SubmissionOutcome, error) {
	m.mu.Lock()
	if m.state == model.AttemptSubmitted {
		out := m.outcome
		m.mu.Unlock()
		return out, nil
	}
	if m.state != model.AttemptInProgress && m.inflight == nil {
		m.mu.Unlock()
		return nil, ErrNotInProgress
	}
	if m.inflight != nil {
		wait := m.inflight
		m.mu.Unlock()
		<-wait

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state == model.AttemptSubmitted {
			return m.outcome, nil
		}
		return nil, m.lastSubmitErr
	}

	wait := make(chan struct{})
	m.inflight = wait
	m.state = model.AttemptSubmitting

	now := m.cfg.Clock.Now()
	qid := m.exam.QuestionIDs[m.sess.CurrentQuestionIndex]
	m.sess.PerQuestionTimeSpent[qid] += int(now.Sub(m.questionEnteredAt).Seconds())
	m.questionEnteredAt = now

	payload := m.payloadLocked(now)
	m.mu.Unlock()

	outcome, err := m.results.SubmitAttempt(ctx, payload)

	m.mu.Lock()
	m.inflight = nil
	close(wait)
	if err != nil {
		m.state = model.AttemptInProgress
		m.lastSubmitErr = fmt.Errorf("%w: %v", ErrSubmitFailed, err)
		lastErr := m.lastSubmitErr
		m.mu.Unlock()
		m.log.Error().Err(err).Msg("Submission failed, attempt stays in progress")
		return nil, lastErr
	}
	m.state = model.AttemptSubmitted
	m.outcome = outcome
	m.lastSubmitErr = nil
	m.mu.Unlock()

	m.stopTimers()

	// Confirmed success clears the session store entry.
	if err := m.store.Delete(context.Background(), m.exam.ID, m.student.ID); err != nil {
		m.log.Warn().Err(err).Msg("Session store clear failed after submission")
	}

	m.publishStatus(model.MonitorCompleted)
	m.log.Info().Bool("redirect", outcome.Redirect).Msg("Attempt submitted")
	return outcome, nil
}

// Freeze blocks answer mutation and navigation until the lockdown
// violation is acknowledged.
func (m *Machine) Freeze() {
	m.mu.Lock()
	m.frozen = true
	m.mu.Unlock()
}

// AcknowledgeLockdown lifts the lockdown gate.
func (m *Machine) AcknowledgeLockdown() {
	m.mu.Lock()
	m.frozen = false
	m.mu.Unlock()
}

// Frozen reports whether a lockdown acknowledgment is pending.
func (m *Machine) Frozen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozen
}

// SetConnected flips the presence flag. Disconnection never destroys
// progress: the countdown and autosave keep running so a later resume
// finds a fresh snapshot.
func (m *Machine) SetConnected(connected bool) {
	m.mu.Lock()
	changed := m.connected != connected
	m.connected = connected
	inProgress := m.state == model.AttemptInProgress
	m.mu.Unlock()

	if changed && inProgress {
		status := model.MonitorActive
		if !connected {
			status = model.MonitorDisconnected
		}
		m.publishStatus(status)
	}
}

// State returns the current lifecycle state.
func (m *Machine) State() model.AttemptState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the live session with remaining time
// freshly recomputed.
func (m *Machine) Snapshot() *model.ExamAttemptSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	m.sess.TimeLeftSeconds = m.remainingLocked(m.cfg.Clock.Now())

	out := *m.sess
	out.Answers = copyAnswers(m.sess.Answers)
	out.SavedAnswers = copyAnswers(m.sess.SavedAnswers)
	out.PerQuestionTimeSpent = make(map[string]int, len(m.sess.PerQuestionTimeSpent))
	for k, v := range m.sess.PerQuestionTimeSpent {
		out.PerQuestionTimeSpent[k] = v
	}
	return &out
}

// Close stops the countdown and autosave timers. It does not submit
// or discard the attempt.
func (m *Machine) Close() {
	m.stopTimers()
}

// ─── Internals ──────────────────────────────────────────────────────

func (m *Machine) arm(at time.Time, remaining int) {
	m.armedAt = at
	m.armedRemaining = remaining
}

// remainingLocked recomputes remaining seconds from the armed
// wall-clock reference. Callers hold m.mu.
func (m *Machine) remainingLocked(now time.Time) int {
	remaining := m.armedRemaining - int(now.Sub(m.armedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// recordLocked builds the persisted snapshot. StartTime is the
// instant the snapshot's remaining time was measured, keeping the
// resume recomputation exact across autosave cycles. Callers hold m.mu.
func (m *Machine) recordLocked(now time.Time) *model.SessionRecord {
	return &model.SessionRecord{
		ExamID:               m.sess.ExamID,
		StartTime:            now,
		TimeLeftSeconds:      m.remainingLocked(now),
		CurrentQuestionIndex: m.sess.CurrentQuestionIndex,
		Answers:              copyAnswers(m.sess.Answers),
		SavedAnswers:         copyAnswers(m.sess.SavedAnswers),
	}
}

// payloadLocked builds the immutable submission payload. Callers hold m.mu.
func (m *Machine) payloadLocked(now time.Time) *model.SubmissionPayload {
	timeTaken := m.sess.TotalDurationSeconds - m.remainingLocked(now)
	answers := make([]model.AnsweredQuestion, 0, len(m.sess.Answers))
	for _, qid := range m.exam.QuestionIDs {
		value, ok := m.sess.Answers[qid]
		if !ok {
			continue
		}
		answers = append(answers, model.AnsweredQuestion{
			QuestionID:       qid,
			Answer:           value,
			TimeSpentSeconds: m.sess.PerQuestionTimeSpent[qid],
		})
	}
	return &model.SubmissionPayload{
		ExamID:           m.sess.ExamID,
		StudentID:        m.student.ID,
		Answers:          answers,
		TimeTakenSeconds: timeTaken,
		StartTime:        now.Add(-time.Duration(timeTaken) * time.Second),
		EndTime:          now,
	}
}

func (m *Machine) startTimers() {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.runCancel = cancel
	m.mu.Unlock()
	go m.run(ctx)
}

func (m *Machine) stopTimers() {
	m.mu.Lock()
	cancel := m.runCancel
	m.runCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// run is the attempt's cooperative timeline: one countdown tick, one
// autosave cycle.
func (m *Machine) run(ctx context.Context) {
	tick := time.NewTicker(m.cfg.TickInterval)
	defer tick.Stop()
	save := time.NewTicker(m.cfg.AutosaveInterval)
	defer save.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.onTick(ctx)
		case <-save.C:
			m.autosave(ctx)
		}
	}
}

func (m *Machine) onTick(ctx context.Context) {
	m.mu.Lock()
	if m.state != model.AttemptInProgress {
		m.mu.Unlock()
		return
	}
	now := m.cfg.Clock.Now()
	remaining := m.remainingLocked(now)
	m.sess.TimeLeftSeconds = remaining
	progress := m.progressLocked(remaining)
	m.mu.Unlock()

	m.publish(realtime.ProctorRoom(m.exam.ID.String()), progress)

	if remaining == 0 {
		// Timer-triggered submission. The in-flight guard inside
		// Submit keeps this path and a concurrent manual submit from
		// double-submitting; on failure the guard resets so the next
		// tick retries.
		if _, err := m.Submit(ctx); err != nil {
			m.log.Warn().Err(err).Msg("Auto-submit failed, will retry")
		}
	}
}

// autosave writes the full snapshot regardless of dirty state, to
// bound data loss on ungraceful termination.
func (m *Machine) autosave(ctx context.Context) {
	m.mu.Lock()
	if m.state != model.AttemptInProgress {
		m.mu.Unlock()
		return
	}
	rec := m.recordLocked(m.cfg.Clock.Now())
	m.mu.Unlock()

	if err := m.store.Put(ctx, m.student.ID, rec); err != nil {
		m.log.Warn().Err(err).Msg("Autosave failed")
	}
}

func (m *Machine) progressLocked(remaining int) *realtime.StudentProgressUpdate {
	percent := 0
	if total := m.exam.QuestionCount(); total > 0 {
		percent = len(m.sess.SavedAnswers) * 100 / total
	}
	return &realtime.StudentProgressUpdate{
		StudentID:       m.student.ID,
		Progress:        percent,
		CurrentQuestion: m.sess.CurrentQuestionIndex + 1,
		TimeRemaining:   remaining,
	}
}

func (m *Machine) announceStarted() {
	m.publish(realtime.ProctorRoom(m.exam.ID.String()), &realtime.StudentStartedExam{
		StudentID:    m.student.ID,
		StudentName:  m.student.Name,
		StudentEmail: m.student.Email,
		ExamID:       m.exam.ID.String(),
	})
}

func (m *Machine) publishStatus(status model.MonitorStatus) {
	m.publish(realtime.ProctorRoom(m.exam.ID.String()), &realtime.StudentStatusChange{
		StudentID: m.student.ID,
		Status:    status,
	})
}

// publish is fire-and-forget: channel delivery failures never affect
// the attempt.
func (m *Machine) publish(room string, msg realtime.Message) {
	if m.hub == nil {
		return
	}
	if err := m.hub.Publish(room, msg); err != nil {
		m.log.Debug().Err(err).Msg("Publish failed")
	}
}

func copyAnswers(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
