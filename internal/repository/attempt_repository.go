package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/Suraj08344/examproct-backend/internal/model"
)

// AttemptRepository provides data access for recorded attempts:
// durable snapshot mirrors, terminal submissions, and termination
// markers.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// CompletedAttempt reports whether a terminal submission exists for
// the pair.
func (r *AttemptRepository) CompletedAttempt(ctx context.Context, examID uuid.UUID, studentID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attempt_submissions WHERE exam_id = $1 AND student_id = $2)`,
		examID, studentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completed attempt: %w", err)
	}
	return exists, nil
}

// Terminated reports whether an operator termination marker exists.
func (r *AttemptRepository) Terminated(ctx context.Context, examID uuid.UUID, studentID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attempt_terminations WHERE exam_id = $1 AND student_id = $2)`,
		examID, studentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check termination: %w", err)
	}
	return exists, nil
}

// InsertSubmission records a terminal submission. The unique
// (exam_id, student_id) constraint makes the insert idempotent:
// a conflicting insert reports alreadyRecorded instead of failing.
func (r *AttemptRepository) InsertSubmission(ctx context.Context, p *model.SubmissionPayload) (alreadyRecorded bool, err error) {
	answers, err := json.Marshal(p.Answers)
	if err != nil {
		return false, fmt.Errorf("encode answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_submissions (id, exam_id, student_id, answers, time_taken_seconds, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (exam_id, student_id) DO NOTHING`,
		uuid.New(), p.ExamID, p.StudentID, answers, p.TimeTakenSeconds, p.StartTime, p.EndTime,
	)
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	return tag.RowsAffected() == 0, nil
}

// RecordTermination writes the operator termination marker. Idempotent.
func (r *AttemptRepository) RecordTermination(ctx context.Context, examID uuid.UUID, studentID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_terminations (exam_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (exam_id, student_id) DO NOTHING`,
		examID, studentID,
	)
	if err != nil {
		return fmt.Errorf("record termination: %w", err)
	}
	return nil
}

// UpsertSnapshot mirrors a session store snapshot into PostgreSQL.
// Used by the snapshot worker.
func (r *AttemptRepository) UpsertSnapshot(ctx context.Context, studentID string, rec *model.SessionRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	saved, err := json.Marshal(rec.SavedAnswers)
	if err != nil {
		return fmt.Errorf("encode saved answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempt_snapshots (exam_id, student_id, start_time, time_left_seconds, current_question_index, answers, saved_answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (exam_id, student_id) DO UPDATE
		 SET start_time = EXCLUDED.start_time,
		     time_left_seconds = EXCLUDED.time_left_seconds,
		     current_question_index = EXCLUDED.current_question_index,
		     answers = EXCLUDED.answers,
		     saved_answers = EXCLUDED.saved_answers,
		     updated_at = NOW()`,
		rec.ExamID, studentID, rec.StartTime, rec.TimeLeftSeconds, rec.CurrentQuestionIndex, answers, saved,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshot removes the durable mirror after a confirmed
// submission.
func (r *AttemptRepository) DeleteSnapshot(ctx context.Context, examID uuid.UUID, studentID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM attempt_snapshots WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID,
	)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
