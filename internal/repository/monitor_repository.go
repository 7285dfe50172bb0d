package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository provides the database side of the live monitor
// view: attempt snapshot state plus submission status per student.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// AttemptRow is one student's durable attempt state for an exam.
type AttemptRow struct {
	StudentID            string
	TimeLeftSeconds      int
	CurrentQuestionIndex int
	AnsweredCount        int64
	UpdatedAt            time.Time
	Submitted            bool
}

// ListAttempts returns the durable attempt state for every student
// with a snapshot or submission in the given exam.
func (r *MonitorRepository) ListAttempts(ctx context.Context, examID uuid.UUID) ([]AttemptRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.student_id,
		        s.time_left_seconds,
		        s.current_question_index,
		        (SELECT COUNT(*) FROM jsonb_object_keys(s.saved_answers)),
		        s.updated_at,
		        EXISTS (
		            SELECT 1 FROM attempt_submissions sub
		            WHERE sub.exam_id = s.exam_id AND sub.student_id = s.student_id
		        )
		 FROM attempt_snapshots s
		 WHERE s.exam_id = $1
		 ORDER BY s.updated_at DESC`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttemptRow
	for rows.Next() {
		var row AttemptRow
		if err := rows.Scan(&row.StudentID, &row.TimeLeftSeconds, &row.CurrentQuestionIndex, &row.AnsweredCount, &row.UpdatedAt, &row.Submitted); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
