package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/Suraj08344/examproct-backend/internal/model"
)

// EventRepository persists proctor events.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Insert writes a single event.
func (r *EventRepository) Insert(ctx context.Context, examID uuid.UUID, e *model.ProctorEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO proctor_events (id, exam_id, student_id, type, severity, description, resolved, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, examID, e.StudentID, e.Type, e.Severity, e.Description, e.Resolved, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// BulkInsert writes a batch of events with COPY.
func (r *EventRepository) BulkInsert(ctx context.Context, examIDs []uuid.UUID, events []*model.ProctorEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for i, e := range events {
		rows = append(rows, []interface{}{
			e.ID, examIDs[i], e.StudentID, string(e.Type), string(e.Severity), e.Description, e.Resolved, e.Timestamp,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"proctor_events"},
		[]string{"id", "exam_id", "student_id", "type", "severity", "description", "resolved", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// CountByStudent returns per-student event counts for an exam,
// excluding operator-originated entries.
func (r *EventRepository) CountByStudent(ctx context.Context, examID uuid.UUID) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, COUNT(*)
		 FROM proctor_events
		 WHERE exam_id = $1
		   AND type NOT IN ('warning-sent', 'message-sent', 'session-terminated')
		 GROUP BY student_id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var sid string
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}
