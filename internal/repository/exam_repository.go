package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/Suraj08344/examproct-backend/internal/config"
	"github.com/Suraj08344/examproct-backend/internal/model"
)

// ErrExamNotFound is returned for unknown or unpublished exams.
var ErrExamNotFound = errors.New("exam not found")

const examCacheTTL = 10 * time.Minute

// ExamRepository reads published exams, with a Redis payload cache in
// front of PostgreSQL. It implements attempt.ExamDirectory.
type ExamRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ExamRepository {
	return &ExamRepository{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "exam_repository").Logger(),
	}
}

// GetExam returns a published exam by ID, from cache when possible.
func (r *ExamRepository) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	cacheKey := config.CacheKey.ExamPayloadKey(examID.String())

	if raw, err := r.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var exam model.Exam
		if err := json.Unmarshal([]byte(raw), &exam); err == nil {
			return &exam, nil
		}
		// Corrupt cache entry; fall through to the database.
		r.rdb.Del(ctx, cacheKey)
	}

	exam, err := r.fetch(ctx, examID)
	if err != nil {
		return nil, err
	}

	// Self-heal the cache so the next request is fast.
	if data, err := json.Marshal(exam); err == nil {
		if err := r.rdb.Set(ctx, cacheKey, data, examCacheTTL).Err(); err != nil {
			r.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Exam cache write failed")
		}
	}
	return exam, nil
}

func (r *ExamRepository) fetch(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	var (
		exam model.Exam
		qids []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_minutes, question_ids, prevent_tab_switch, lockdown_mode
		 FROM exams
		 WHERE id = $1 AND published = TRUE`,
		examID,
	).Scan(&exam.ID, &exam.Title, &exam.DurationMinutes, &qids, &exam.PreventTabSwitch, &exam.LockdownMode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch exam: %w", err)
	}

	if err := json.Unmarshal(qids, &exam.QuestionIDs); err != nil {
		return nil, fmt.Errorf("decode question ids: %w", err)
	}
	return &exam, nil
}
