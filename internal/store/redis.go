package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/Suraj08344/examproct-backend/internal/config"
	"github.com/Suraj08344/examproct-backend/internal/model"
)

// Compile-time interface check.
var _ Store = (*RedisStore)(nil)

// RedisStore keeps the hot snapshot in Redis and mirrors every write
// onto the persist queue so the snapshot worker can durably store it
// in PostgreSQL. The mirror is fire-and-forget: a queue push failure
// never fails the Put.
type RedisStore struct {
	rdb   *redis.Client
	grace time.Duration
	log   zerolog.Logger
}

// NewRedisStore creates a Redis-backed session store. grace extends
// the record TTL past the remaining exam time so an expired record is
// still observable on resume.
func NewRedisStore(rdb *redis.Client, grace time.Duration, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		rdb:   rdb,
		grace: grace,
		log:   log.With().Str("component", "redis_store").Logger(),
	}
}

func (s *RedisStore) Get(ctx context.Context, examID uuid.UUID, studentID string) (*model.SessionRecord, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptSnapshotKey(examID.String(), studentID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var rec model.SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, studentID string, rec *model.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	ttl := time.Duration(rec.TimeLeftSeconds)*time.Second + s.grace
	snapKey := config.CacheKey.AttemptSnapshotKey(rec.ExamID.String(), studentID)
	if err := s.rdb.Set(ctx, snapKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}

	// Queue the snapshot for durable mirroring in PostgreSQL.
	mirror, _ := json.Marshal(snapshotEnvelope{StudentID: studentID, Record: rec})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, mirror).Err(); err != nil {
		s.log.Warn().Err(err).Str("student_id", studentID).Msg("Snapshot mirror enqueue failed")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, examID uuid.UUID, studentID string) error {
	key := config.CacheKey.AttemptSnapshotKey(examID.String(), studentID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// snapshotEnvelope is the queued form consumed by the snapshot worker.
type snapshotEnvelope struct {
	StudentID string               `json:"student_id"`
	Record    *model.SessionRecord `json:"record"`
}
