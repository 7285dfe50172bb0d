package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Suraj08344/examproct-backend/internal/config"
	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// EventWorker consumes queued proctor events and writes them to
// PostgreSQL in batches. The hot path only touches Redis; this worker
// is the only component inserting telemetry rows.
type EventWorker struct {
	eventRepo *repository.EventRepository
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewEventWorker creates a new EventWorker.
func NewEventWorker(eventRepo *repository.EventRepository, rdb *redis.Client, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		eventRepo: eventRepo,
		rdb:       rdb,
		log:       log.With().Str("component", "event_worker").Logger(),
	}
}

type eventEnvelope struct {
	ExamID string             `json:"exam_id"`
	Event  model.ProctorEvent `json:"event"`
}

// Start begins the worker loop. Call in a goroutine.
func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("EventWorker started")

	buffer := make([]*eventEnvelope, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
			// Continue
		}

		// 3. Fetch from Redis
		// BLPop blocks for 1 second. Returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistEventsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Timeout (Queue empty), loop back to check flush timer
			}
			if ctx.Err() != nil {
				return // Context cancelled
			}
			// Real Redis error (e.g., connection lost)
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		// 4. Process Data
		if len(result) < 2 {
			continue
		}

		var envelope eventEnvelope
		if err := json.Unmarshal([]byte(result[1]), &envelope); err != nil {
			// If JSON is malformed, we CANNOT retry it. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &envelope)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue
func (w *EventWorker) flushSafe(ctx context.Context, batch []*eventEnvelope) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *EventWorker) bulkInsert(ctx context.Context, batch []*eventEnvelope) error {
	examIDs := make([]uuid.UUID, 0, len(batch))
	events := make([]*model.ProctorEvent, 0, len(batch))
	for i := range batch {
		examID, err := uuid.Parse(batch[i].ExamID)
		if err != nil {
			// Return error to trigger fallback, which will handle the bad UUID individually
			return err
		}
		examIDs = append(examIDs, examID)
		events = append(events, &batch[i].Event)
	}
	return w.eventRepo.BulkInsert(ctx, examIDs, events)
}

func (w *EventWorker) fallbackInsert(ctx context.Context, batch []*eventEnvelope) {
	requeueList := make([]*eventEnvelope, 0)

	for _, envelope := range batch {
		examID, err := uuid.Parse(envelope.ExamID)
		if err != nil {
			w.log.Error().Str("exam_id", envelope.ExamID).Msg("Dropping event with invalid UUID")
			continue
		}

		if err := w.eventRepo.Insert(ctx, examID, &envelope.Event); err != nil {
			w.log.Error().Err(err).Str("student_id", envelope.Event.StudentID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, envelope)
		}
	}

	// If we have items to requeue (DB was down), push them back to Redis
	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *EventWorker) requeue(ctx context.Context, items []*eventEnvelope) {
	// Use a pipeline to push everything back quickly
	pipe := w.rdb.Pipeline()
	for _, envelope := range items {
		data, _ := json.Marshal(envelope)
		pipe.RPush(ctx, config.WorkerKey.PersistEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Sleep a bit to avoid thrashing if the DB is down hard
		time.Sleep(2 * time.Second)
	}
}

func (w *EventWorker) shutdown(buffer []*eventEnvelope) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	// Give it 5 seconds to flush to DB
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
