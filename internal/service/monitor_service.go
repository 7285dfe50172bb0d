package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Suraj08344/examproct-backend/internal/repository"
)

// MonitorService assembles the durable half of the proctor view: what
// the database knows about each student even when no live connection
// exists.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
	eventRepo   *repository.EventRepository
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository, eventRepo *repository.EventRepository) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo, eventRepo: eventRepo}
}

// ExamProgressSnapshot holds the persisted attempt rows plus alert
// counts for every student in an exam.
type ExamProgressSnapshot struct {
	Attempts    []repository.AttemptRow
	AlertCounts map[string]int64 // student_id → alert count
	TotalAlerts int64
}

// GetExamProgress returns attempt rows and alert counts concurrently.
// It fires two independent data fetches in parallel to minimize latency.
func (s *MonitorService) GetExamProgress(ctx context.Context, examID uuid.UUID) (*ExamProgressSnapshot, error) {
	snapshot := &ExamProgressSnapshot{
		AlertCounts: make(map[string]int64),
	}

	var (
		attempts    []repository.AttemptRow
		alertCounts map[string]int64
		attemptErr  error
		alertErr    error
		wg          sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		attempts, attemptErr = s.monitorRepo.ListAttempts(ctx, examID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		alertCounts, alertErr = s.eventRepo.CountByStudent(ctx, examID)
	}()

	wg.Wait()

	// Attempt rows are critical; alert counts are best-effort
	if attemptErr != nil {
		return nil, attemptErr
	}
	snapshot.Attempts = attempts

	if alertErr == nil && alertCounts != nil {
		snapshot.AlertCounts = alertCounts
		for _, count := range alertCounts {
			snapshot.TotalAlerts += count
		}
	}

	return snapshot, nil
}
