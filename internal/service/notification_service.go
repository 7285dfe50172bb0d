package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/repository"
)

// NotificationService persists operator actions taken against a live
// session. Delivery to the student happens over the realtime hub; this
// service is the durability side of the same action, so the audit log
// survives even when the student is offline.
type NotificationService struct {
	attemptRepo *repository.AttemptRepository
	eventRepo   *repository.EventRepository
	log         zerolog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(attemptRepo *repository.AttemptRepository, eventRepo *repository.EventRepository, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		attemptRepo: attemptRepo,
		eventRepo:   eventRepo,
		log:         log.With().Str("component", "notification_service").Logger(),
	}
}

// SendMessage records a proctor-to-student message in the event log.
func (s *NotificationService) SendMessage(ctx context.Context, examID, studentID, message string) error {
	return s.recordOperatorEvent(ctx, examID, studentID, model.EventMessageSent, message)
}

// SendWarning records a formal warning in the event log.
func (s *NotificationService) SendWarning(ctx context.Context, examID, studentID, message string) error {
	return s.recordOperatorEvent(ctx, examID, studentID, model.EventWarningSent, message)
}

// TerminateSession marks the attempt as terminated and records the
// action. The termination marker is what makes any later submission
// from the student bounce as a redirect.
func (s *NotificationService) TerminateSession(ctx context.Context, examID, studentID string) error {
	id, err := uuid.Parse(examID)
	if err != nil {
		return fmt.Errorf("parse exam id: %w", err)
	}
	if err := s.attemptRepo.RecordTermination(ctx, id, studentID); err != nil {
		return fmt.Errorf("record termination: %w", err)
	}
	if err := s.recordOperatorEvent(ctx, examID, studentID, model.EventSessionTerminated, "session terminated by proctor"); err != nil {
		// The marker is the part that matters; a missing log row is
		// recoverable.
		s.log.Warn().Err(err).
			Str("exam_id", examID).
			Str("student_id", studentID).
			Msg("termination recorded but event log insert failed")
	}
	return nil
}

func (s *NotificationService) recordOperatorEvent(ctx context.Context, examID, studentID string, t model.EventType, description string) error {
	id, err := uuid.Parse(examID)
	if err != nil {
		return fmt.Errorf("parse exam id: %w", err)
	}
	event := &model.ProctorEvent{
		ID:          uuid.New(),
		StudentID:   studentID,
		Type:        t,
		Severity:    model.DefaultSeverity(t),
		Description: description,
		Timestamp:   time.Now(),
	}
	if err := s.eventRepo.Insert(ctx, id, event); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
