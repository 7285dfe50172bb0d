package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/repository"
)

// ResultService accepts finished attempts and records their terminal
// state. It is the single authority on whether a student already has a
// recorded result for an exam.
type ResultService struct {
	attemptRepo *repository.AttemptRepository
	log         zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(attemptRepo *repository.AttemptRepository, log zerolog.Logger) *ResultService {
	return &ResultService{
		attemptRepo: attemptRepo,
		log:         log.With().Str("component", "result_service").Logger(),
	}
}

// CompletedAttempt reports whether a submission is already on record
// for this student and exam.
func (s *ResultService) CompletedAttempt(ctx context.Context, examID uuid.UUID, studentID string) (bool, error) {
	return s.attemptRepo.CompletedAttempt(ctx, examID, studentID)
}

// SubmitAttempt records a finished attempt. Submissions that arrive
// after a proctor terminated the session, or that duplicate an
// already-recorded result, are not stored again; both cases come back
// as a redirect so the student lands on the results page either way.
func (s *ResultService) SubmitAttempt(ctx context.Context, payload *model.SubmissionPayload) (*model.SubmissionOutcome, error) {
	terminated, err := s.attemptRepo.Terminated(ctx, payload.ExamID, payload.StudentID)
	if err != nil {
		return nil, fmt.Errorf("check termination: %w", err)
	}
	if terminated {
		s.log.Info().
			Str("exam_id", payload.ExamID.String()).
			Str("student_id", payload.StudentID).
			Msg("submission after termination, redirecting without recording")
		return &model.SubmissionOutcome{Redirect: true}, nil
	}

	alreadyRecorded, err := s.attemptRepo.InsertSubmission(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	if alreadyRecorded {
		return &model.SubmissionOutcome{Redirect: true}, nil
	}

	// The snapshot is only useful for resuming; once the result is on
	// record it is stale data.
	if err := s.attemptRepo.DeleteSnapshot(ctx, payload.ExamID, payload.StudentID); err != nil {
		s.log.Warn().Err(err).
			Str("exam_id", payload.ExamID.String()).
			Str("student_id", payload.StudentID).
			Msg("failed to delete persisted snapshot after submission")
	}

	return &model.SubmissionOutcome{Redirect: false}, nil
}
