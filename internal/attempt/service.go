package attempt

import (
	"context"

	"github.com/google/uuid"
	"github.com/Suraj08344/examproct-backend/internal/model"
)

// ResultService is the external authority on recorded attempts. It
// decides whether a prior completed attempt exists and accepts the
// terminal submission. An outcome with Redirect set means the attempt
// was already recorded elsewhere and must be treated as success.
type ResultService interface {
	CompletedAttempt(ctx context.Context, examID uuid.UUID, studentID string) (bool, error)
	SubmitAttempt(ctx context.Context, payload *model.SubmissionPayload) (*model.SubmissionOutcome, error)
}

// ExamDirectory resolves published exams. Content authoring lives
// elsewhere; the session engine only reads.
type ExamDirectory interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
}

// Student identifies the person behind an attempt, as carried by
// their token claims.
type Student struct {
	ID    string
	Name  string
	Email string
}
