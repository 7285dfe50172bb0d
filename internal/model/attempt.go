package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptState enumerates exam attempt lifecycle states.
type AttemptState string

const (
	AttemptNotStarted AttemptState = "NOT_STARTED"
	AttemptInProgress AttemptState = "IN_PROGRESS"
	AttemptSubmitting AttemptState = "SUBMITTING"
	AttemptSubmitted  AttemptState = "SUBMITTED"
)

// ExamAttemptSession is the live in-memory state of one student's run
// through one exam. Exactly one instance per (exam, student) pair may
// be in progress at a time; the attempt registry enforces that.
type ExamAttemptSession struct {
	ExamID               uuid.UUID         `json:"exam_id"`
	StudentID            string            `json:"student_id"`
	StartTime            time.Time         `json:"start_time"`
	TotalDurationSeconds int               `json:"total_duration_seconds"`
	TimeLeftSeconds      int               `json:"time_left_seconds"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	Answers              map[string]string `json:"answers"`
	SavedAnswers         map[string]string `json:"saved_answers"`
	PerQuestionTimeSpent map[string]int    `json:"per_question_time_spent"`
}

// SessionRecord is the durable snapshot of an attempt, keyed by
// (exam_id, student_id) in the session store. StartTime is the instant
// TimeLeftSeconds was measured, so remaining time on resume is always
// max(0, time_left - elapsed-since-start_time) regardless of how many
// autosave cycles preceded the snapshot.
type SessionRecord struct {
	ExamID               uuid.UUID         `json:"exam_id"`
	StartTime            time.Time         `json:"start_time"`
	TimeLeftSeconds      int               `json:"time_left_seconds"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	Answers              map[string]string `json:"answers"`
	SavedAnswers         map[string]string `json:"saved_answers"`
}

// AnsweredQuestion is one graded unit inside a submission.
type AnsweredQuestion struct {
	QuestionID       string `json:"question_id"`
	Answer           string `json:"answer"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
}

// SubmissionPayload is the immutable payload handed to the result
// service on terminal submission. Only attempted questions appear in
// Answers.
type SubmissionPayload struct {
	ExamID           uuid.UUID          `json:"exam_id"`
	StudentID        string             `json:"student_id"`
	Answers          []AnsweredQuestion `json:"answers"`
	TimeTakenSeconds int                `json:"time_taken_seconds"`
	StartTime        time.Time          `json:"start_time"`
	EndTime          time.Time          `json:"end_time"`
}

// SubmissionOutcome is the result service's answer to a submission.
// Redirect means the attempt was already recorded elsewhere; callers
// must treat it as a successful terminal transition, not an error.
type SubmissionOutcome struct {
	Redirect bool `json:"redirect"`
}
