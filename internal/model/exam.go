package model

import (
	"github.com/google/uuid"
)

// Exam is the minimal projection of an authored exam that the live
// session engine needs. Authoring and content management live in an
// external service; this side only consumes the published shape.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionIDs     []string  `json:"question_ids"`

	// Proctoring enforcement flags, set at publish time.
	PreventTabSwitch bool `json:"prevent_tab_switch"`
	LockdownMode     bool `json:"lockdown_mode"`
}

// QuestionCount returns the number of questions in the exam.
func (e *Exam) QuestionCount() int {
	return len(e.QuestionIDs)
}
