package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/repository"
	"github.com/Suraj08344/examproct-backend/internal/service"
)

func TestSeedRecordsScalesProgressToPercent(t *testing.T) {
	joined := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	progress := &service.ExamProgressSnapshot{
		Attempts: []repository.AttemptRow{
			{
				StudentID:            "s1",
				TimeLeftSeconds:      900,
				CurrentQuestionIndex: 3,
				AnsweredCount:        3,
				UpdatedAt:            joined,
			},
			{StudentID: "s2", AnsweredCount: 10, Submitted: true},
		},
		AlertCounts: map[string]int64{"s1": 2},
	}

	records := seedRecords(progress, 10)
	require.Len(t, records, 2)

	// Progress matches the percentage the live machine publishes, so a
	// student seeded at 3-of-10 shows 30, not 3.
	require.Equal(t, model.StudentMonitorRecord{
		StudentID:       "s1",
		Status:          model.MonitorDisconnected,
		Progress:        30,
		TimeRemaining:   900,
		CurrentQuestion: 4,
		Alerts:          2,
		JoinedAt:        joined,
	}, records[0])

	require.Equal(t, model.MonitorCompleted, records[1].Status)
	require.Equal(t, 100, records[1].Progress)
	require.Equal(t, 0, records[1].Alerts)
}

func TestSeedRecordsZeroQuestionExam(t *testing.T) {
	progress := &service.ExamProgressSnapshot{
		Attempts:    []repository.AttemptRow{{StudentID: "s1", AnsweredCount: 4}},
		AlertCounts: map[string]int64{},
	}

	records := seedRecords(progress, 0)
	require.Len(t, records, 1)
	require.Equal(t, 0, records[0].Progress)
}
