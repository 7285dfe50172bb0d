package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Suraj08344/examproct-backend/internal/attempt"
	"github.com/Suraj08344/examproct-backend/internal/config"
	"github.com/Suraj08344/examproct-backend/internal/middleware"
	"github.com/Suraj08344/examproct-backend/internal/response"
	"github.com/Suraj08344/examproct-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams a read-only monitoring feed over SSE. It is
// the lightweight sibling of the WebSocket console: no operator
// actions, just the room's live traffic plus periodic durable
// refreshes.
type MonitorHandler struct {
	rdb        *redis.Client
	exams      attempt.ExamDirectory
	monitorSvc *service.MonitorService
	log        zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	exams attempt.ExamDirectory,
	monitorSvc *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:        rdb,
		exams:      exams,
		monitorSvc: monitorSvc,
		log:        log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/proctor/exams/:exam_id/monitor
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.exams.GetExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	reqCtx := c.Request.Context()

	// SSE headers
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	totalQuestions := exam.QuestionCount()

	// Initial snapshot from durable state.
	h.sendSnapshot(c, reqCtx, examID, exam.Title, exam.DurationMinutes, totalQuestions)

	// Live room traffic via the cross-instance channel.
	channelName := config.CacheKey.ExamRoomChannel(examID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Proctor attached to monitor SSE")

	// Pre-allocate a reusable ping payload (never changes)
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Proctor disconnected from monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendRefresh(c, reqCtx, examID, totalQuestions)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot gathers durable attempt state and writes the first SSE event.
func (h *MonitorHandler) sendSnapshot(
	c *gin.Context,
	parentCtx context.Context,
	examID uuid.UUID,
	title string,
	durationMinutes int,
	totalQuestions int,
) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	progress, err := h.monitorSvc.GetExamProgress(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch snapshot for monitor SSE")
		progress = &service.ExamProgressSnapshot{AlertCounts: map[string]int64{}}
	}

	totalJoined := len(progress.Attempts)
	totalInProgress := 0
	totalCompleted := 0

	studentsSnapshot := make([]map[string]interface{}, 0, len(progress.Attempts))
	for _, row := range progress.Attempts {
		if row.Submitted {
			totalCompleted++
		} else {
			totalInProgress++
		}

		studentsSnapshot = append(studentsSnapshot, map[string]interface{}{
			"student_id":       row.StudentID,
			"submitted":        row.Submitted,
			"time_left":        row.TimeLeftSeconds,
			"current_question": row.CurrentQuestionIndex + 1,
			"answered_count":   row.AnsweredCount,
			"alert_count":      progress.AlertCounts[row.StudentID],
			"total_questions":  totalQuestions,
			"updated_at":       row.UpdatedAt,
		})
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"exam": map[string]interface{}{
				"id":              examID.String(),
				"title":           title,
				"duration":        durationMinutes,
				"total_questions": totalQuestions,
			},
			"stats": map[string]interface{}{
				"total_joined":      totalJoined,
				"total_in_progress": totalInProgress,
				"total_completed":   totalCompleted,
				"total_alerts":      progress.TotalAlerts,
			},
			"students": studentsSnapshot,
		},
	})
	c.Writer.Flush()
}

// sendRefresh polls the database for current progress and sends a compact refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, examID uuid.UUID, totalQuestions int) {
	// Scoped timeout prevents a slow query from stalling the SSE loop
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	progress, err := h.monitorSvc.GetExamProgress(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch progress for refresh")
		return
	}

	progressData := make([]map[string]interface{}, 0, len(progress.Attempts))
	for _, row := range progress.Attempts {
		progressData = append(progressData, map[string]interface{}{
			"student_id":     row.StudentID,
			"answered_count": row.AnsweredCount,
			"alert_count":    progress.AlertCounts[row.StudentID],
			"submitted":      row.Submitted,
		})
	}

	c.SSEvent("message", map[string]interface{}{
		"type":            "refresh",
		"total_questions": totalQuestions,
		"total_alerts":    progress.TotalAlerts,
		"students":        progressData,
	})
	c.Writer.Flush()
}
