package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Suraj08344/examproct-backend/internal/aggregator"
	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
	"github.com/Suraj08344/examproct-backend/internal/response"
	"github.com/Suraj08344/examproct-backend/internal/validator"
)

// ProctorHandler exposes operator actions over REST, for dashboards
// that act on a student without holding a console socket. The durable
// side goes through the notification service; delivery to a connected
// student rides the realtime hub exactly like the console path.
type ProctorHandler struct {
	notifier aggregator.NotificationService
	hub      *realtime.Hub
	log      zerolog.Logger
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(notifier aggregator.NotificationService, hub *realtime.Hub, log zerolog.Logger) *ProctorHandler {
	return &ProctorHandler{
		notifier: notifier,
		hub:      hub,
		log:      log.With().Str("component", "proctor_handler").Logger(),
	}
}

// SendMessage godoc
// POST /api/v1/proctor/exams/:exam_id/students/:student_id/message
func (h *ProctorHandler) SendMessage(c *gin.Context) {
	h.send(c, "message", h.notifier.SendMessage)
}

// SendWarning godoc
// POST /api/v1/proctor/exams/:exam_id/students/:student_id/warning
func (h *ProctorHandler) SendWarning(c *gin.Context) {
	h.send(c, "warning", h.notifier.SendWarning)
}

// TerminateSession godoc
// POST /api/v1/proctor/exams/:exam_id/students/:student_id/terminate
func (h *ProctorHandler) TerminateSession(c *gin.Context) {
	examID, studentID, ok := h.resolve(c)
	if !ok {
		return
	}

	if err := h.notifier.TerminateSession(c.Request.Context(), examID.String(), studentID); err != nil {
		h.log.Error().Err(err).Str("student_id", studentID).Msg("Terminate session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if err := h.hub.Publish(realtime.StudentRoom(examID.String(), studentID), &realtime.StudentSessionTerminated{
		StudentID: studentID,
	}); err != nil {
		h.log.Debug().Err(err).Str("student_id", studentID).Msg("Termination publish failed")
	}

	response.Success(c, http.StatusOK, gin.H{"terminated": true})
}

func (h *ProctorHandler) send(c *gin.Context, kind string, sendFn func(ctx context.Context, examID, studentID, message string) error) {
	examID, studentID, ok := h.resolve(c)
	if !ok {
		return
	}

	var req model.OperatorMessageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := sendFn(c.Request.Context(), examID.String(), studentID, req.Message); err != nil {
		h.log.Error().Err(err).Str("student_id", studentID).Str("kind", kind).Msg("Operator send failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if err := h.hub.Publish(realtime.StudentRoom(examID.String(), studentID), &realtime.ProctorMessageSent{
		StudentID: studentID,
		Type:      kind,
		Message:   req.Message,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		h.log.Debug().Err(err).Str("student_id", studentID).Msg("Command publish failed")
	}

	response.Success(c, http.StatusOK, gin.H{"sent": true, "type": kind})
}

func (h *ProctorHandler) resolve(c *gin.Context) (examID uuid.UUID, studentID string, ok bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, "", false
	}

	studentID = c.Param("student_id")
	if studentID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, "", false
	}

	return examID, studentID, true
}
