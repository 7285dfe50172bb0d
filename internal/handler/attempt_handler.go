package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Suraj08344/examproct-backend/internal/attempt"
	"github.com/Suraj08344/examproct-backend/internal/middleware"
	"github.com/Suraj08344/examproct-backend/internal/repository"
	"github.com/Suraj08344/examproct-backend/internal/response"
	"github.com/Suraj08344/examproct-backend/internal/service"
	"github.com/Suraj08344/examproct-backend/internal/store"
)

// AttemptHandler exposes the REST surface of the attempt lifecycle:
// starting, resuming and inspecting a session. Everything interactive
// happens on the WebSocket stream afterwards.
type AttemptHandler struct {
	registry *attempt.Registry
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(registry *attempt.Registry, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		registry: registry,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/start
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims, examID, ok := h.resolve(c)
	if !ok {
		return
	}

	student := attempt.Student{ID: claims.UserID, Name: claims.Name, Email: claims.Email}
	m, err := h.registry.Start(c.Request.Context(), examID, student)
	if err != nil {
		h.failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusCreated, m.Snapshot())
}

// ResumeAttempt godoc
// POST /api/v1/student/exams/:exam_id/resume
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	claims, examID, ok := h.resolve(c)
	if !ok {
		return
	}

	student := attempt.Student{ID: claims.UserID, Name: claims.Name, Email: claims.Email}
	m, err := h.registry.Resume(c.Request.Context(), examID, student)
	if err != nil {
		h.failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, m.Snapshot())
}

// GetState godoc
// GET /api/v1/student/exams/:exam_id/state
func (h *AttemptHandler) GetState(c *gin.Context) {
	claims, examID, ok := h.resolve(c)
	if !ok {
		return
	}

	m := h.registry.Get(examID, claims.UserID)
	if m == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, m.Snapshot())
}

func (h *AttemptHandler) resolve(c *gin.Context) (claims *service.Claims, examID uuid.UUID, ok bool) {
	cl := middleware.GetClaims(c)
	if cl == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return cl, examID, true
}

func (h *AttemptHandler) failAttempt(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, attempt.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, attempt.ErrEmptyExam):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrEmptyExam)
	case errors.Is(err, attempt.ErrAttemptActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptActive)
	case errors.Is(err, attempt.ErrSessionExpired):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.Is(err, store.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		h.log.Error().Err(err).Msg("Attempt lifecycle error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
