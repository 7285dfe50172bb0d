package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Suraj08344/examproct-backend/internal/attempt"
	"github.com/Suraj08344/examproct-backend/internal/middleware"
	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
	"github.com/Suraj08344/examproct-backend/internal/response"
	"github.com/Suraj08344/examproct-backend/internal/signaling"
	"github.com/Suraj08344/examproct-backend/internal/telemetry"
	ws "github.com/Suraj08344/examproct-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the student-side WebSocket stream: attempt
// actions in, state pushes and proctor traffic out.
type WSHandler struct {
	registry *attempt.Registry
	exams    attempt.ExamDirectory
	hub      *realtime.Hub
	relay    *signaling.Relay
	rdb      *redis.Client
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	registry *attempt.Registry,
	exams attempt.ExamDirectory,
	hub *realtime.Hub,
	relay *signaling.Relay,
	rdb *redis.Client,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		registry: registry,
		exams:    exams,
		hub:      hub,
		relay:    relay,
		rdb:      rdb,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket for live attempt actions and proctor traffic.
// The attempt must already exist; start or resume it over REST first.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	studentID := claims.UserID

	m := h.registry.Get(examID, studentID)
	if m == nil {
		conn.WriteError("no active attempt for this exam")
		return
	}

	exam, err := h.exams.GetExam(c.Request.Context(), examID)
	if err != nil {
		conn.WriteError("exam unavailable")
		return
	}

	wsLog := h.log.With().
		Str("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	emitter := telemetry.NewEmitter(exam, studentID, claims.Name, h.hub, h.rdb, wsLog)

	// Room traffic addressed to this student: proctor messages,
	// termination, and signaling answers.
	sub := h.hub.Subscribe(realtime.StudentRoom(examID.String(), studentID))
	terminated := make(chan struct{})
	go h.forwardRoom(conn, sub, m, examID, studentID, terminated, wsLog)

	m.SetConnected(true)
	wsLog.Info().Msg("Student connected")

	// Initial state push so the client renders without a second round trip.
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: m.Snapshot()})

	for {
		data, err := conn.ReadRaw()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			conn.WriteError("malformed payload")
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, m, data)
		case ws.ActionSave:
			h.handleSave(c.Request.Context(), conn, m)
		case ws.ActionNavigate:
			h.handleNavigate(conn, m, data)
		case ws.ActionSubmit:
			h.handleSubmit(c.Request.Context(), conn, m, wsLog)
		case ws.ActionTelemetry:
			h.handleTelemetry(c.Request.Context(), conn, m, emitter, exam, data)
		case ws.ActionAckLockdown:
			m.AcknowledgeLockdown()
			conn.WriteTyped(ws.LockdownResponse{Event: ws.EventLockdown, Frozen: false})
		case ws.ActionSignal:
			h.handleSignal(conn, examID, studentID, data)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(envelope.Action))
		}
	}

	sub.Cancel()

	select {
	case <-terminated:
		// Proctor ended the session; the machine is already gone and
		// the room should not see a plain disconnect.
	default:
		m.SetConnected(false)
		h.hub.Publish(realtime.ProctorRoom(examID.String()), &realtime.StudentLeftExam{StudentID: studentID})
	}
	wsLog.Info().Msg("Student disconnected")
}

// forwardRoom pushes student-room envelopes down the socket. A
// termination envelope also tears the attempt down and closes the
// connection.
func (h *WSHandler) forwardRoom(
	conn *ws.Conn,
	sub *realtime.Subscription,
	m *attempt.Machine,
	examID uuid.UUID,
	studentID string,
	terminated chan struct{},
	wsLog zerolog.Logger,
) {
	for env := range sub.C {
		switch env.Kind {
		case realtime.KindProctorMessageSent,
			realtime.KindWebRTCOffer,
			realtime.KindWebRTCAnswer,
			realtime.KindWebRTCICECandidate:
			conn.WriteTyped(ws.RelayResponse{Event: ws.EventRelay, Kind: env.Kind, Payload: env.Payload})

		case realtime.KindStudentSessionTerminated:
			conn.WriteTyped(ws.RelayResponse{Event: ws.EventRelay, Kind: env.Kind, Payload: env.Payload})
			close(terminated)
			h.registry.Remove(examID, studentID)
			wsLog.Info().Msg("Session terminated by proctor")
			conn.Close()
			return
		}
	}
}

func (h *WSHandler) handleAnswer(conn *ws.Conn, m *attempt.Machine, data []byte) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(data, &req); err != nil || req.QID == "" {
		conn.WriteError("q_id and ans are required")
		return
	}
	if err := m.SetAnswer(req.QID, req.Answer); err != nil {
		conn.WriteError(attemptErrMessage(err))
		return
	}
	conn.WriteTyped(ws.SuccessResponse{Event: ws.EventSuccess, Action: ws.ActionAnswer})
}

func (h *WSHandler) handleSave(ctx context.Context, conn *ws.Conn, m *attempt.Machine) {
	if err := m.SaveCurrentAnswer(ctx); err != nil {
		conn.WriteError(attemptErrMessage(err))
		return
	}
	conn.WriteTyped(ws.SuccessResponse{Event: ws.EventSuccess, Action: ws.ActionSave})
}

func (h *WSHandler) handleNavigate(conn *ws.Conn, m *attempt.Machine, data []byte) {
	var req ws.NavigateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		conn.WriteError("malformed payload")
		return
	}

	var dir attempt.Direction
	switch req.Direction {
	case "next":
		dir = attempt.Next
	case "previous":
		dir = attempt.Previous
	default:
		conn.WriteError("direction must be next or previous")
		return
	}

	if err := m.Navigate(dir); err != nil {
		conn.WriteError(attemptErrMessage(err))
		return
	}
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: m.Snapshot()})
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, m *attempt.Machine, wsLog zerolog.Logger) {
	outcome, err := m.Submit(ctx)
	if err != nil {
		wsLog.Error().Err(err).Msg("Submit failed")
		conn.WriteError(attemptErrMessage(err))
		return
	}
	wsLog.Info().Bool("redirect", outcome.Redirect).Msg("Attempt submitted")
	conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Redirect: outcome.Redirect})
}

func (h *WSHandler) handleTelemetry(
	ctx context.Context,
	conn *ws.Conn,
	m *attempt.Machine,
	emitter *telemetry.Emitter,
	exam *model.Exam,
	data []byte,
) {
	var req ws.TelemetryRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Type == "" {
		conn.WriteError("telemetry type is required")
		return
	}

	switch req.Type {
	case model.EventTabSwitch:
		emitter.VisibilityLost(ctx)
	case model.EventEscapeAttempt:
		if event := emitter.EscapeAttempt(ctx); event != nil && exam.LockdownMode {
			m.Freeze()
			conn.WriteTyped(ws.LockdownResponse{Event: ws.EventLockdown, Frozen: true})
			return
		}
	default:
		emitter.Detection(ctx, req.Type, req.Description)
	}

	conn.WriteTyped(ws.SuccessResponse{Event: ws.EventSuccess, Action: ws.ActionTelemetry})
}

func (h *WSHandler) handleSignal(conn *ws.Conn, examID uuid.UUID, studentID string, data []byte) {
	var req ws.SignalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		conn.WriteError("malformed payload")
		return
	}

	err := h.relay.Forward(&realtime.WebRTCSignal{
		Signal:     req.Signal,
		ExamID:     examID.String(),
		StudentID:  studentID,
		Payload:    req.Payload,
		TargetRole: realtime.RoleProctor,
	})
	if err != nil {
		conn.WriteError(response.GetMessage(response.ErrSignalingFailure))
		return
	}
	conn.WriteTyped(ws.SuccessResponse{Event: ws.EventSuccess, Action: ws.ActionSignal})
}

// attemptErrMessage maps machine errors onto the shared error catalog.
func attemptErrMessage(err error) string {
	switch {
	case errors.Is(err, attempt.ErrUnsavedAnswer):
		return response.GetMessage(response.ErrUnsavedAnswer)
	case errors.Is(err, attempt.ErrLockdownActive):
		return response.GetMessage(response.ErrLockdownActive)
	case errors.Is(err, attempt.ErrAlreadySubmitted):
		return response.GetMessage(response.ErrAlreadySubmitted)
	case errors.Is(err, attempt.ErrSessionExpired):
		return response.GetMessage(response.ErrSessionExpired)
	case errors.Is(err, attempt.ErrNotInProgress):
		return response.GetMessage(response.ErrConflict)
	case errors.Is(err, attempt.ErrUnknownQuestion):
		return response.GetMessage(response.ErrInvalidPayload)
	case errors.Is(err, attempt.ErrSaveFailed):
		return response.GetMessage(response.ErrSaveFailed)
	case errors.Is(err, attempt.ErrSubmitFailed):
		return response.GetMessage(response.ErrSubmitFailed)
	default:
		return response.GetMessage(response.ErrInternal)
	}
}
