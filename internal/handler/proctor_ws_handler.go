package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Suraj08344/examproct-backend/internal/aggregator"
	"github.com/Suraj08344/examproct-backend/internal/attempt"
	"github.com/Suraj08344/examproct-backend/internal/middleware"
	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
	"github.com/Suraj08344/examproct-backend/internal/response"
	"github.com/Suraj08344/examproct-backend/internal/service"
	"github.com/Suraj08344/examproct-backend/internal/signaling"
	ws "github.com/Suraj08344/examproct-backend/internal/websocket"
)

const seedTimeout = 5 * time.Second

// ProctorWSHandler runs the proctor console: a WebSocket per operator
// holding a live aggregated view of one exam room.
type ProctorWSHandler struct {
	exams      attempt.ExamDirectory
	hub        *realtime.Hub
	relay      *signaling.Relay
	notifier   *service.NotificationService
	monitorSvc *service.MonitorService
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewProctorWSHandler creates a new ProctorWSHandler.
func NewProctorWSHandler(
	exams attempt.ExamDirectory,
	hub *realtime.Hub,
	relay *signaling.Relay,
	notifier *service.NotificationService,
	monitorSvc *service.MonitorService,
	log zerolog.Logger,
	allowedOrigins []string,
) *ProctorWSHandler {
	return &ProctorWSHandler{
		exams:      exams,
		hub:        hub,
		relay:      relay,
		notifier:   notifier,
		monitorSvc: monitorSvc,
		log:        log.With().Str("component", "proctor_ws_handler").Logger(),
		upgrader:   buildUpgrader(allowedOrigins),
	}
}

// Console godoc
// WS /ws/v1/proctor/exams/:exam_id/console
func (h *ProctorWSHandler) Console(c *gin.Context) {
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

	exam, err := h.exams.GetExam(c.Request.Context(), examID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Str("proctor_id", claims.UserID).
		Str("exam_id", examID.String()).
		Logger()

	agg := aggregator.New(examID.String(), exam.QuestionCount(), h.hub, h.notifier, h.relay, wsLog)
	defer agg.Close()

	h.seed(c.Request.Context(), agg, examID, exam.QuestionCount())

	// Subscribe before announcing so the console cannot miss traffic
	// racing its own join.
	sub := h.hub.Subscribe(realtime.ProctorRoom(examID.String()))
	defer sub.Cancel()

	h.hub.Publish(realtime.ProctorRoom(examID.String()), &realtime.JoinProctor{
		ExamID:      examID.String(),
		ProctorName: claims.Name,
	})

	go h.forwardRoom(conn, sub, agg)

	wsLog.Info().Msg("Proctor attached to console")

	conn.WriteTyped(ws.RosterResponse{Event: ws.EventRoster, Students: agg.Records()})
	conn.WriteTyped(ws.LogResponse{Event: ws.EventLog, Events: agg.EventLog()})

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
		case ws.ActionMessage:
			h.handleMessage(c.Request.Context(), conn, agg, data)
		case ws.ActionWarning:
			h.handleWarning(c.Request.Context(), conn, agg, data)
		case ws.ActionTerminate:
			h.handleTerminate(c.Request.Context(), conn, agg, data, wsLog)
		case ws.ActionSignal:
			h.handleSignal(conn, examID, data)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(envelope.Action))
		}
	}

	wsLog.Info().Msg("Proctor detached from console")
}

// seed prefills the aggregator from persisted attempt state so
// students who joined before this console opened are visible.
func (h *ProctorWSHandler) seed(parentCtx context.Context, agg *aggregator.Aggregator, examID uuid.UUID, totalQuestions int) {
	ctx, cancel := context.WithTimeout(parentCtx, seedTimeout)
	defer cancel()

	progress, err := h.monitorSvc.GetExamProgress(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Console seed query failed, starting empty")
		return
	}
	agg.Seed(seedRecords(progress, totalQuestions))
}

// seedRecords translates durable attempt rows into the monitor shape.
// Progress is the saved-answer percentage, matching the live updates
// the attempt machine publishes.
func seedRecords(progress *service.ExamProgressSnapshot, totalQuestions int) []model.StudentMonitorRecord {
	records := make([]model.StudentMonitorRecord, 0, len(progress.Attempts))
	for _, row := range progress.Attempts {
		status := model.MonitorDisconnected
		if row.Submitted {
			status = model.MonitorCompleted
		}
		percent := 0
		if totalQuestions > 0 {
			percent = int(row.AnsweredCount) * 100 / totalQuestions
		}
		records = append(records, model.StudentMonitorRecord{
			StudentID:       row.StudentID,
			Status:          status,
			Progress:        percent,
			TimeRemaining:   row.TimeLeftSeconds,
			CurrentQuestion: row.CurrentQuestionIndex + 1,
			Alerts:          int(progress.AlertCounts[row.StudentID]),
			JoinedAt:        row.UpdatedAt,
		})
	}
	return records
}

// forwardRoom folds room traffic into the aggregate and mirrors it to
// the console client.
func (h *ProctorWSHandler) forwardRoom(conn *ws.Conn, sub *realtime.Subscription, agg *aggregator.Aggregator) {
	for env := range sub.C {
		msg, err := env.Decode()
		if err != nil {
			h.log.Debug().Err(err).Str("kind", string(env.Kind)).Msg("Dropping undecodable envelope")
			continue
		}
		agg.Apply(msg)
		conn.WriteTyped(ws.RelayResponse{Event: ws.EventRelay, Kind: env.Kind, Payload: env.Payload})
	}
}

func (h *ProctorWSHandler) handleMessage(ctx context.Context, conn *ws.Conn, agg *aggregator.Aggregator, data []byte) {
	var req ws.MessageRequest
	if err := json.Unmarshal(data, &req); err != nil || req.StudentID == "" || req.Message == "" {
		conn.WriteError("student_id and message are required")
		return
	}
	if err := agg.SendMessage(ctx, req.StudentID, req.Message); err != nil {
		conn.WriteError(response.GetMessage(response.ErrInternal))
		return
	}
	conn.WriteTyped(ws.SuccessResponse{Event: ws.EventSuccess, Action: ws.ActionMessage})
}

func (h *ProctorWSHandler) handleWarning(ctx context.Context, conn *ws.Conn, agg *aggregator.Aggregator, data []byte) {
	var req ws.WarningRequest
	if err := json.Unmarshal(data, &req); err != nil || req.StudentID == "" || req.Message == "" {
		conn.WriteError("student_id and message are required")
		return
	}
	if err := agg.SendWarning(ctx, req.StudentID, req.Message); err != nil {
		conn.WriteError(response.GetMessage(response.ErrInternal))
		return
	}
	conn.WriteTyped(ws.SuccessResponse{Event: ws.EventSuccess, Action: ws.ActionWarning})
}

func (h *ProctorWSHandler) handleTerminate(ctx context.Context, conn *ws.Conn, agg *aggregator.Aggregator, data []byte, wsLog zerolog.Logger) {
	var req ws.TerminateRequest
	if err := json.Unmarshal(data, &req); err != nil || req.StudentID == "" {
		conn.WriteError("student_id is required")
		return
	}
	if err := agg.TerminateSession(ctx, req.StudentID); err != nil {
		conn.WriteError(response.GetMessage(response.ErrInternal))
		return
	}
	wsLog.Info().Str("student_id", req.StudentID).Msg("Session terminated")
	conn.WriteTyped(ws.SuccessResponse{Event: ws.EventSuccess, Action: ws.ActionTerminate})
}

func (h *ProctorWSHandler) handleSignal(conn *ws.Conn, examID uuid.UUID, data []byte) {
	var req ws.SignalRequest
	if err := json.Unmarshal(data, &req); err != nil || req.StudentID == "" {
		conn.WriteError("student_id is required")
		return
	}

	err := h.relay.Forward(&realtime.WebRTCSignal{
		Signal:     req.Signal,
		ExamID:     examID.String(),
		StudentID:  req.StudentID,
		Payload:    req.Payload,
		TargetRole: realtime.RoleStudent,
	})
	if err != nil {
		conn.WriteError(response.GetMessage(response.ErrSignalingFailure))
		return
	}
	conn.WriteTyped(ws.SuccessResponse{Event: ws.EventSuccess, Action: ws.ActionSignal})
}
