// Package signaling relays peer-connection negotiation messages
// (offer, answer, ICE candidate) between the proctor and student sides
// of one (exam, student) pair. The relay performs no negotiation
// logic, never terminates a peer connection, and never inspects the
// payload beyond its addressing fields.
package signaling

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/Suraj08344/examproct-backend/internal/model"
	"github.com/Suraj08344/examproct-backend/internal/realtime"
)

// Relay errors.
var (
	ErrNotSignal      = errors.New("message is not a signaling kind")
	ErrMissingAddress = errors.New("signal missing exam or student addressing")
	ErrUnknownRole    = errors.New("unknown signal target role")
)

// Relay is a stateless pass-through for negotiation traffic. The only
// state it keeps is the per-student PeerConnectionBinding table, used
// to enforce one tracked peer connection per student at a time.
type Relay struct {
	hub *realtime.Hub
	log zerolog.Logger

	mu       sync.Mutex
	bindings map[string]map[string]model.PeerConnectionBinding // examID → studentID
}

// NewRelay creates a relay publishing through the given hub.
func NewRelay(hub *realtime.Hub, log zerolog.Logger) *Relay {
	return &Relay{
		hub:      hub,
		log:      log.With().Str("component", "signaling_relay").Logger(),
		bindings: make(map[string]map[string]model.PeerConnectionBinding),
	}
}

// Forward routes a signal verbatim to the other party of its
// (exam, student) pair. An incoming offer for a student that already
// has a bound connection replaces the prior binding; there is no
// multiplexed renegotiation handling.
func (r *Relay) Forward(sig *realtime.WebRTCSignal) error {
	switch sig.Signal {
	case realtime.KindWebRTCOffer, realtime.KindWebRTCAnswer, realtime.KindWebRTCICECandidate:
	default:
		return fmt.Errorf("%w: %q", ErrNotSignal, sig.Signal)
	}
	if sig.ExamID == "" || sig.StudentID == "" {
		return ErrMissingAddress
	}

	if sig.Signal == realtime.KindWebRTCOffer {
		r.bind(sig.ExamID, sig.StudentID)
	}

	var room string
	switch sig.TargetRole {
	case realtime.RoleStudent:
		room = realtime.StudentRoom(sig.ExamID, sig.StudentID)
	case realtime.RoleProctor:
		room = realtime.ProctorRoom(sig.ExamID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRole, sig.TargetRole)
	}

	if err := r.hub.Publish(room, sig); err != nil {
		return fmt.Errorf("forward %s: %w", sig.Signal, err)
	}
	return nil
}

// Binding returns the tracked peer connection for a student, if any.
func (r *Relay) Binding(examID, studentID string) (model.PeerConnectionBinding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[examID][studentID]
	return b, ok
}

// DropBinding discards a student's negotiation context. Called when
// the student's monitor record is removed.
func (r *Relay) DropBinding(examID, studentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if perExam, ok := r.bindings[examID]; ok {
		delete(perExam, studentID)
		if len(perExam) == 0 {
			delete(r.bindings, examID)
		}
	}
}

// DropExam discards every binding for an exam. Called when the
// operator leaves the room.
func (r *Relay) DropExam(examID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, examID)
}

func (r *Relay) bind(examID, studentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perExam, ok := r.bindings[examID]
	if !ok {
		perExam = make(map[string]model.PeerConnectionBinding)
		r.bindings[examID] = perExam
	}
	if _, replaced := perExam[studentID]; replaced {
		r.log.Debug().Str("exam_id", examID).Str("student_id", studentID).Msg("Replacing peer binding")
	}
	perExam[studentID] = model.PeerConnectionBinding{
		StudentID: studentID,
		OfferedAt: time.Now().UTC(),
	}
}
