package signaling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Suraj08344/examproct-backend/internal/realtime"
)

func newTestRelay() (*Relay, *realtime.Hub) {
	hub := realtime.NewHub(zerolog.Nop())
	return NewRelay(hub, zerolog.Nop()), hub
}

func signal(kind realtime.Kind, target realtime.Role) *realtime.WebRTCSignal {
	return &realtime.WebRTCSignal{
		Signal:     kind,
		ExamID:     "e1",
		StudentID:  "s1",
		Payload:    json.RawMessage(`{"sdp":"v=0"}`),
		TargetRole: target,
	}
}

func expectSignal(t *testing.T, sub *realtime.Subscription, kind realtime.Kind) *realtime.WebRTCSignal {
	t.Helper()
	select {
	case env := <-sub.C:
		require.Equal(t, kind, env.Kind)
		msg, err := env.Decode()
		require.NoError(t, err)
		sig, ok := msg.(*realtime.WebRTCSignal)
		require.True(t, ok)
		return sig
	case <-time.After(time.Second):
		t.Fatal("no signal delivered")
		return nil
	}
}

func TestForwardRoutesByTargetRole(t *testing.T) {
	relay, hub := newTestRelay()

	student := hub.Subscribe(realtime.StudentRoom("e1", "s1"))
	defer student.Cancel()
	proctor := hub.Subscribe(realtime.ProctorRoom("e1"))
	defer proctor.Cancel()

	require.NoError(t, relay.Forward(signal(realtime.KindWebRTCOffer, realtime.RoleStudent)))
	sig := expectSignal(t, student, realtime.KindWebRTCOffer)
	require.Equal(t, "s1", sig.StudentID)

	require.NoError(t, relay.Forward(signal(realtime.KindWebRTCAnswer, realtime.RoleProctor)))
	expectSignal(t, proctor, realtime.KindWebRTCAnswer)

	// Neither leg leaks to the other side.
	select {
	case env := <-student.C:
		t.Fatalf("answer leaked to student room: %v", env.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestForwardPayloadUntouched(t *testing.T) {
	relay, hub := newTestRelay()

	sub := hub.Subscribe(realtime.StudentRoom("e1", "s1"))
	defer sub.Cancel()

	in := signal(realtime.KindWebRTCICECandidate, realtime.RoleStudent)
	in.Payload = json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 192.0.2.1 54400 typ host"}`)
	require.NoError(t, relay.Forward(in))

	out := expectSignal(t, sub, realtime.KindWebRTCICECandidate)
	require.JSONEq(t, string(in.Payload), string(out.Payload))
}

func TestForwardRejectsNonSignalKinds(t *testing.T) {
	relay, _ := newTestRelay()

	sig := signal(realtime.KindStudentLeftExam, realtime.RoleProctor)
	err := relay.Forward(sig)
	require.ErrorIs(t, err, ErrNotSignal)
}

func TestForwardRejectsMissingAddressing(t *testing.T) {
	relay, _ := newTestRelay()

	noExam := signal(realtime.KindWebRTCOffer, realtime.RoleProctor)
	noExam.ExamID = ""
	require.ErrorIs(t, relay.Forward(noExam), ErrMissingAddress)

	noStudent := signal(realtime.KindWebRTCOffer, realtime.RoleProctor)
	noStudent.StudentID = ""
	require.ErrorIs(t, relay.Forward(noStudent), ErrMissingAddress)
}

func TestForwardRejectsUnknownRole(t *testing.T) {
	relay, _ := newTestRelay()

	sig := signal(realtime.KindWebRTCOffer, realtime.Role("observer"))
	require.ErrorIs(t, relay.Forward(sig), ErrUnknownRole)
}

func TestOfferTracksBinding(t *testing.T) {
	relay, _ := newTestRelay()

	_, ok := relay.Binding("e1", "s1")
	require.False(t, ok)

	require.NoError(t, relay.Forward(signal(realtime.KindWebRTCOffer, realtime.RoleStudent)))
	first, ok := relay.Binding("e1", "s1")
	require.True(t, ok)
	require.Equal(t, "s1", first.StudentID)

	// ICE candidates never create or touch bindings.
	require.NoError(t, relay.Forward(signal(realtime.KindWebRTCICECandidate, realtime.RoleStudent)))

	// A second offer replaces the prior binding.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, relay.Forward(signal(realtime.KindWebRTCOffer, realtime.RoleStudent)))
	second, ok := relay.Binding("e1", "s1")
	require.True(t, ok)
	require.True(t, second.OfferedAt.After(first.OfferedAt))
}

func TestDropBinding(t *testing.T) {
	relay, _ := newTestRelay()

	require.NoError(t, relay.Forward(signal(realtime.KindWebRTCOffer, realtime.RoleStudent)))
	relay.DropBinding("e1", "s1")
	_, ok := relay.Binding("e1", "s1")
	require.False(t, ok)

	// Dropping an unknown pair is a no-op.
	relay.DropBinding("e1", "s2")
	relay.DropBinding("e9", "s1")
}

func TestDropExamClearsAllBindings(t *testing.T) {
	relay, _ := newTestRelay()

	for _, sid := range []string{"s1", "s2"} {
		sig := signal(realtime.KindWebRTCOffer, realtime.RoleStudent)
		sig.StudentID = sid
		require.NoError(t, relay.Forward(sig))
	}

	relay.DropExam("e1")
	for _, sid := range []string{"s1", "s2"} {
		_, ok := relay.Binding("e1", sid)
		require.False(t, ok)
	}
}
