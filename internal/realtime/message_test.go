package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Suraj08344/examproct-backend/internal/model"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
	}{
		{"join proctor", &JoinProctor{ExamID: "e1", ProctorName: "Dr. A"}},
		{"student started", &StudentStartedExam{StudentID: "s1", StudentName: "Alice", ExamID: "e1"}},
		{"progress", &StudentProgressUpdate{StudentID: "s1", Progress: 3, CurrentQuestion: 4, TimeRemaining: 900}},
		{"status change", &StudentStatusChange{StudentID: "s1", Status: model.MonitorCompleted}},
		{"student left", &StudentLeftExam{StudentID: "s1"}},
		{"session terminated", &StudentSessionTerminated{StudentID: "s1"}},
		{"proctor message", &ProctorMessageSent{
			StudentID: "s1",
			Type:      "warning",
			Message:   "Stay on the exam tab",
			Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Encode(tc.msg)
			require.NoError(t, err)
			require.Equal(t, tc.msg.MessageKind(), env.Kind)

			got, err := env.Decode()
			require.NoError(t, err)
			require.Equal(t, tc.msg, got)
		})
	}
}

func TestEncodeDecodeActivityEvent(t *testing.T) {
	msg := &StudentActivityDetected{Event: model.ProctorEvent{
		ID:          uuid.New(),
		StudentID:   "s1",
		StudentName: "Alice",
		Type:        model.EventTabSwitch,
		Severity:    model.SeverityMedium,
		Description: "Tab switch detected",
		Timestamp:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}

	env, err := Encode(msg)
	require.NoError(t, err)

	got, err := env.Decode()
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestEncodeDecodeWebRTCSignal(t *testing.T) {
	for _, kind := range []Kind{KindWebRTCOffer, KindWebRTCAnswer, KindWebRTCICECandidate} {
		t.Run(string(kind), func(t *testing.T) {
			msg := &WebRTCSignal{
				Signal:     kind,
				ExamID:     "e1",
				StudentID:  "s1",
				Payload:    json.RawMessage(`{"sdp":"v=0"}`),
				TargetRole: RoleProctor,
			}

			env, err := Encode(msg)
			require.NoError(t, err)
			require.Equal(t, kind, env.Kind)

			got, err := env.Decode()
			require.NoError(t, err)
			sig, ok := got.(*WebRTCSignal)
			require.True(t, ok)
			require.Equal(t, kind, sig.Signal)
			require.Equal(t, RoleProctor, sig.TargetRole)
			require.JSONEq(t, `{"sdp":"v=0"}`, string(sig.Payload))
		})
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	env := Envelope{Kind: "not-a-kind", Payload: json.RawMessage(`{}`)}
	_, err := env.Decode()
	require.Error(t, err)
}

func TestDecodeMalformedPayload(t *testing.T) {
	env := Envelope{Kind: KindStudentLeftExam, Payload: json.RawMessage(`{`)}
	_, err := env.Decode()
	require.Error(t, err)
}
