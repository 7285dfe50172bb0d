package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func recvEnvelope(t *testing.T, sub *Subscription) Envelope {
	t.Helper()
	select {
	case env := <-sub.C:
		return env
	case <-time.After(time.Second):
		t.Fatal("no envelope received")
		return Envelope{}
	}
}

func TestPublishReachesRoomMembers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	room := ProctorRoom("exam-1")

	a := hub.Subscribe(room)
	defer a.Cancel()
	b := hub.Subscribe(room)
	defer b.Cancel()

	require.NoError(t, hub.Publish(room, &StudentLeftExam{StudentID: "s1"}))

	for _, sub := range []*Subscription{a, b} {
		env := recvEnvelope(t, sub)
		require.Equal(t, KindStudentLeftExam, env.Kind)
	}
}

func TestPublishScopedToRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	proctors := hub.Subscribe(ProctorRoom("exam-1"))
	defer proctors.Cancel()
	other := hub.Subscribe(StudentRoom("exam-1", "s1"))
	defer other.Cancel()

	require.NoError(t, hub.Publish(ProctorRoom("exam-1"), &StudentLeftExam{StudentID: "s1"}))

	recvEnvelope(t, proctors)
	select {
	case env := <-other.C:
		t.Fatalf("unexpected delivery to student room: %v", env.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCanceledSubscriptionStopsReceiving(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	room := ProctorRoom("exam-1")

	sub := hub.Subscribe(room)
	sub.Cancel()

	// Channel closes on cancel; publishing afterwards must not panic.
	_, open := <-sub.C
	require.False(t, open)
	require.NoError(t, hub.Publish(room, &StudentLeftExam{StudentID: "s1"}))

	// Cancel is idempotent.
	sub.Cancel()
}

func TestFullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	room := ProctorRoom("exam-1")

	sub := hub.Subscribe(room)
	defer sub.Cancel()

	// Overfill the buffer; Publish must never block the publisher.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultBufferSize*2; i++ {
			hub.Publish(room, &StudentLeftExam{StudentID: "s1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	require.NotZero(t, hub.Dropped())
}

func TestConcurrentPublishAndCancel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	room := ProctorRoom("exam-1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sub := hub.Subscribe(room)
		wg.Add(2)
		go func(s *Subscription) {
			defer wg.Done()
			for range s.C {
			}
		}(sub)
		go func(s *Subscription) {
			defer wg.Done()
			s.Cancel()
		}(sub)
	}

	for i := 0; i < 100; i++ {
		require.NoError(t, hub.Publish(room, &StudentLeftExam{StudentID: "s1"}))
	}
	wg.Wait()
}

func TestForwarderSeesPublishedEnvelopes(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	var mu sync.Mutex
	var rooms []string
	hub.setForwarder(func(room string, env Envelope) {
		mu.Lock()
		rooms = append(rooms, room)
		mu.Unlock()
	})

	require.NoError(t, hub.Publish(ProctorRoom("exam-1"), &StudentLeftExam{StudentID: "s1"}))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{ProctorRoom("exam-1")}, rooms)
}
