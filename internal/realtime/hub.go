package realtime

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const defaultBufferSize = 64

// ProctorRoom names the room carrying one exam's proctor-bound traffic.
func ProctorRoom(examID string) string {
	return fmt.Sprintf("exam:%s:proctors", examID)
}

// StudentRoom names the room carrying traffic addressed to one student.
func StudentRoom(examID, studentID string) string {
	return fmt.Sprintf("exam:%s:student:%s", examID, studentID)
}

// Subscription is a live room membership. Receive on C until Cancel
// is called; after Cancel the channel is closed and no further
// messages arrive.
type Subscription struct {
	C chan Envelope

	once   sync.Once
	cancel func()
}

// Cancel removes the subscription from its room and closes C. Safe to
// call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Hub is the in-process realtime channel. Delivery is at-most-once:
// a subscriber whose buffer is full misses the message. Ordering is
// preserved per publisher only; consumers must tolerate loss,
// reordering across publishers, and duplicates from redelivery.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Subscription]struct{}
	forward func(room string, env Envelope)
	dropped atomic.Uint64
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Subscription]struct{}),
		log:   log.With().Str("component", "realtime_hub").Logger(),
	}
}

// Subscribe joins a room. The returned subscription must be canceled
// when the consumer's lifetime ends, or the room leaks members.
func (h *Hub) Subscribe(room string) *Subscription {
	sub := &Subscription{C: make(chan Envelope, defaultBufferSize)}
	sub.cancel = func() {
		// Closing under the write lock excludes in-flight deliveries,
		// which send while holding the read lock.
		h.mu.Lock()
		defer h.mu.Unlock()
		if members, ok := h.rooms[room]; ok {
			delete(members, sub)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
		close(sub.C)
	}

	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Subscription]struct{})
		h.rooms[room] = members
	}
	members[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Publish encodes a message and delivers it to every current room
// member, then hands it to the cross-instance forwarder if one is
// attached.
func (h *Hub) Publish(room string, msg Message) error {
	env, err := Encode(msg)
	if err != nil {
		return err
	}

	h.deliver(room, env)

	h.mu.RLock()
	forward := h.forward
	h.mu.RUnlock()
	if forward != nil {
		forward(room, env)
	}
	return nil
}

// deliver fans an envelope out to local room members. Sends are
// non-blocking, so holding the read lock across the loop is cheap and
// keeps Cancel from closing a channel mid-send.
func (h *Hub) deliver(room string, env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[room] {
		select {
		case sub.C <- env:
		default:
			// Slow consumer: at-most-once delivery, drop.
			h.dropped.Inc()
			h.log.Debug().Str("room", room).Str("kind", string(env.Kind)).Msg("Dropped message for slow subscriber")
		}
	}
}

// setForwarder installs the cross-instance outbound hook. Used by the
// Redis bridge.
func (h *Hub) setForwarder(fn func(room string, env Envelope)) {
	h.mu.Lock()
	h.forward = fn
	h.mu.Unlock()
}

// Dropped reports how many messages were discarded for slow
// subscribers since startup.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
