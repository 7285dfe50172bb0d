package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/Suraj08344/examproct-backend/internal/config"
)

// bridgeFrame is the wire form carried over Redis PubSub: the room the
// envelope belongs to plus the envelope itself.
type bridgeFrame struct {
	Room     string   `json:"room"`
	Envelope Envelope `json:"envelope"`
}

// RedisBridge mirrors hub traffic over Redis PubSub so rooms span
// server instances. Outbound envelopes are stamped with this
// instance's ID; inbound frames carrying our own ID are discarded to
// avoid local redelivery.
type RedisBridge struct {
	rdb        *redis.Client
	hub        *Hub
	instanceID string
	log        zerolog.Logger
}

// NewRedisBridge attaches a bridge to the hub. Call Run to start
// consuming remote traffic.
func NewRedisBridge(rdb *redis.Client, hub *Hub, log zerolog.Logger) *RedisBridge {
	b := &RedisBridge{
		rdb:        rdb,
		hub:        hub,
		instanceID: uuid.New().String(),
		log:        log.With().Str("component", "redis_bridge").Logger(),
	}
	hub.setForwarder(b.publish)
	return b
}

// publish pushes a locally-published envelope onto the exam's Redis
// channel. Failures are absorbed: cross-instance fanout is best-effort
// by the channel's delivery contract.
func (b *RedisBridge) publish(room string, env Envelope) {
	examID := examIDFromRoom(room)
	if examID == "" {
		return
	}

	env.Origin = b.instanceID
	frame, err := json.Marshal(bridgeFrame{Room: room, Envelope: env})
	if err != nil {
		b.log.Error().Err(err).Str("room", room).Msg("Frame encode failed")
		return
	}

	if err := b.rdb.Publish(context.Background(), config.CacheKey.ExamRoomChannel(examID), frame).Err(); err != nil {
		b.log.Warn().Err(err).Str("room", room).Msg("Redis publish failed")
	}
}

// Run consumes remote room traffic until ctx is canceled. Call in a
// goroutine.
func (b *RedisBridge) Run(ctx context.Context) {
	pubsub := b.rdb.PSubscribe(ctx, config.CacheKey.ExamRoomChannel("*"))
	defer pubsub.Close()

	b.log.Info().Str("instance_id", b.instanceID).Msg("Bridge started")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("Bridge stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame bridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				b.log.Error().Err(err).Msg("Discarding malformed frame")
				continue
			}
			if frame.Envelope.Origin == b.instanceID {
				continue // our own echo
			}
			b.hub.deliver(frame.Room, frame.Envelope)
		}
	}
}

// examIDFromRoom extracts the exam ID from a room name of the form
// "exam:<id>:…".
func examIDFromRoom(room string) string {
	parts := strings.SplitN(room, ":", 3)
	if len(parts) < 3 || parts[0] != "exam" {
		return ""
	}
	return parts[1]
}
