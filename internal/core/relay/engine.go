package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/lorrc/status-relay/internal/core/domain"
	"github.com/lorrc/status-relay/internal/core/ports"
)

// queueSize bounds the number of undelivered broadcasts held in memory.
const queueSize = 256

// Engine delivers payloads to every subscriber of a room. Broadcasts are
// drained by a single goroutine, so subscribers in the same room observe
// messages in the order the engine accepted them.
type Engine struct {
	// registry is the source of truth for room membership
	registry ports.Registry

	// queue of pending broadcasts
	queue chan domain.Envelope

	// logger for the engine
	logger *slog.Logger
}

// Ensure Engine implements the ports.Broadcaster interface.
var _ ports.Broadcaster = (*Engine)(nil)

// NewEngine creates a broadcast engine backed by the given registry.
func NewEngine(registry ports.Registry, logger *slog.Logger) *Engine {
	return &Engine{
		registry: registry,
		queue:    make(chan domain.Envelope, queueSize),
		logger:   logger.With("component", "broadcast_engine"),
	}
}

// Broadcast enqueues a payload for delivery to every current member of the
// room. Delivery is best-effort; the call never blocks. A full queue drops
// the event with a warning rather than stalling the caller.
func (e *Engine) Broadcast(room string, payload json.RawMessage) error {
	select {
	case e.queue <- domain.Envelope{Room: room, Message: payload}:
		return nil
	default:
		e.logger.Warn("broadcast queue full, dropping event", "room", room)
		return nil
	}
}

// Run drains the broadcast queue. This MUST be run as a goroutine.
func (e *Engine) Run() {
	for env := range e.queue {
		e.deliver(env)
	}
}

// deliver pushes one envelope to every current member of its room and
// prunes members whose delivery failed.
func (e *Engine) deliver(env domain.Envelope) {
	members := e.registry.MembersOf(env.Room)
	if len(members) == 0 {
		return
	}

	// Serialize once for all recipients.
	wire, err := json.Marshal(env)
	if err != nil {
		e.logger.Error("failed to serialize envelope",
			"room", env.Room,
			"error", err,
		)
		return
	}

	e.logger.Debug("broadcasting",
		"room", env.Room,
		"member_count", len(members),
	)

	var failed []ports.Subscriber
	for _, sub := range members {
		if err := sub.Deliver(wire); err != nil {
			e.logger.Warn("delivery failed, pruning subscriber",
				"room", env.Room,
				"subscriber_id", sub.ID(),
				"error", err,
			)
			failed = append(failed, sub)
		}
	}

	// Prune after the delivery pass so one broken member never blocks
	// delivery to the rest.
	for _, sub := range failed {
		e.registry.Leave(env.Room, sub)
	}
}
