package ports

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Subscriber is a live client connection that can receive room broadcasts.
// Delivery is best-effort: an error means the subscriber is no longer
// reachable and should be pruned from the room.
type Subscriber interface {
	ID() uuid.UUID
	Deliver(message []byte) error
}

// Registry is the authoritative store of room membership. It must be safe
// for concurrent use from all connection handlers and the broadcast engine.
type Registry interface {
	// Join adds the subscriber to the room, creating the room on first join.
	// Re-joining an already-joined room is a no-op.
	Join(room string, sub Subscriber)

	// Leave removes the subscriber from the room. Leaving a room the
	// subscriber never joined is a no-op.
	Leave(room string, sub Subscriber)

	// MembersOf returns a snapshot of the room's current members. The
	// returned slice is a copy; mutating it does not affect the registry.
	MembersOf(room string) []Subscriber

	// RemoveEverywhere removes the subscriber from every room it had
	// joined. Called on disconnect.
	RemoveEverywhere(sub Subscriber)

	// RoomCount returns the number of rooms with at least one member.
	RoomCount() int

	// MemberCount returns the number of members in a room.
	MemberCount(room string) int
}

// Broadcaster fans a payload out to every subscriber of a room.
type Broadcaster interface {
	Broadcast(room string, payload json.RawMessage) error
}
