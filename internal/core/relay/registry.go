package relay

import (
	"log/slog"
	"sync"

	"github.com/lorrc/status-relay/internal/core/ports"
)

// Registry maintains the authoritative mapping of room names to their
// subscribed clients. Rooms are created on first join and deleted when
// their last member leaves.
type Registry struct {
	// rooms maps room names to subscriber sets
	rooms map[string]map[ports.Subscriber]bool

	// mu protects the rooms map
	mu sync.RWMutex

	// logger for the registry
	logger *slog.Logger
}

// Ensure Registry implements the ports.Registry interface.
var _ ports.Registry = (*Registry)(nil)

// NewRegistry creates an empty room registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]map[ports.Subscriber]bool),
		logger: logger.With("component", "room_registry"),
	}
}

// Join adds a subscriber to a room, creating the room entry if absent.
// Re-joining an already-joined room is a no-op.
func (r *Registry) Join(room string, sub ports.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[ports.Subscriber]bool)
	}
	r.rooms[room][sub] = true

	r.logger.Debug("subscriber joined room",
		"room", room,
		"subscriber_id", sub.ID(),
		"member_count", len(r.rooms[room]),
	)
}

// Leave removes a subscriber from a room. A no-op if the subscriber was
// never a member or the room does not exist. Empty rooms are deleted.
func (r *Registry) Leave(room string, sub ports.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(room, sub)
}

// MembersOf returns a snapshot of a room's current members. Callers may
// iterate and send without holding any registry lock.
func (r *Registry) MembersOf(room string) []ports.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}

	snapshot := make([]ports.Subscriber, 0, len(members))
	for sub := range members {
		snapshot = append(snapshot, sub)
	}
	return snapshot
}

// RemoveEverywhere removes a subscriber from every room it had joined.
// Room cardinality is expected to stay small, so a full scan is fine here.
func (r *Registry) RemoveEverywhere(sub ports.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room, members := range r.rooms {
		if members[sub] {
			r.removeLocked(room, sub)
		}
	}

	r.logger.Debug("subscriber removed from all rooms", "subscriber_id", sub.ID())
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// MemberCount returns the number of members in a room.
func (r *Registry) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// removeLocked deletes a membership entry. Caller must hold the write lock.
func (r *Registry) removeLocked(room string, sub ports.Subscriber) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	if _, exists := members[sub]; !exists {
		return
	}

	delete(members, sub)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	r.logger.Debug("subscriber left room",
		"room", room,
		"subscriber_id", sub.ID(),
	)
}
