package relay_test

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/status-relay/internal/core/ports"
	"github.com/lorrc/status-relay/internal/core/relay"
)

// stubSubscriber is a minimal in-memory subscriber for registry and engine
// tests. Delivered messages land on a buffered channel; a failing stub
// rejects every delivery.
type stubSubscriber struct {
	id        uuid.UUID
	failing   bool
	delivered chan []byte
}

func newStubSubscriber() *stubSubscriber {
	return &stubSubscriber{
		id:        uuid.New(),
		delivered: make(chan []byte, 32),
	}
}

func newFailingSubscriber() *stubSubscriber {
	sub := newStubSubscriber()
	sub.failing = true
	return sub
}

func (s *stubSubscriber) ID() uuid.UUID {
	return s.id
}

func (s *stubSubscriber) Deliver(message []byte) error {
	if s.failing {
		return errors.New("connection broken")
	}
	s.delivered <- message
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_Join(t *testing.T) {
	t.Run("creates room on first join", func(t *testing.T) {
		registry := relay.NewRegistry(testLogger())
		sub := newStubSubscriber()

		registry.Join("org_1_update", sub)

		assert.Equal(t, 1, registry.RoomCount())
		assert.Equal(t, 1, registry.MemberCount("org_1_update"))
	})

	t.Run("rejoining is a no-op", func(t *testing.T) {
		registry := relay.NewRegistry(testLogger())
		sub := newStubSubscriber()

		registry.Join("org_1_update", sub)
		registry.Join("org_1_update", sub)

		assert.Equal(t, 1, registry.MemberCount("org_1_update"))
	})

	t.Run("distinct subscribers share a room", func(t *testing.T) {
		registry := relay.NewRegistry(testLogger())

		registry.Join("org_1_update", newStubSubscriber())
		registry.Join("org_1_update", newStubSubscriber())

		assert.Equal(t, 1, registry.RoomCount())
		assert.Equal(t, 2, registry.MemberCount("org_1_update"))
	})
}

func TestRegistry_Leave(t *testing.T) {
	t.Run("removes the member and deletes the empty room", func(t *testing.T) {
		registry := relay.NewRegistry(testLogger())
		sub := newStubSubscriber()

		registry.Join("org_1_update", sub)
		registry.Leave("org_1_update", sub)

		assert.Equal(t, 0, registry.RoomCount())
		assert.Empty(t, registry.MembersOf("org_1_update"))
	})

	t.Run("leaving a never-joined room is a no-op", func(t *testing.T) {
		registry := relay.NewRegistry(testLogger())
		member := newStubSubscriber()
		stranger := newStubSubscriber()

		registry.Join("org_1_update", member)
		registry.Leave("org_1_update", stranger)
		registry.Leave("no_such_room", stranger)

		assert.Equal(t, 1, registry.MemberCount("org_1_update"))
	})
}

func TestRegistry_MembersOf(t *testing.T) {
	t.Run("returns a snapshot, not the live set", func(t *testing.T) {
		registry := relay.NewRegistry(testLogger())
		sub := newStubSubscriber()
		registry.Join("org_1_update", sub)

		snapshot := registry.MembersOf("org_1_update")
		require.Len(t, snapshot, 1)

		// Mutating the registry must not affect the snapshot.
		registry.Leave("org_1_update", sub)
		assert.Len(t, snapshot, 1)
		assert.Equal(t, 0, registry.MemberCount("org_1_update"))
	})

	t.Run("unknown room yields no members", func(t *testing.T) {
		registry := relay.NewRegistry(testLogger())
		assert.Empty(t, registry.MembersOf("no_such_room"))
	})
}

func TestRegistry_RemoveEverywhere(t *testing.T) {
	registry := relay.NewRegistry(testLogger())
	leaving := newStubSubscriber()
	staying := newStubSubscriber()

	registry.Join("org_1_update", leaving)
	registry.Join("org_1_incident_2_update", leaving)
	registry.Join("org_1_update", staying)

	registry.RemoveEverywhere(leaving)

	assert.Equal(t, 1, registry.MemberCount("org_1_update"))
	assert.Equal(t, 0, registry.MemberCount("org_1_incident_2_update"))
	require.Len(t, registry.MembersOf("org_1_update"), 1)
	assert.Equal(t, staying.ID(), registry.MembersOf("org_1_update")[0].ID())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := relay.NewRegistry(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := newStubSubscriber()
			for j := 0; j < 100; j++ {
				registry.Join("org_1_update", sub)
				registry.MembersOf("org_1_update")
				registry.Leave("org_1_update", sub)
				registry.RemoveEverywhere(sub)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, registry.RoomCount())
}

var _ ports.Subscriber = (*stubSubscriber)(nil)
