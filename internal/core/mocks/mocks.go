package mocks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lorrc/status-relay/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockBroadcaster is a mock implementation of ports.Broadcaster
type MockBroadcaster struct {
	mock.Mock
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) Broadcast(room string, payload json.RawMessage) error {
	args := m.Called(room, payload)
	return args.Error(0)
}

// MockRegistry is a mock implementation of ports.Registry
type MockRegistry struct {
	mock.Mock
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{}
}

func (m *MockRegistry) Join(room string, sub ports.Subscriber) {
	m.Called(room, sub)
}

func (m *MockRegistry) Leave(room string, sub ports.Subscriber) {
	m.Called(room, sub)
}

func (m *MockRegistry) MembersOf(room string) []ports.Subscriber {
	args := m.Called(room)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]ports.Subscriber)
}

func (m *MockRegistry) RemoveEverywhere(sub ports.Subscriber) {
	m.Called(sub)
}

func (m *MockRegistry) RoomCount() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockRegistry) MemberCount(room string) int {
	args := m.Called(room)
	return args.Int(0)
}

// MockSubscriber is a mock implementation of ports.Subscriber
type MockSubscriber struct {
	mock.Mock

	id uuid.UUID
}

func NewMockSubscriber() *MockSubscriber {
	return &MockSubscriber{id: uuid.New()}
}

func (m *MockSubscriber) ID() uuid.UUID {
	return m.id
}

func (m *MockSubscriber) Deliver(message []byte) error {
	args := m.Called(message)
	return args.Error(0)
}
