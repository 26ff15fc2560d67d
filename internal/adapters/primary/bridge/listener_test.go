package bridge_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/status-relay/internal/adapters/primary/bridge"
	"github.com/lorrc/status-relay/internal/core/mocks"
	"github.com/lorrc/status-relay/internal/core/relay"
	"github.com/lorrc/status-relay/relayclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startListener(t *testing.T, broadcaster *mocks.MockBroadcaster) *bridge.Listener {
	t.Helper()

	listener := bridge.New(bridge.Config{
		Addr:            "127.0.0.1:0",
		ReadTimeout:     2 * time.Second,
		MaxRequestBytes: 64 * 1024,
	}, broadcaster, testLogger())

	require.NoError(t, listener.Start())
	t.Cleanup(func() { _ = listener.Shutdown() })

	return listener
}

// roundTrip sends one raw request and returns the full reply.
func roundTrip(t *testing.T, addr string, request []byte) string {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Write(request)
	require.NoError(t, err)

	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(reply)
}

func TestListener_ValidRequest(t *testing.T) {
	broadcaster := mocks.NewMockBroadcaster()

	var got json.RawMessage
	broadcaster.On("Broadcast", "org_1_update", mock.Anything).
		Run(func(args mock.Arguments) {
			got = args.Get(1).(json.RawMessage)
		}).
		Return(nil)

	listener := startListener(t, broadcaster)

	reply := roundTrip(t, listener.Addr(), []byte(`{"room":"org_1_update","data":{"type":"service_updated","id":7}}`))

	assert.Equal(t, "ok", reply)
	broadcaster.AssertExpectations(t)
	assert.JSONEq(t, `{"type":"service_updated","id":7}`, string(got))
}

func TestListener_MissingRoom(t *testing.T) {
	broadcaster := mocks.NewMockBroadcaster()
	listener := startListener(t, broadcaster)

	reply := roundTrip(t, listener.Addr(), []byte(`{"data":{"type":"service_updated"}}`))

	assert.Equal(t, "room is required", reply)
	broadcaster.AssertNotCalled(t, "Broadcast")
}

func TestListener_MalformedJSON(t *testing.T) {
	broadcaster := mocks.NewMockBroadcaster()
	listener := startListener(t, broadcaster)

	reply := roundTrip(t, listener.Addr(), []byte(`{not json`))

	assert.NotEqual(t, "ok", reply)
	assert.NotEmpty(t, reply)
	broadcaster.AssertNotCalled(t, "Broadcast")
}

func TestListener_SurvivesBadRequests(t *testing.T) {
	broadcaster := mocks.NewMockBroadcaster()
	broadcaster.On("Broadcast", "org_1_update", mock.Anything).Return(nil)
	listener := startListener(t, broadcaster)

	// A malformed request fails its own connection only.
	roundTrip(t, listener.Addr(), []byte(`garbage`))

	// The next caller still gets served.
	reply := roundTrip(t, listener.Addr(), []byte(`{"room":"org_1_update","data":1}`))
	assert.Equal(t, "ok", reply)
}

// chanSubscriber collects deliveries for end-to-end assertions.
type chanSubscriber struct {
	id        uuid.UUID
	delivered chan []byte
}

func (s *chanSubscriber) ID() uuid.UUID { return s.id }

func (s *chanSubscriber) Deliver(message []byte) error {
	s.delivered <- message
	return nil
}

// TestListener_EndToEnd drives the full producer path: the relayclient
// notifies the bridge, the bridge triggers the broadcast engine, and a
// subscribed session receives the wrapped event.
func TestListener_EndToEnd(t *testing.T) {
	logger := testLogger()
	registry := relay.NewRegistry(logger)
	engine := relay.NewEngine(registry, logger)
	go engine.Run()

	listener := bridge.New(bridge.Config{
		Addr:            "127.0.0.1:0",
		ReadTimeout:     2 * time.Second,
		MaxRequestBytes: 64 * 1024,
	}, engine, logger)
	require.NoError(t, listener.Start())
	t.Cleanup(func() { _ = listener.Shutdown() })

	sub := &chanSubscriber{id: uuid.New(), delivered: make(chan []byte, 8)}
	registry.Join("org_1_update", sub)

	producer := relayclient.New(listener.Addr(), 0, logger)
	err := producer.Notify(context.Background(), "org_1_update", map[string]any{
		"type": "service_updated",
		"id":   7,
	})
	require.NoError(t, err)

	select {
	case message := <-sub.delivered:
		assert.JSONEq(t,
			`{"room":"org_1_update","message":{"type":"service_updated","id":7}}`,
			string(message),
		)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestListener_Shutdown(t *testing.T) {
	broadcaster := mocks.NewMockBroadcaster()
	listener := startListener(t, broadcaster)
	addr := listener.Addr()

	require.True(t, listener.Serving())
	require.NoError(t, listener.Shutdown())
	assert.False(t, listener.Serving())

	_, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	assert.Error(t, err)
}
