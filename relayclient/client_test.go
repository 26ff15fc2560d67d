package relayclient_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/status-relay/relayclient"
)

// stubBridge accepts one connection at a time, records the request, and
// answers with the configured reply.
type stubBridge struct {
	ln       net.Listener
	reply    string
	requests chan []byte
}

func newStubBridge(t *testing.T, reply string) *stubBridge {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	bridge := &stubBridge{
		ln:       ln,
		reply:    reply,
		requests: make(chan []byte, 8),
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
				buf := make([]byte, 64*1024)
				n, err := conn.Read(buf)
				if err != nil {
					return
				}
				bridge.requests <- buf[:n]
				_, _ = conn.Write([]byte(bridge.reply))
			}(conn)
		}
	}()

	return bridge
}

func (b *stubBridge) addr() string {
	return b.ln.Addr().String()
}

func (b *stubBridge) nextRequest(t *testing.T) []byte {
	t.Helper()
	select {
	case request := <-b.requests:
		return request
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bridge request")
		return nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Notify(t *testing.T) {
	t.Run("sends the wrapped event and accepts ok", func(t *testing.T) {
		bridge := newStubBridge(t, "ok")
		client := relayclient.New(bridge.addr(), 0, testLogger())

		err := client.Notify(context.Background(), "org_1_update", map[string]any{
			"type": "service_updated",
			"id":   7,
		})

		require.NoError(t, err)
		assert.JSONEq(t,
			`{"room":"org_1_update","data":{"type":"service_updated","id":7}}`,
			string(bridge.nextRequest(t)),
		)
	})

	t.Run("surfaces a rejection reply", func(t *testing.T) {
		bridge := newStubBridge(t, "room is required")
		client := relayclient.New(bridge.addr(), 0, testLogger())

		err := client.Notify(context.Background(), "org_1_update", 1)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "room is required")
	})

	t.Run("requires a room", func(t *testing.T) {
		client := relayclient.New("127.0.0.1:1", 0, testLogger())

		err := client.Notify(context.Background(), "", 1)

		assert.Error(t, err)
	})

	t.Run("fails fast when the relay is unreachable", func(t *testing.T) {
		// Bind and immediately close to get a port with no listener.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		client := relayclient.New(addr, 200*time.Millisecond, testLogger())

		err = client.Notify(context.Background(), "org_1_update", 1)
		assert.Error(t, err)
	})
}

func TestClient_NotifyAsync(t *testing.T) {
	t.Run("delivers in the background", func(t *testing.T) {
		bridge := newStubBridge(t, "ok")
		client := relayclient.New(bridge.addr(), 0, testLogger())

		client.NotifyAsync("org_1_update", map[string]any{"type": "incident_created"})

		assert.JSONEq(t,
			`{"room":"org_1_update","data":{"type":"incident_created"}}`,
			string(bridge.nextRequest(t)),
		)
	})

	t.Run("never propagates failures", func(t *testing.T) {
		client := relayclient.New("127.0.0.1:1", 100*time.Millisecond, testLogger())

		// Must not panic or block the caller.
		client.NotifyAsync("org_1_update", 1)
	})
}

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "org_1_update", relayclient.OrgUpdateRoom(1))
	assert.Equal(t, "org_1_incident_2_update", relayclient.OrgIncidentRoom(1, 2))
}
