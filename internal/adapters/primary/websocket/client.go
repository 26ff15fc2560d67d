package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lorrc/status-relay/internal/core/domain"
	apperrors "github.com/lorrc/status-relay/internal/core/errors"
	"github.com/lorrc/status-relay/internal/core/ports"
)

// Options holds per-connection tuning for a Client.
type Options struct {
	// SendBufferSize is the capacity of the outbound message channel.
	SendBufferSize int

	// MaxMessageBytes limits the size of inbound messages.
	MaxMessageBytes int64

	// PingInterval is how often pings are sent. Must be less than PongWait.
	PingInterval time.Duration

	// PongWait is how long to wait for a pong before dropping the peer.
	PongWait time.Duration

	// WriteWait is the time allowed to write a message to the peer.
	WriteWait time.Duration
}

// DefaultOptions returns sensible connection defaults.
func DefaultOptions() Options {
	return Options{
		SendBufferSize:  256,
		MaxMessageBytes: 4096,
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
	}
}

// Client is one live connection and its room-membership lifecycle. It reads
// JSON commands from the peer, applies them to the registry, and pushes
// broadcasts queued on its send channel back to the peer.
type Client struct {
	// id uniquely identifies this connection
	id uuid.UUID

	// conn is the underlying websocket connection
	conn *websocket.Conn

	// send is the buffered channel of outbound wire messages
	send chan []byte

	registry    ports.Registry
	broadcaster ports.Broadcaster

	opts Options

	// mu guards closed; closeOnce ensures send is closed exactly once
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	// logger for this client
	logger *slog.Logger
}

// Ensure Client implements the ports.Subscriber interface.
var _ ports.Subscriber = (*Client)(nil)

// NewClient creates a client for an upgraded websocket connection.
func NewClient(
	conn *websocket.Conn,
	registry ports.Registry,
	broadcaster ports.Broadcaster,
	opts Options,
	logger *slog.Logger,
) *Client {
	id := uuid.New()
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, opts.SendBufferSize),
		registry:    registry,
		broadcaster: broadcaster,
		opts:        opts,
		logger:      logger.With("session_id", id.String()),
	}
}

// ID returns the connection's unique handle.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Deliver queues a wire message for the peer. It never blocks: a full send
// buffer or a closed connection reports an error so the broadcast engine
// can prune this subscriber.
func (c *Client) Deliver(message []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return apperrors.ErrClientClosed
	}

	select {
	case c.send <- message:
		return nil
	default:
		return apperrors.ErrSendBufferFull
	}
}

// closeSend safely closes the send channel exactly once.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// ReadPump pumps commands from the websocket connection into the registry
// and broadcaster. This method runs in its own goroutine. Cleanup runs on
// every exit path: the session is removed from all rooms it had joined.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.RemoveEverywhere(c)
		c.closeSend()
		_ = c.conn.Close()
		c.logger.Info("client disconnected")
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleCommand(message)
	}
}

// WritePump pumps queued messages to the websocket connection and keeps the
// peer alive with periodic pings. This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The send channel was closed. Tell the peer goodbye.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// handleCommand processes one inbound client message. Malformed JSON gets
// an error reply and keeps the connection open. Unrecognized actions and
// commands without a room are deliberately ignored; subscribers that rely
// on the relay never depend on command acknowledgements.
func (c *Client) handleCommand(raw []byte) {
	var cmd domain.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.logger.Debug("invalid json from client", "error", err)
		c.reply(domain.ErrorReply{Error: "Invalid JSON"})
		return
	}

	if cmd.Room == "" {
		c.logger.Debug("ignoring command without room", "action", cmd.Action)
		return
	}

	switch cmd.Action {
	case domain.ActionJoin:
		c.registry.Join(cmd.Room, c)

	case domain.ActionLeave:
		c.registry.Leave(cmd.Room, c)

	case domain.ActionPublish:
		data := cmd.Data
		if data == nil {
			data = json.RawMessage(`""`)
		}
		_ = c.broadcaster.Broadcast(cmd.Room, data)

	default:
		c.logger.Debug("ignoring unrecognized action", "action", cmd.Action)
	}
}

// reply queues a control reply for this client only.
func (c *Client) reply(v any) {
	message, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to serialize reply", "error", err)
		return
	}

	if err := c.Deliver(message); err != nil {
		c.logger.Debug("dropping reply", "error", err)
	}
}
