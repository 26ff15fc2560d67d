// Package relayclient is the producer-side client for the relay's internal
// bridge. The CRUD backend calls it after an entity mutation to push the
// resulting event into the relay. Notifications are best-effort by design:
// a relay outage must never fail or block the mutation that triggered the
// event.
package relayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/lorrc/status-relay/internal/core/domain"
	apperrors "github.com/lorrc/status-relay/internal/core/errors"
)

// defaultTimeout bounds dial, write and reply-read per notification.
const defaultTimeout = 2 * time.Second

// Client sends one-shot event notifications to the relay bridge.
type Client struct {
	addr    string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a bridge client. A zero timeout uses the default, a nil
// logger uses slog's default.
func New(addr string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		addr:    addr,
		timeout: timeout,
		logger:  logger.With("component", "relay_client"),
	}
}

// Notify sends one event to the relay and waits for its acknowledgement.
// The event data is serialized as-is and broadcast verbatim to every
// client subscribed to the room.
func (c *Client) Notify(ctx context.Context, room string, data any) error {
	if room == "" {
		return apperrors.ErrRoomRequired
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("serialize event data: %w", err)
	}

	payload, err := json.Marshal(domain.BridgeRequest{Room: room, Data: raw})
	if err != nil {
		return fmt.Errorf("serialize bridge request: %w", err)
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	if reply := string(buf[:n]); reply != "ok" {
		return fmt.Errorf("relay rejected notification: %s", reply)
	}
	return nil
}

// NotifyAsync fires a notification without waiting for it. Failures are
// logged and swallowed so callers inside a mutation path are never
// affected by relay availability.
func (c *Client) NotifyAsync(room string, data any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		if err := c.Notify(ctx, room, data); err != nil {
			c.logger.Warn("relay notification failed",
				"room", room,
				"error", err,
			)
		}
	}()
}

// OrgUpdateRoom names the organization-scoped update channel.
func OrgUpdateRoom(orgID int64) string {
	return fmt.Sprintf("org_%d_update", orgID)
}

// OrgIncidentRoom names the channel for incidents of one service within an
// organization.
func OrgIncidentRoom(orgID, serviceID int64) string {
	return fmt.Sprintf("org_%d_incident_%d_update", orgID, serviceID)
}
