package bridge

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/lorrc/status-relay/internal/core/domain"
	apperrors "github.com/lorrc/status-relay/internal/core/errors"
	"github.com/lorrc/status-relay/internal/core/ports"
)

// ackOK is the literal acknowledgement written back on a successful request.
const ackOK = "ok"

// Config holds the bridge listener configuration.
type Config struct {
	// Addr is the TCP address to bind. Loopback-bound by default; the
	// bridge trusts whoever can reach it.
	Addr string

	// ReadTimeout bounds the single request read so a stalled producer
	// cannot leak a goroutine.
	ReadTimeout time.Duration

	// MaxRequestBytes is the fixed read buffer size. Requests must fit in
	// one read; there is no streaming or chunking.
	MaxRequestBytes int
}

// Listener accepts one-shot control connections from the trusted backend
// process. Each accepted connection carries a single JSON request
// {"room": ..., "data": ...}, triggers exactly one broadcast, receives a
// reply, and is closed. A malformed request only fails that one caller.
type Listener struct {
	cfg         Config
	broadcaster ports.Broadcaster

	// mu guards ln and closed
	mu     sync.Mutex
	ln     net.Listener
	closed bool

	// logger for the listener
	logger *slog.Logger
}

// New creates a bridge listener that forwards requests to the broadcaster.
func New(cfg Config, broadcaster ports.Broadcaster, logger *slog.Logger) *Listener {
	return &Listener{
		cfg:         cfg,
		broadcaster: broadcaster,
		logger:      logger.With("component", "bridge_listener"),
	}
}

// Start binds the listener and begins serving in a background goroutine.
// A bind failure is returned to the caller; everything after that is
// handled per-connection.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	l.ln = ln
	l.mu.Unlock()

	l.logger.Info("bridge listening", "addr", ln.Addr().String())

	go l.serve(ln)
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr().String()
	}
	return l.cfg.Addr
}

// Serving reports whether the listener is bound and accepting connections.
func (l *Listener) Serving() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln != nil && !l.closed
}

// Shutdown stops accepting connections.
func (l *Listener) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.ln != nil {
		return l.ln.Close()
	}
	return nil
}

// serve accepts connections until the listener is closed.
func (l *Listener) serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.isClosed() {
				return
			}
			l.logger.Warn("accept failed", "error", err)
			continue
		}

		go l.handle(conn)
	}
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// handle serves one request-then-close connection.
func (l *Listener) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if l.cfg.ReadTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(l.cfg.ReadTimeout)); err != nil {
			l.logger.Error("failed to set connection deadline", "error", err)
			return
		}
	}

	buf := make([]byte, l.cfg.MaxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil {
		l.logger.Warn("bridge read failed",
			"remote_addr", conn.RemoteAddr().String(),
			"error", err,
		)
		return
	}

	if err := l.dispatch(buf[:n]); err != nil {
		l.logger.Warn("bridge request rejected",
			"remote_addr", conn.RemoteAddr().String(),
			"error", err,
		)
		_, _ = conn.Write([]byte(err.Error()))
		return
	}

	_, _ = conn.Write([]byte(ackOK))
}

// dispatch validates one raw request and triggers its broadcast.
func (l *Listener) dispatch(raw []byte) error {
	if len(raw) == 0 {
		return apperrors.ErrEmptyRequest
	}

	var req domain.BridgeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return err
	}

	if req.Room == "" {
		return apperrors.ErrRoomRequired
	}

	l.logger.Debug("bridge event accepted", "room", req.Room)
	return l.broadcaster.Broadcast(req.Room, req.Data)
}
