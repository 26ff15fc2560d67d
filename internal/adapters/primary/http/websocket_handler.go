package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	mw "github.com/lorrc/status-relay/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/status-relay/internal/adapters/primary/websocket"
	"github.com/lorrc/status-relay/internal/config"
	"github.com/lorrc/status-relay/internal/core/ports"
)

// WebSocketHandler upgrades client connections and hands them to the relay.
type WebSocketHandler struct {
	registry    ports.Registry
	broadcaster ports.Broadcaster
	upgrader    websocket.Upgrader
	opts        wsAdapter.Options
	logger      *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	registry ports.Registry,
	broadcaster ports.Broadcaster,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		registry:    registry,
		broadcaster: broadcaster,
		opts: wsAdapter.Options{
			SendBufferSize:  cfg.WebSocket.SendBufferSize,
			MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
			PingInterval:    cfg.WebSocket.PingInterval,
			PongWait:        cfg.WebSocket.PongWait,
			WriteWait:       cfg.WebSocket.WriteWait,
		},
		logger: logger,
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.WebSocket.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// In development mode, allow all origins
		if cfg.IsDevelopment() {
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		// Check against allowed origins
		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		originHost := parsedOrigin.Host

		for _, allowed := range allowedOrigins {
			// Support wildcard subdomains like "*.example.com"
			if strings.HasPrefix(allowed, "*.") {
				suffix := allowed[1:] // Remove the "*", keep ".example.com"
				if strings.HasSuffix(originHost, suffix) || originHost == allowed[2:] {
					return true
				}
			} else if originHost == allowed {
				return true
			}
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// ServeHTTP handles WebSocket connection requests
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := mw.GetRequestID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection",
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		return
	}

	client := wsAdapter.NewClient(conn, h.registry, h.broadcaster, h.opts, h.logger)

	h.logger.Info("websocket connection established",
		"request_id", requestID,
		"session_id", client.ID(),
		"remote_addr", r.RemoteAddr,
	)

	// Start the I/O pumps in new goroutines
	go client.WritePump()
	go client.ReadPump()
}
