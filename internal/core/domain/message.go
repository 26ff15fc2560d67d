package domain

import "encoding/json"

// Action identifies what a client command asks the relay to do.
type Action string

const (
	// ActionJoin subscribes the session to a room.
	ActionJoin Action = "join"
	// ActionLeave unsubscribes the session from a room.
	ActionLeave Action = "leave"
	// ActionPublish broadcasts client-supplied data to a room.
	ActionPublish Action = "message"
)

// Command is a single inbound client message.
type Command struct {
	Action Action          `json:"action"`
	Room   string          `json:"room"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Envelope is the unit pushed to every subscriber of a room.
type Envelope struct {
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

// BridgeRequest is the one-shot control message the trusted backend sends
// over the internal bridge. Data is forwarded to subscribers verbatim.
type BridgeRequest struct {
	Room string          `json:"room"`
	Data json.RawMessage `json:"data"`
}

// ErrorReply is sent back to a client whose message could not be parsed.
type ErrorReply struct {
	Error string `json:"error"`
}
