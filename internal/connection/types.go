package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no pong)")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// State is the lifecycle state of the push channel.
type State int

const (
	// StateDisconnected means no channel is open; a retry may be pending.
	StateDisconnected State = iota

	// StateConnecting means a handshake is in flight.
	StateConnecting

	// StateConnected means the channel is open and delivering messages.
	StateConnected
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// StateChange reports a transition of the push channel.
type StateChange struct {
	From    State
	To      State
	Attempt int       // Consecutive attempt number since the last successful open (0 when connected)
	Err     error     // Cause of a transition to Disconnected, if any
	At      time.Time // Local time of the transition
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a message from Connection Manager to Message Router.
type RawMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	Session    int       // Which successful open this came from (1, 2, ...)
	ReceivedAt time.Time // Local timestamp when WS Client received message
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Push endpoint (e.g., ws://localhost:8000/ws)
	Token            string        // Optional bearer token sent on the handshake
	ClientID         string        // Sent as X-Client-ID on the handshake
	PingInterval     time.Duration // Interval between keepalive pings
	PingTimeout      time.Duration // Max time without pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Max time for the opening handshake
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL               string       // Push endpoint, see EndpointURL
	Token             string       // Optional bearer token
	ClientID          string       // Sent as X-Client-ID
	Policy            RetryPolicy  // Reconnect schedule
	Client            ClientConfig // Per-connection settings (URL/Token/ClientID are filled in)
	MessageBufferSize int          // Buffer size for output message channel
	StateBufferSize   int          // Buffer size for state change channel
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Policy:            DefaultRetryPolicy(),
		Client:            DefaultClientConfig(),
		MessageBufferSize: 1000,
		StateBufferSize:   64,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State    State
	Attempts int64 // Dial attempts, including the first
	Connects int64 // Successful opens
	Drops    int64 // Opens that later closed or errored
	Received int64 // Messages forwarded to the router
}
