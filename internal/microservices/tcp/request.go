package tcp

import (
	"time"

	"battleships/internal/protocol"
)

// Responder delivers the single response of a request and closes the exchange.
type Responder interface {
	Respond(f protocol.Frame) error
}

// Request is one decoded frame waiting for the processing loop. It is immutable once
// queued; only the processing goroutine answers it.
type Request struct {
	ConnID   string
	Remote   string
	Frame    protocol.Frame
	Received time.Time
	conn     Responder
}

// NewRequest wraps a decoded frame together with the connection that must carry the answer.
func NewRequest(connID, remote string, f protocol.Frame, received time.Time, conn Responder) *Request {
	return &Request{ConnID: connID, Remote: remote, Frame: f, Received: received, conn: conn}
}

// Player is the server-side record of a connected client.
type Player struct {
	ID          int
	Connected   bool
	LastRequest time.Time
	MatchID     int // 0 = unmatched
	Remote      string
}
