package game

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Participant is a player visible on the server roster. Entries are transient,
// they only live while the player is online.
type Participant struct {
	ID   uuid.UUID
	Name string
}

// Events are the callbacks a Client fires during a connection. All fields are
// optional; nil callbacks are skipped.
type Events struct {
	OnSpawn func()
	OnEnd   func(err error)
	OnJoin  func(p Participant)
	OnLeave func(p Participant)
}

// Client is the protocol-level connection to a server. Implementations own
// the wire format; the supervisor only drives the lifecycle.
type Client interface {
	// Connect performs the handshake and login. It returns once the login
	// either succeeds or fails.
	Connect(ctx context.Context) error

	// Run processes the connection until it ends, returning the terminal
	// error. A kick surfaces as *DisconnectError.
	Run(ctx context.Context) error

	// Close tears the connection down. Safe to call at any point.
	Close() error

	// Participants returns the current roster as seen by this client.
	Participants() []Participant

	// Latency returns the server-reported round trip for our own roster
	// entry in milliseconds, or -1 when unknown.
	Latency() int

	SwingArm() error
	Look(yaw, pitch float32) error
}

// Factory builds a Client for one connection attempt. The supervisor calls it
// with a fresh identity every time it reconnects.
type Factory func(addr, username string, events Events, logger *slog.Logger) Client

// DisconnectError is the server-initiated termination of a session, carrying
// the kick reason text.
type DisconnectError struct {
	Reason string
}

func (e *DisconnectError) Error() string {
	return "disconnected by server: " + e.Reason
}
