package event

import (
	"time"
)

type Event interface {
	Message() string
	Supervisor() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	message    string
	supervisor string
	occurredAt time.Time
}

func (b BaseEvent) Message() string {
	return b.message
}

func (b BaseEvent) Supervisor() string {
	return b.supervisor
}

func (b BaseEvent) OccurredAt() time.Time {
	return b.occurredAt
}

func Text(supervisor, message string) BaseEvent {
	return BaseEvent{
		message:    message,
		supervisor: supervisor,
		occurredAt: time.Now(),
	}
}

// ConnectedEvent is sent every time a supervisor establishes a connection.
type ConnectedEvent struct {
	BaseEvent
	Identity string
	Address  string
}

func Connected(be BaseEvent, identity, address string) ConnectedEvent {
	return ConnectedEvent{BaseEvent: be, Identity: identity, Address: address}
}

// DisconnectedEvent carries the classified reason for a lost connection.
type DisconnectedEvent struct {
	BaseEvent
	Kind   string
	Reason string
}

func Disconnected(be BaseEvent, kind, reason string) DisconnectedEvent {
	return DisconnectedEvent{BaseEvent: be, Kind: kind, Reason: reason}
}

// IdentityRotatedEvent is sent when the supervisor switches to a new identity,
// usually after a ban or duplicate-login kick.
type IdentityRotatedEvent struct {
	BaseEvent
	Previous string
	Current  string
	Banned   bool
}

func IdentityRotated(be BaseEvent, previous, current string, banned bool) IdentityRotatedEvent {
	return IdentityRotatedEvent{BaseEvent: be, Previous: previous, Current: current, Banned: banned}
}

// EvasionStartedEvent is sent when a real player is spotted and the supervisor
// drops the connection to stay out of sight.
type EvasionStartedEvent struct {
	BaseEvent
	Trigger string
}

func EvasionStarted(be BaseEvent, trigger string) EvasionStartedEvent {
	return EvasionStartedEvent{BaseEvent: be, Trigger: trigger}
}

// EvasionEndedEvent is sent when the supervisor returns to the server. Forced
// is true when the return happened via the attempt-limit fail-safe rather than
// the roster staying clear for the full dwell period.
type EvasionEndedEvent struct {
	BaseEvent
	Forced bool
}

func EvasionEnded(be BaseEvent, forced bool) EvasionEndedEvent {
	return EvasionEndedEvent{BaseEvent: be, Forced: forced}
}

// ThrottleCooldownEvent is sent when repeated throttle kicks push the
// supervisor into its long cooldown pause.
type ThrottleCooldownEvent struct {
	BaseEvent
	Until time.Time
}

func ThrottleCooldown(be BaseEvent, until time.Time) ThrottleCooldownEvent {
	return ThrottleCooldownEvent{BaseEvent: be, Until: until}
}

// NgrokTunnelEvent publishes the public URL of the status page tunnel.
type NgrokTunnelEvent struct {
	BaseEvent
	URL string
}

func NgrokTunnel(url string) NgrokTunnelEvent {
	return NgrokTunnelEvent{BaseEvent: Text("", "Status page tunnel started: "+url), URL: url}
}
