package session

import (
	"sync"
	"time"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateEvading      State = "evading"
)

// Session is the single mutable record describing one supervised connection.
// It is created once per supervisor and lives for the whole process; the HTTP
// status surface reads it concurrently with the supervisor mutating it.
type Session struct {
	mu sync.RWMutex

	state           State
	identity        string
	usedIdentities  []string
	banned          map[string]struct{}
	bannedOrder     []string
	lastError       string
	lastErrorKind   string
	attempts        int
	throttleCount   int
	connectedAt     time.Time
	realSightings   []string
	shutdownPending bool
}

func New() *Session {
	return &Session{
		state:  StateDisconnected,
		banned: make(map[string]struct{}),
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) SetState(st State) {
	s.mu.Lock()
	s.state = st
	if st == StateConnected {
		s.connectedAt = time.Now()
	}
	s.mu.Unlock()
}

func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// SetIdentity records the identity currently in use and appends it to the
// used list the first time it is seen.
func (s *Session) SetIdentity(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = name
	for _, u := range s.usedIdentities {
		if u == name {
			return
		}
	}
	s.usedIdentities = append(s.usedIdentities, name)
}

// MarkBanned permanently excludes an identity for the rest of the process
// lifetime. Banned names are kept in insertion order for the status surface.
func (s *Session) MarkBanned(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.banned[name]; ok {
		return
	}
	s.banned[name] = struct{}{}
	s.bannedOrder = append(s.bannedOrder, name)
}

func (s *Session) IsBanned(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.banned[name]
	return ok
}

func (s *Session) WasUsed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.usedIdentities {
		if u == name {
			return true
		}
	}
	return false
}

func (s *Session) SetLastError(kind, message string) {
	s.mu.Lock()
	s.lastError = message
	s.lastErrorKind = kind
	s.mu.Unlock()
}

func (s *Session) IncAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.attempts
}

func (s *Session) ResetAttempts() {
	s.mu.Lock()
	s.attempts = 0
	s.mu.Unlock()
}

func (s *Session) IncThrottles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttleCount++
	return s.throttleCount
}

func (s *Session) ResetThrottles() {
	s.mu.Lock()
	s.throttleCount = 0
	s.mu.Unlock()
}

func (s *Session) Throttles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.throttleCount
}

// RecordRealSighting remembers the name of a real player spotted on the
// roster. The list is capped to the most recent 20 sightings.
func (s *Session) RecordRealSighting(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realSightings = append(s.realSightings, name)
	if len(s.realSightings) > 20 {
		s.realSightings = s.realSightings[len(s.realSightings)-20:]
	}
}

func (s *Session) RequestShutdown() {
	s.mu.Lock()
	s.shutdownPending = true
	s.mu.Unlock()
}

func (s *Session) ShutdownRequested() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shutdownPending
}

// Status is a read-only snapshot of the session, safe to serialize from HTTP
// handlers at any time.
type Status struct {
	State            State     `json:"state"`
	Connected        bool      `json:"connected"`
	Evading          bool      `json:"evading"`
	Identity         string    `json:"identity"`
	LastError        string    `json:"lastError"`
	LastErrorKind    string    `json:"lastErrorKind"`
	Attempts         int       `json:"attempts"`
	ThrottleCount    int       `json:"throttleCount"`
	ConnectedAt      time.Time `json:"connectedAt"`
	BannedIdentities []string  `json:"bannedIdentities"`
	RealSightings    []string  `json:"realSightings"`
}

func (s *Session) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	banned := make([]string, len(s.bannedOrder))
	copy(banned, s.bannedOrder)
	sightings := make([]string, len(s.realSightings))
	copy(sightings, s.realSightings)

	return Status{
		State:            s.state,
		Connected:        s.state == StateConnected,
		Evading:          s.state == StateEvading,
		Identity:         s.identity,
		LastError:        s.lastError,
		LastErrorKind:    s.lastErrorKind,
		Attempts:         s.attempts,
		ThrottleCount:    s.throttleCount,
		ConnectedAt:      s.connectedAt,
		BannedIdentities: banned,
		RealSightings:    sightings,
	}
}
