package evasion

import (
	"log/slog"
	"sync"
	"time"

	"github.com/minelurk/minelurk/internal/event"
	"github.com/minelurk/minelurk/internal/game"
	"github.com/minelurk/minelurk/internal/utils"
)

const (
	timerRosterScan  = "rosterScan"
	timerFastScan    = "fastScan"
	timerReturn      = "returnMonitor"
	timerReturnDelay = "returnDelay"
)

// Config carries the scan and return cadences for one monitor.
type Config struct {
	FriendlyPrefixes  []string
	SlowScanInterval  time.Duration
	FastScanInterval  time.Duration
	ReturnPoll        time.Duration
	Dwell             time.Duration
	MaxReturnAttempts int
	ReturnCooldown    time.Duration
}

// Controller is what the monitor needs from its supervisor: roster access
// while connected, a status probe while hidden, and the hide/return
// transitions themselves.
type Controller interface {
	Identity() string
	Participants() []game.Participant
	// Probe returns the roster sample from a status query, usable while
	// disconnected.
	Probe() ([]game.Participant, error)
	// Hide tears the connection down without scheduling a reconnect.
	Hide(trigger string)
	// Return reconnects after an evasion. The supervisor re-checks its own
	// state before dialing; forced marks the attempt-limit fail-safe path.
	Return(forced bool)
	ShutdownRequested() bool
}

// Monitor watches the roster for real players and drives the hide/return
// cycle. All entry points are idempotent: overlapping scan ticks, join events
// and double triggers collapse into a single evasion.
type Monitor struct {
	name       string
	logger     *slog.Logger
	ctrl       Controller
	cfg        Config
	classifier Classifier
	timers     *utils.TimerSet

	mu             sync.Mutex
	evading        bool
	lastRealSeen   time.Time
	lastReturn     time.Time
	returnAttempts int
}

func NewMonitor(name string, logger *slog.Logger, ctrl Controller, cfg Config) *Monitor {
	return &Monitor{
		name:       name,
		logger:     logger,
		ctrl:       ctrl,
		cfg:        cfg,
		classifier: Classifier{FriendlyPrefixes: cfg.FriendlyPrefixes},
		timers:     utils.NewTimerSet(),
	}
}

// OnConnected starts the periodic roster scans. The slow scan is the
// catch-all safety net, the fast scan closes the gap between batched roster
// updates, and join events (HandleJoin) are the primary detection path.
func (m *Monitor) OnConnected() {
	m.timers.Every(timerRosterScan, m.cfg.SlowScanInterval, m.scan)
	m.timers.Every(timerFastScan, m.cfg.FastScanInterval, m.scan)
}

// OnDisconnected stops the scans. The return monitor, if running, is left
// alone: an evasion outlives the connection it tore down.
func (m *Monitor) OnDisconnected() {
	m.timers.Cancel(timerRosterScan)
	m.timers.Cancel(timerFastScan)
}

// HandleJoin is the event-driven detection path, called for every player
// appearing on the roster.
func (m *Monitor) HandleJoin(p game.Participant) {
	if m.isReal(p.Name) {
		m.enterEvasion(p.Name)
	}
}

func (m *Monitor) Stop() {
	m.timers.CancelAll()
}

func (m *Monitor) Evading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evading
}

func (m *Monitor) isReal(name string) bool {
	if name == "" || name == m.ctrl.Identity() {
		return false
	}
	return !m.classifier.IsBotLike(name)
}

func (m *Monitor) scan() {
	for _, p := range m.ctrl.Participants() {
		if m.isReal(p.Name) {
			m.enterEvasion(p.Name)
			return
		}
	}
}

// enterEvasion hides from a spotted player. Guarded so that concurrent
// triggers (fast scan + join event firing for the same player) produce
// exactly one teardown, and so a fresh trigger inside the post-return
// cooldown is ignored.
func (m *Monitor) enterEvasion(trigger string) {
	m.mu.Lock()
	if m.evading {
		m.mu.Unlock()
		return
	}
	if !m.lastReturn.IsZero() && time.Since(m.lastReturn) < m.cfg.ReturnCooldown {
		m.mu.Unlock()
		m.logger.Debug("evasion trigger inside return cooldown, ignoring",
			slog.String("trigger", trigger))
		return
	}
	m.evading = true
	m.lastRealSeen = time.Now()
	m.returnAttempts = 0
	m.mu.Unlock()

	m.logger.Info("real player spotted, hiding",
		slog.String("player", trigger))
	event.Send(event.EvasionStarted(event.Text(m.name, "Hiding from "+trigger), trigger))

	m.OnDisconnected()
	m.ctrl.Hide(trigger)

	m.timers.Every(timerReturn, m.cfg.ReturnPoll, m.returnTick)
}

// returnTick polls the server status while hidden. We return once the roster
// sample has stayed clear of real players for the dwell period, or
// unconditionally after the attempt limit so a noisy sample cannot strand us
// offline forever.
func (m *Monitor) returnTick() {
	m.mu.Lock()
	if !m.evading {
		m.mu.Unlock()
		return
	}
	m.returnAttempts++
	attempts := m.returnAttempts
	m.mu.Unlock()

	if m.ctrl.ShutdownRequested() {
		m.leaveEvasion(false, false)
		return
	}

	sample, err := m.ctrl.Probe()
	if err != nil {
		m.logger.Debug("status probe failed during evasion", slog.Any("error", err))
	} else {
		for _, p := range sample {
			if m.isReal(p.Name) {
				m.mu.Lock()
				m.lastRealSeen = time.Now()
				m.mu.Unlock()
				break
			}
		}
	}

	m.mu.Lock()
	clearFor := time.Since(m.lastRealSeen)
	m.mu.Unlock()

	if clearFor >= m.cfg.Dwell {
		m.logger.Info("roster clear, returning",
			slog.Duration("clearFor", clearFor))
		m.leaveEvasion(false, true)
		return
	}

	if attempts >= m.cfg.MaxReturnAttempts {
		m.logger.Warn("return attempt limit reached, forcing return",
			slog.Int("attempts", attempts))
		m.leaveEvasion(true, true)
	}
}

// leaveEvasion ends the evasion exactly once; late return ticks racing it
// fall out on the evading check. The reconnect is held back by the cooldown
// so leaving and re-entering cannot thrash the connection; the supervisor
// re-checks its own state when the delayed call lands.
func (m *Monitor) leaveEvasion(forced, reconnect bool) {
	m.mu.Lock()
	if !m.evading {
		m.mu.Unlock()
		return
	}
	m.evading = false
	m.lastReturn = time.Now()
	m.returnAttempts = 0
	m.mu.Unlock()

	m.timers.Cancel(timerReturn)

	if !reconnect {
		return
	}

	event.Send(event.EvasionEnded(event.Text(m.name, "Returning to server"), forced))

	if m.cfg.ReturnCooldown <= 0 {
		m.ctrl.Return(forced)
		return
	}
	m.timers.After(timerReturnDelay, m.cfg.ReturnCooldown, func() {
		m.ctrl.Return(forced)
	})
}
