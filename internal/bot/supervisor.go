package bot

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/minelurk/minelurk/internal/activity"
	"github.com/minelurk/minelurk/internal/config"
	"github.com/minelurk/minelurk/internal/evasion"
	"github.com/minelurk/minelurk/internal/event"
	"github.com/minelurk/minelurk/internal/game"
	"github.com/minelurk/minelurk/internal/health"
	"github.com/minelurk/minelurk/internal/session"
	"github.com/minelurk/minelurk/internal/utils"
)

const (
	timerReconnect = "reconnect"
	timerActivity  = "activity"
	timerLatency   = "latency"

	statusProbeTimeout = 5 * time.Second
)

// Supervisor owns the whole lifecycle of one server connection: dialing,
// classifying disconnects, rotating identities, backing off, and delegating
// hide/return decisions to its evasion monitor. Nothing it encounters is
// fatal; every failure path ends in a scheduled reconnect.
type Supervisor struct {
	name    string
	logger  *slog.Logger
	cfg     *config.ProfileCfg
	sess    *session.Session
	ids     *identityPool
	timers  *utils.TimerSet
	factory game.Factory
	monitor *evasion.Monitor
	sim     *activity.Simulator
	latency *health.LatencyMonitor

	netBackoff *backoff.Backoff

	mu     sync.Mutex
	client game.Client

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSupervisor(name string, logger *slog.Logger, cfg *config.ProfileCfg, factory game.Factory) *Supervisor {
	sess := session.New()

	s := &Supervisor{
		name:    name,
		logger:  logger,
		cfg:     cfg,
		sess:    sess,
		ids:     newIdentityPool(cfg.Identity.Base, sess),
		timers:  utils.NewTimerSet(),
		factory: factory,
		sim:     activity.NewSimulator(logger, time.Duration(cfg.Activity.MeanIntervalSeconds)*time.Second),
		netBackoff: &backoff.Backoff{
			Min:    time.Second,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}

	s.monitor = evasion.NewMonitor(name, logger, s, evasion.Config{
		FriendlyPrefixes:  cfg.Evasion.FriendlyPrefixes,
		SlowScanInterval:  time.Duration(cfg.Evasion.SlowScanSeconds) * time.Second,
		FastScanInterval:  time.Duration(cfg.Evasion.FastScanMs) * time.Millisecond,
		ReturnPoll:        time.Duration(cfg.Evasion.ReturnPollSeconds) * time.Second,
		Dwell:             time.Duration(cfg.Evasion.DwellMinutes) * time.Minute,
		MaxReturnAttempts: cfg.Evasion.MaxReturnAttempts,
		ReturnCooldown:    time.Duration(cfg.Evasion.ReturnCooldownSeconds) * time.Second,
	})

	if config.Minelurk != nil && config.Minelurk.LatencyMonitor.Enabled {
		s.latency = health.NewLatencyMonitor(
			logger,
			config.Minelurk.LatencyMonitor.ThresholdMs,
			time.Duration(config.Minelurk.LatencyMonitor.SustainedSeconds)*time.Second,
		)
	}

	return s
}

func (s *Supervisor) Name() string {
	return s.name
}

func (s *Supervisor) Status() session.Status {
	return s.sess.Snapshot()
}

// Start connects and then blocks until Stop is called. Reconnects happen on
// timers, so the calling goroutine just parks here for the supervisor's
// lifetime.
func (s *Supervisor) Start() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("supervisor starting",
		slog.String("server", s.cfg.Address()),
		slog.String("identityBase", s.cfg.Identity.Base),
	)

	s.connect()

	<-s.ctx.Done()
	s.teardown()
	return nil
}

// Stop permanently shuts the supervisor down. Internal disconnects never come
// through here; they reschedule themselves.
func (s *Supervisor) Stop() {
	s.sess.RequestShutdown()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Supervisor) teardown() {
	s.timers.CancelAll()
	s.monitor.Stop()

	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}

	s.sess.SetState(session.StateDisconnected)
	s.logger.Info("supervisor stopped")
}

// connect performs one connection attempt. Every failure is classified and
// turned into a future retry; the only way out of the cycle is Stop.
func (s *Supervisor) connect() {
	if s.sess.ShutdownRequested() || s.ctx.Err() != nil {
		return
	}
	if st := s.sess.State(); st == session.StateConnecting || st == session.StateConnected {
		return
	}

	// A stale handle from a previous attempt must not outlive its replacement.
	s.mu.Lock()
	stale := s.client
	s.client = nil
	s.mu.Unlock()
	if stale != nil {
		_ = stale.Close()
	}

	s.sess.SetState(session.StateConnecting)

	identity := s.sess.Identity()
	if identity == "" || s.sess.IsBanned(identity) {
		identity = s.ids.next()
		s.sess.SetIdentity(identity)
	}

	addr := s.cfg.Address()

	if s.cfg.Reconnect.ProbeBeforeConnect {
		maxWait := time.Duration(s.cfg.Reconnect.ProbeMaxWaitSeconds) * time.Second
		if !health.WaitReachable(s.ctx, addr, maxWait, s.logger) {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("server not reachable before connect", slog.String("addr", addr))
			s.sess.SetState(session.StateDisconnected)
			s.scheduleReconnect(KindNetwork, "server unreachable")
			return
		}
	}

	events := game.Events{OnSpawn: s.onSpawn}
	if s.cfg.Evasion.Enabled {
		events.OnJoin = s.monitor.HandleJoin
	}
	client := s.factory(addr, identity, events, s.logger)

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	s.logger.Info("connecting",
		slog.String("addr", addr),
		slog.String("identity", identity),
	)

	if err := client.Connect(s.ctx); err != nil {
		s.mu.Lock()
		s.client = nil
		s.mu.Unlock()

		kind := Classify(err)
		s.logger.Warn("connect failed",
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
		s.sess.SetState(session.StateDisconnected)
		s.scheduleReconnect(kind, err.Error())
		return
	}

	s.sess.SetState(session.StateConnected)
	s.sess.SetLastError("", "")
	s.sess.ResetAttempts()
	s.netBackoff.Reset()
	utils.SetSessionStart()

	event.Send(event.Connected(event.Text(s.name, "Connected as "+identity), identity, addr))

	if s.cfg.Evasion.Enabled {
		s.monitor.OnConnected()
	}
	s.scheduleActivity(time.Duration(s.cfg.Activity.MeanIntervalSeconds) * time.Second)
	s.scheduleLatencyChecks()

	go s.run(client)
}

// onSpawn fires when the server confirms our player is in the world. A
// completed spawn is the signal that a throttle streak is over.
func (s *Supervisor) onSpawn() {
	s.sess.ResetThrottles()
	s.logger.Info("spawned in world", slog.String("identity", s.sess.Identity()))
}

// run drives the connection until it dies, then routes the terminal error
// through the disconnect policy.
func (s *Supervisor) run(c game.Client) {
	err := c.Run(s.ctx)

	s.mu.Lock()
	if s.client != c {
		// A newer connection replaced this one; nothing left to do.
		s.mu.Unlock()
		return
	}
	s.client = nil
	s.mu.Unlock()

	s.timers.Cancel(timerActivity)
	s.timers.Cancel(timerLatency)
	s.monitor.OnDisconnected()

	if s.monitor.Evading() {
		// The teardown was ours; the return monitor owns the way back.
		return
	}

	if s.sess.ShutdownRequested() || s.ctx.Err() != nil {
		s.sess.SetState(session.StateDisconnected)
		return
	}

	kind := Classify(err)
	reason := ""
	if err != nil {
		reason = err.Error()
	}

	s.logger.Warn("connection ended",
		slog.String("kind", string(kind)),
		slog.String("reason", reason),
	)
	s.sess.SetState(session.StateDisconnected)
	s.scheduleReconnect(kind, reason)
}

// scheduleReconnect applies the per-kind delay policy and arms the reconnect
// timer. The timer registry guarantees a later classification replaces any
// pending retry rather than stacking a second one. The shutdown check lives
// here so a connect attempt failing concurrently with Stop cannot arm a timer
// after teardown has cancelled everything.
func (s *Supervisor) scheduleReconnect(kind DisconnectKind, reason string) {
	if s.sess.ShutdownRequested() || s.ctx.Err() != nil {
		return
	}

	s.sess.SetLastError(string(kind), reason)
	event.Send(event.Disconnected(event.Text(s.name, "Disconnected: "+reason), string(kind), reason))

	delay := s.delayFor(kind)

	s.logger.Info("reconnect scheduled",
		slog.String("kind", string(kind)),
		slog.Duration("delay", delay),
	)
	s.timers.After(timerReconnect, delay, s.connect)
}

// delayFor computes the wait before the next attempt and updates the counters
// that feed it.
func (s *Supervisor) delayFor(kind DisconnectKind) time.Duration {
	r := s.cfg.Reconnect

	switch kind {
	case KindBan:
		// Ban burns the identity; a fresh one reconnects almost
		// immediately, bypassing all backoff.
		previous := s.sess.Identity()
		s.sess.MarkBanned(previous)
		next := s.ids.next()
		s.sess.SetIdentity(next)
		s.sess.ResetThrottles()
		event.Send(event.IdentityRotated(event.Text(s.name, "Identity "+previous+" banned, now "+next), previous, next, true))
		return time.Duration(r.BanDelaySeconds) * time.Second

	case KindDuplicate:
		previous := s.sess.Identity()
		next := s.ids.next()
		s.sess.SetIdentity(next)
		s.sess.ResetAttempts()
		event.Send(event.IdentityRotated(event.Text(s.name, "Identity collision on "+previous+", now "+next), previous, next, false))
		return time.Duration(r.DuplicateDelaySeconds) * time.Second

	case KindThrottle:
		n := s.sess.IncThrottles()
		if n >= r.ThrottleCooldownAfter {
			cooldown := time.Duration(r.ThrottleCooldownSeconds) * time.Second
			s.sess.ResetThrottles()
			event.Send(event.ThrottleCooldown(event.Text(s.name, "Throttle streak, cooling down"), time.Now().Add(cooldown)))
			return cooldown
		}
		return throttleDelay(n, time.Duration(r.ThrottleBaseSeconds)*time.Second, time.Duration(r.ThrottleCapSeconds)*time.Second)

	case KindNetwork:
		return s.netBackoff.Duration()

	case KindProtocol:
		// Wire noise says nothing about our standing; retry quickly and
		// leave every counter alone.
		return time.Second

	default:
		attempts := s.sess.IncAttempts()
		delay := time.Duration(attempts) * time.Duration(r.UnknownStepSeconds) * time.Second
		if cap := time.Duration(r.UnknownCapSeconds) * time.Second; delay > cap {
			delay = cap
		}
		return delay
	}
}

// throttleDelay is the exponential schedule for consecutive throttle kicks:
// base * 2^(n-1), capped.
func throttleDelay(n int, base, cap time.Duration) time.Duration {
	if n < 1 {
		n = 1
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(n-1)))
	if d > cap || d <= 0 {
		d = cap
	}
	return d
}

func (s *Supervisor) scheduleActivity(delay time.Duration) {
	if !s.cfg.Activity.Enabled {
		return
	}
	s.timers.After(timerActivity, delay, s.activityTick)
}

func (s *Supervisor) activityTick() {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()

	if c == nil || s.sess.State() != session.StateConnected {
		return
	}

	next := s.sim.Step(c)
	s.scheduleActivity(next)
}

func (s *Supervisor) scheduleLatencyChecks() {
	if s.latency == nil {
		return
	}
	s.latency.Reset()
	s.timers.Every(timerLatency, 2*time.Second, func() {
		s.mu.Lock()
		c := s.client
		s.mu.Unlock()
		if c == nil {
			return
		}
		if s.latency.Check(c.Latency()) {
			s.logger.Warn("dropping degraded connection")
			_ = c.Close()
		}
	})
}

// The methods below implement evasion.Controller.

func (s *Supervisor) Identity() string {
	return s.sess.Identity()
}

func (s *Supervisor) Participants() []game.Participant {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Participants()
}

func (s *Supervisor) Probe() ([]game.Participant, error) {
	st, err := game.Ping(s.cfg.Address(), statusProbeTimeout)
	if err != nil {
		return nil, err
	}
	return st.Sample, nil
}

// Hide tears the connection down because a real player showed up. No
// reconnect gets scheduled; the evasion monitor decides when we come back.
func (s *Supervisor) Hide(trigger string) {
	s.sess.RecordRealSighting(trigger)
	s.sess.SetState(session.StateEvading)
	s.timers.Cancel(timerReconnect)
	s.timers.Cancel(timerActivity)
	s.timers.Cancel(timerLatency)

	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

// Return ends an evasion. The session state is re-checked here because the
// world may have moved on while the return monitor was polling: a shutdown
// request or an already-live connection both make the reconnect wrong.
func (s *Supervisor) Return(forced bool) {
	if s.sess.ShutdownRequested() || s.ctx.Err() != nil {
		return
	}
	if s.sess.State() == session.StateConnected {
		return
	}

	if forced {
		s.logger.Warn("forced return after evasion timeout")
	}
	s.sess.SetState(session.StateDisconnected)
	s.connect()
}

func (s *Supervisor) ShutdownRequested() bool {
	return s.sess.ShutdownRequested()
}
