package bot

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jpillora/backoff"
	"github.com/minelurk/minelurk/internal/config"
	"github.com/minelurk/minelurk/internal/session"
	"github.com/minelurk/minelurk/internal/utils"
	"github.com/stretchr/testify/assert"
)

func testSupervisor(t *testing.T) *Supervisor {
	t.Helper()

	cfg := &config.ProfileCfg{}
	cfg.Identity.Base = "Lurker"
	cfg.Validate()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sess := session.New()
	return &Supervisor{
		name:   "test",
		logger: slog.Default(),
		cfg:    cfg,
		sess:   sess,
		ids:    newIdentityPool(cfg.Identity.Base, sess),
		timers: utils.NewTimerSet(),
		netBackoff: &backoff.Backoff{
			Min:    time.Second,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

func TestDelayForBan(t *testing.T) {
	s := testSupervisor(t)
	s.sess.SetIdentity("Lurker")

	delay := s.delayFor(KindBan)

	assert.Equal(t, time.Second, delay)
	assert.True(t, s.sess.IsBanned("Lurker"))
	assert.NotEqual(t, "Lurker", s.sess.Identity())
}

func TestDelayForBanResetsThrottles(t *testing.T) {
	s := testSupervisor(t)
	s.sess.SetIdentity("Lurker")
	s.sess.IncThrottles()
	s.sess.IncThrottles()

	s.delayFor(KindBan)

	assert.Equal(t, 0, s.sess.Throttles())
}

func TestDelayForDuplicate(t *testing.T) {
	s := testSupervisor(t)
	s.sess.SetIdentity("Lurker")
	s.sess.IncAttempts()
	s.sess.IncAttempts()

	delay := s.delayFor(KindDuplicate)

	assert.Equal(t, 3*time.Second, delay)
	assert.NotEqual(t, "Lurker", s.sess.Identity())
	assert.False(t, s.sess.IsBanned("Lurker"), "duplicate login must not burn the name")
	assert.Equal(t, 1, s.sess.IncAttempts(), "attempt counter should have been reset")
}

func TestDelayForThrottleEscalates(t *testing.T) {
	s := testSupervisor(t)

	// base 5s: 5, 10, 20, 40 for the first four consecutive throttles.
	assert.Equal(t, 5*time.Second, s.delayFor(KindThrottle))
	assert.Equal(t, 10*time.Second, s.delayFor(KindThrottle))
	assert.Equal(t, 20*time.Second, s.delayFor(KindThrottle))
	assert.Equal(t, 40*time.Second, s.delayFor(KindThrottle))
}

func TestDelayForThrottleCooldown(t *testing.T) {
	s := testSupervisor(t)

	for i := 0; i < 4; i++ {
		s.delayFor(KindThrottle)
	}

	// Fifth consecutive throttle trips the long cooldown and resets the streak.
	assert.Equal(t, 300*time.Second, s.delayFor(KindThrottle))
	assert.Equal(t, 0, s.sess.Throttles())
	assert.Equal(t, 5*time.Second, s.delayFor(KindThrottle), "schedule restarts after cooldown")
}

func TestDelayForNetworkUsesBackoff(t *testing.T) {
	s := testSupervisor(t)

	for i := 0; i < 10; i++ {
		delay := s.delayFor(KindNetwork)
		assert.GreaterOrEqual(t, delay, time.Second)
		assert.LessOrEqual(t, delay, 30*time.Second)
	}
}

func TestDelayForProtocolLeavesCountersAlone(t *testing.T) {
	s := testSupervisor(t)
	s.sess.IncThrottles()

	delay := s.delayFor(KindProtocol)

	assert.Equal(t, time.Second, delay)
	assert.Equal(t, 1, s.sess.Throttles())
}

func TestDelayForUnknownGrowsLinearly(t *testing.T) {
	s := testSupervisor(t)

	// step 5s: 5, 10, 15, ...
	assert.Equal(t, 5*time.Second, s.delayFor(KindUnknown))
	assert.Equal(t, 10*time.Second, s.delayFor(KindUnknown))
	assert.Equal(t, 15*time.Second, s.delayFor(KindUnknown))
}

func TestDelayForUnknownCaps(t *testing.T) {
	s := testSupervisor(t)

	var last time.Duration
	for i := 0; i < 30; i++ {
		last = s.delayFor(KindUnknown)
	}
	assert.Equal(t, 60*time.Second, last)
}

func TestScheduleReconnectArmsOneTimer(t *testing.T) {
	s := testSupervisor(t)
	defer s.timers.CancelAll()

	s.scheduleReconnect(KindUnknown, "who knows")
	assert.True(t, s.timers.Active(timerReconnect))

	s.scheduleReconnect(KindUnknown, "who knows")
	assert.Equal(t, 1, s.timers.ActiveCount(), "a new classification replaces the pending retry")
}

func TestScheduleReconnectSkippedAfterShutdown(t *testing.T) {
	s := testSupervisor(t)
	s.sess.RequestShutdown()

	// A dial failing concurrently with Stop must not leave a timer behind.
	s.scheduleReconnect(KindNetwork, "dial tcp: connection refused")

	assert.False(t, s.timers.Active(timerReconnect))
	assert.Zero(t, s.timers.ActiveCount())
}

func TestScheduleReconnectSkippedAfterCancel(t *testing.T) {
	s := testSupervisor(t)
	s.cancel()

	s.scheduleReconnect(KindNetwork, "dial tcp: connection refused")

	assert.False(t, s.timers.Active(timerReconnect))
}

func TestThrottleDelay(t *testing.T) {
	base := 5 * time.Second
	capped := 60 * time.Second

	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 60 * time.Second},
		{10, 60 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, throttleDelay(tt.n, base, capped), "n=%d", tt.n)
	}
}
