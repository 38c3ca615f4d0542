package evasion

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/minelurk/minelurk/internal/game"
	"github.com/stretchr/testify/assert"
)

type fakeController struct {
	mu           sync.Mutex
	identity     string
	participants []game.Participant
	probeSample  []game.Participant
	probeErr     error
	shutdown     bool

	hideCalls   int
	hideTrigger string
	returnCalls int
	lastForced  bool
}

func (f *fakeController) Identity() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity
}

func (f *fakeController) Participants() []game.Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants
}

func (f *fakeController) Probe() ([]game.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeSample, f.probeErr
}

func (f *fakeController) Hide(trigger string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hideCalls++
	f.hideTrigger = trigger
}

func (f *fakeController) Return(forced bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.returnCalls++
	f.lastForced = forced
}

func (f *fakeController) ShutdownRequested() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

func (f *fakeController) hides() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hideCalls
}

func (f *fakeController) returns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.returnCalls
}

func testConfig() Config {
	return Config{
		FriendlyPrefixes:  []string{"Lurker"},
		SlowScanInterval:  time.Minute,
		FastScanInterval:  750 * time.Millisecond,
		ReturnPoll:        time.Hour, // ticks are driven manually in tests
		Dwell:             5 * time.Minute,
		MaxReturnAttempts: 3,
		ReturnCooldown:    0, // synchronous Return unless a test opts in
	}
}

func newTestMonitor(ctrl *fakeController, cfg Config) *Monitor {
	return NewMonitor("test", slog.Default(), ctrl, cfg)
}

func TestHandleJoinRealPlayerTriggersEvasion(t *testing.T) {
	ctrl := &fakeController{identity: "Lurker482"}
	m := newTestMonitor(ctrl, testConfig())
	defer m.Stop()

	m.HandleJoin(game.Participant{Name: "Notch"})

	assert.True(t, m.Evading())
	assert.Equal(t, 1, ctrl.hides())
	assert.Equal(t, "Notch", ctrl.hideTrigger)
}

func TestHandleJoinIgnoresBotsAndSelf(t *testing.T) {
	ctrl := &fakeController{identity: "Lurker482"}
	m := newTestMonitor(ctrl, testConfig())
	defer m.Stop()

	m.HandleJoin(game.Participant{Name: "Lurker482"})
	m.HandleJoin(game.Participant{Name: "miner_42"})
	m.HandleJoin(game.Participant{Name: "AFK_Bob"})
	m.HandleJoin(game.Participant{Name: ""})

	assert.False(t, m.Evading())
	assert.Equal(t, 0, ctrl.hides())
}

func TestDoubleTriggerHidesOnce(t *testing.T) {
	ctrl := &fakeController{identity: "Lurker482"}
	m := newTestMonitor(ctrl, testConfig())
	defer m.Stop()

	// Fast scan and the join event can race on the same player.
	m.HandleJoin(game.Participant{Name: "Notch"})
	m.HandleJoin(game.Participant{Name: "Notch"})
	m.HandleJoin(game.Participant{Name: "Herobrine"})

	assert.Equal(t, 1, ctrl.hides())
}

func TestScanSpotsRealPlayer(t *testing.T) {
	ctrl := &fakeController{
		identity: "Lurker482",
		participants: []game.Participant{
			{Name: "Lurker482"},
			{Name: "grinderbot"},
			{Name: "EpicGamer"},
		},
	}
	m := newTestMonitor(ctrl, testConfig())
	defer m.Stop()

	m.scan()

	assert.True(t, m.Evading())
	assert.Equal(t, "EpicGamer", ctrl.hideTrigger)
}

func TestReturnAfterDwell(t *testing.T) {
	cfg := testConfig()
	cfg.Dwell = 0 // roster counts as clear immediately
	ctrl := &fakeController{identity: "Lurker482"}
	m := newTestMonitor(ctrl, cfg)
	defer m.Stop()

	m.HandleJoin(game.Participant{Name: "Notch"})
	assert.True(t, m.Evading())

	m.returnTick()

	assert.False(t, m.Evading())
	assert.Equal(t, 1, ctrl.returns())
	assert.False(t, ctrl.lastForced)
}

func TestRealPlayerInProbeSampleDelaysReturn(t *testing.T) {
	cfg := testConfig()
	ctrl := &fakeController{
		identity:    "Lurker482",
		probeSample: []game.Participant{{Name: "Notch"}},
	}
	m := newTestMonitor(ctrl, cfg)
	defer m.Stop()

	m.HandleJoin(game.Participant{Name: "Notch"})
	m.returnTick()
	m.returnTick()

	assert.True(t, m.Evading())
	assert.Equal(t, 0, ctrl.returns())
}

func TestForcedReturnAfterAttemptLimit(t *testing.T) {
	cfg := testConfig()
	ctrl := &fakeController{
		identity:    "Lurker482",
		probeSample: []game.Participant{{Name: "Notch"}},
	}
	m := newTestMonitor(ctrl, cfg)
	defer m.Stop()

	m.HandleJoin(game.Participant{Name: "Notch"})

	for i := 0; i < cfg.MaxReturnAttempts+5; i++ {
		m.returnTick()
	}

	assert.False(t, m.Evading())
	assert.Equal(t, 1, ctrl.returns(), "forced return must fire exactly once")
	assert.True(t, ctrl.lastForced)
}

func TestReturnTickHonorsShutdown(t *testing.T) {
	ctrl := &fakeController{identity: "Lurker482"}
	m := newTestMonitor(ctrl, testConfig())
	defer m.Stop()

	m.HandleJoin(game.Participant{Name: "Notch"})
	ctrl.mu.Lock()
	ctrl.shutdown = true
	ctrl.mu.Unlock()

	m.returnTick()

	assert.False(t, m.Evading())
	assert.Equal(t, 0, ctrl.returns(), "shutdown ends evasion without reconnecting")
}

func TestTriggerInsideReturnCooldownIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.Dwell = 0
	cfg.ReturnCooldown = time.Hour
	ctrl := &fakeController{identity: "Lurker482"}
	m := newTestMonitor(ctrl, cfg)
	defer m.Stop()

	m.HandleJoin(game.Participant{Name: "Notch"})
	m.returnTick()
	assert.False(t, m.Evading())
	assert.Equal(t, 0, ctrl.returns(), "reconnect held back by the cooldown")

	// Straight back in sight of a real player; the cooldown absorbs it.
	m.HandleJoin(game.Participant{Name: "Notch"})
	assert.False(t, m.Evading())
	assert.Equal(t, 1, ctrl.hides())
}

func TestReturnDelayedByCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.Dwell = 0
	cfg.ReturnCooldown = 20 * time.Millisecond
	ctrl := &fakeController{identity: "Lurker482"}
	m := newTestMonitor(ctrl, cfg)
	defer m.Stop()

	m.HandleJoin(game.Participant{Name: "Notch"})
	m.returnTick()

	assert.Equal(t, 0, ctrl.returns())
	assert.Eventually(t, func() bool { return ctrl.returns() == 1 },
		time.Second, 5*time.Millisecond)
}
