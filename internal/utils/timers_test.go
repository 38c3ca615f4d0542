package utils

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerSetAfterFires(t *testing.T) {
	ts := NewTimerSet()
	done := make(chan struct{})

	ts.After("x", 10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	assert.False(t, ts.Active("x"), "slot should be freed once fired")
}

func TestTimerSetAtMostOnePerName(t *testing.T) {
	ts := NewTimerSet()
	var fired atomic.Int32

	// Rescheduling under the same name must cancel the pending timer.
	for i := 0; i < 5; i++ {
		ts.After("x", 20*time.Millisecond, func() { fired.Add(1) })
	}
	assert.Equal(t, 1, ts.ActiveCount())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestTimerSetReschedulesFromCallback(t *testing.T) {
	ts := NewTimerSet()
	var fired atomic.Int32
	done := make(chan struct{})

	var tick func()
	tick = func() {
		if fired.Add(1) == 3 {
			close(done)
			return
		}
		ts.After("x", 5*time.Millisecond, tick)
	}
	ts.After("x", 5*time.Millisecond, tick)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("self-rescheduling timer stalled")
	}
}

func TestTimerSetCancel(t *testing.T) {
	ts := NewTimerSet()
	var fired atomic.Int32

	ts.After("x", 20*time.Millisecond, func() { fired.Add(1) })
	ts.Cancel("x")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, ts.Active("x"))

	// Cancelling an unknown name is a no-op.
	ts.Cancel("missing")
}

func TestTimerSetEvery(t *testing.T) {
	ts := NewTimerSet()
	var fired atomic.Int32

	ts.Every("tick", 10*time.Millisecond, func() { fired.Add(1) })
	time.Sleep(100 * time.Millisecond)
	ts.Cancel("tick")

	count := fired.Load()
	assert.Greater(t, count, int32(2))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, fired.Load(), "ticks after cancel")
}

func TestTimerSetEveryReplaced(t *testing.T) {
	ts := NewTimerSet()
	var first, second atomic.Int32

	ts.Every("tick", 5*time.Millisecond, func() { first.Add(1) })
	ts.Every("tick", 5*time.Millisecond, func() { second.Add(1) })
	assert.Equal(t, 1, ts.ActiveCount())

	time.Sleep(50 * time.Millisecond)
	ts.CancelAll()

	firstCount := first.Load()
	assert.Greater(t, second.Load(), int32(0))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, firstCount, first.Load(), "replaced ticker kept running")
}

func TestTimerSetCancelAll(t *testing.T) {
	ts := NewTimerSet()
	var fired atomic.Int32

	ts.After("a", 20*time.Millisecond, func() { fired.Add(1) })
	ts.After("b", 20*time.Millisecond, func() { fired.Add(1) })
	ts.Every("c", 10*time.Millisecond, func() { fired.Add(1) })
	assert.Equal(t, 3, ts.ActiveCount())

	ts.CancelAll()
	assert.Equal(t, 0, ts.ActiveCount())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
