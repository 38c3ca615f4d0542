package utils

import (
	"sync"
	"time"
)

// TimerSet is a registry of named timers. Scheduling under a name that already
// has a live timer cancels the old one first, so at most one timer per name is
// ever pending.
type TimerSet struct {
	mu     sync.Mutex
	cancel map[string]func()
}

func NewTimerSet() *TimerSet {
	return &TimerSet{cancel: make(map[string]func())}
}

// After schedules fn to run once after d. The name's slot is freed right
// before fn runs, so fn may reschedule itself under the same name.
func (ts *TimerSet) After(name string, d time.Duration, fn func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if c, ok := ts.cancel[name]; ok {
		c()
	}

	t := time.AfterFunc(d, func() {
		ts.mu.Lock()
		delete(ts.cancel, name)
		ts.mu.Unlock()
		fn()
	})
	ts.cancel[name] = func() { t.Stop() }
}

// Every schedules fn to run repeatedly at interval d until the name is
// cancelled or replaced.
func (ts *TimerSet) Every(name string, d time.Duration, fn func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if c, ok := ts.cancel[name]; ok {
		c()
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	ts.cancel[name] = func() { once.Do(func() { close(stop) }) }
}

func (ts *TimerSet) Cancel(name string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if c, ok := ts.cancel[name]; ok {
		c()
		delete(ts.cancel, name)
	}
}

func (ts *TimerSet) CancelAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for name, c := range ts.cancel {
		c()
		delete(ts.cancel, name)
	}
}

// Active reports whether a timer is currently pending under name.
func (ts *TimerSet) Active(name string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.cancel[name]
	return ok
}

func (ts *TimerSet) ActiveCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.cancel)
}
