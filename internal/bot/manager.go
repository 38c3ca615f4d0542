package bot

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/minelurk/minelurk/cmd/minelurk/log"
	"github.com/minelurk/minelurk/internal/config"
	"github.com/minelurk/minelurk/internal/event"
	"github.com/minelurk/minelurk/internal/game"
	"github.com/minelurk/minelurk/internal/session"
)

// SupervisorManager starts and stops one supervisor per configured profile.
type SupervisorManager struct {
	logger        *slog.Logger
	mu            sync.RWMutex // protects supervisors map
	supervisors   map[string]*Supervisor
	eventListener *event.Listener
	factory       game.Factory
}

func NewSupervisorManager(logger *slog.Logger, eventListener *event.Listener) *SupervisorManager {
	return &SupervisorManager{
		logger:        logger,
		supervisors:   make(map[string]*Supervisor),
		eventListener: eventListener,
		factory:       game.NewClient,
	}
}

// SetFactory swaps the game client constructor, used by tests to inject a
// fake client.
func (mng *SupervisorManager) SetFactory(f game.Factory) {
	mng.factory = f
}

func (mng *SupervisorManager) AvailableSupervisors() []string {
	available := make([]string, 0)
	for name := range config.GetProfiles() {
		if name != "template" {
			available = append(available, name)
		}
	}
	return available
}

// Start builds and runs the supervisor for a profile. It blocks until the
// supervisor stops, so callers that need to keep going run it on its own
// goroutine.
func (mng *SupervisorManager) Start(profileName string) error {
	mng.mu.RLock()
	_, exists := mng.supervisors[profileName]
	mng.mu.RUnlock()
	if exists {
		return fmt.Errorf("supervisor %s is already running", profileName)
	}

	// Reload config to pick up local edits made since the last start.
	if err := config.Load(); err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	cfg, found := config.GetProfile(profileName)
	if !found {
		return fmt.Errorf("profile %s not found", profileName)
	}

	supervisorLogger, err := log.NewLogger(config.Minelurk.Debug.Log, config.Minelurk.LogSaveDirectory, profileName)
	if err != nil {
		return err
	}

	supervisor := NewSupervisor(profileName, supervisorLogger, cfg, mng.factory)

	mng.mu.Lock()
	// Double-check under write lock to prevent a race where two concurrent
	// Start calls both pass the initial RLock existence check.
	if _, alreadyRunning := mng.supervisors[profileName]; alreadyRunning {
		mng.mu.Unlock()
		return fmt.Errorf("supervisor %s is already running", profileName)
	}
	mng.supervisors[profileName] = supervisor
	mng.mu.Unlock()

	// Blocks until the supervisor exits. The lock is intentionally NOT held
	// here; Stop needs it.
	err = supervisor.Start()

	mng.mu.Lock()
	if mng.supervisors[profileName] == supervisor {
		delete(mng.supervisors, profileName)
	}
	mng.mu.Unlock()

	if err != nil {
		mng.logger.Error(fmt.Sprintf("error running supervisor %s: %s", profileName, err.Error()))
	}
	return nil
}

func (mng *SupervisorManager) Stop(profileName string) {
	mng.mu.Lock()
	s, found := mng.supervisors[profileName]
	if found {
		delete(mng.supervisors, profileName)
	}
	mng.mu.Unlock()

	if !found {
		return
	}

	mng.logger.Info("stopping supervisor", slog.String("supervisor", profileName))

	// Done outside the lock because Stop waits for the lifecycle goroutine.
	s.Stop()
}

func (mng *SupervisorManager) StopAll() {
	mng.mu.RLock()
	snapshot := make([]*Supervisor, 0, len(mng.supervisors))
	for _, s := range mng.supervisors {
		snapshot = append(snapshot, s)
	}
	mng.mu.RUnlock()

	for _, s := range snapshot {
		s.Stop()
	}
}

func (mng *SupervisorManager) Running(profileName string) bool {
	mng.mu.RLock()
	defer mng.mu.RUnlock()
	_, ok := mng.supervisors[profileName]
	return ok
}

func (mng *SupervisorManager) Status(profileName string) session.Status {
	mng.mu.RLock()
	s, found := mng.supervisors[profileName]
	mng.mu.RUnlock()
	if found {
		return s.Status()
	}
	return session.Status{State: session.StateDisconnected}
}

// StatusAll returns a snapshot for every configured profile, running or not.
func (mng *SupervisorManager) StatusAll() map[string]session.Status {
	out := make(map[string]session.Status)
	for _, name := range mng.AvailableSupervisors() {
		out[name] = mng.Status(name)
	}
	return out
}

func (mng *SupervisorManager) ReloadConfig() error {
	return config.Load()
}
