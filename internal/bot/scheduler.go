package bot

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/minelurk/minelurk/internal/config"
)

// Scheduler starts and stops supervisors based on each profile's daily play
// window, so presence begins and ends at human-looking times instead of on
// process boundaries.
type Scheduler struct {
	manager *SupervisorManager
	logger  *slog.Logger
	stop    chan struct{}
}

func NewScheduler(manager *SupervisorManager, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		manager: manager,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkSchedules()
		case <-s.stop:
			s.logger.Info("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) checkSchedules() {
	for name, cfg := range config.GetProfiles() {
		if name == "template" || !cfg.Scheduler.Enabled {
			continue
		}
		s.checkWindow(name, cfg)
	}
}

// checkWindow starts or stops one supervisor based on its daily window,
// shifted by today's deterministic offset.
func (s *Scheduler) checkWindow(name string, cfg *config.ProfileCfg) {
	now := time.Now()

	start, startOK := parseSimpleTime(cfg.Scheduler.SimpleStartTime, now)
	stop, stopOK := parseSimpleTime(cfg.Scheduler.SimpleStopTime, now)
	if !startOK || !stopOK {
		s.logger.Warn("scheduler: invalid start/stop time, skipping",
			slog.String("supervisor", name),
			slog.String("start", cfg.Scheduler.SimpleStartTime),
			slog.String("stop", cfg.Scheduler.SimpleStopTime),
		)
		return
	}

	startOffset := getDeterministicOffset(name, now, "start", cfg.Scheduler.VarianceMin)
	stopOffset := getDeterministicOffset(name, now, "stop", cfg.Scheduler.VarianceMin)
	start = start.Add(time.Duration(startOffset) * time.Minute)
	stop = stop.Add(time.Duration(stopOffset) * time.Minute)

	inWindow := simpleWindowContains(now, start, stop)
	running := s.manager.Running(name)

	if inWindow && !running {
		s.logger.Info("starting supervisor (schedule)",
			slog.String("supervisor", name),
			slog.String("window", start.Format("15:04")+"-"+stop.Format("15:04")),
		)
		go func() {
			if err := s.manager.Start(name); err != nil {
				s.logger.Error("failed to start supervisor",
					slog.String("supervisor", name),
					slog.Any("error", err),
				)
			}
		}()
	} else if !inWindow && running {
		s.logger.Info("stopping supervisor (schedule)",
			slog.String("supervisor", name),
			slog.String("window", start.Format("15:04")+"-"+stop.Format("15:04")),
		)
		s.manager.Stop(name)
	}
}

// IsWithinSchedule reports whether the profile is currently supposed to be
// running. Profiles without a schedule can always run.
func (s *Scheduler) IsWithinSchedule(name string, cfg *config.ProfileCfg) bool {
	if !cfg.Scheduler.Enabled {
		return true
	}

	now := time.Now()
	start, startOK := parseSimpleTime(cfg.Scheduler.SimpleStartTime, now)
	stop, stopOK := parseSimpleTime(cfg.Scheduler.SimpleStopTime, now)
	if !startOK || !stopOK {
		return true // misconfigured, allow start
	}

	start = start.Add(time.Duration(getDeterministicOffset(name, now, "start", cfg.Scheduler.VarianceMin)) * time.Minute)
	stop = stop.Add(time.Duration(getDeterministicOffset(name, now, "stop", cfg.Scheduler.VarianceMin)) * time.Minute)
	return simpleWindowContains(now, start, stop)
}

// parseSimpleTime parses a "HH:MM" string into today's wall-clock time in the
// local timezone. Returns the zero time and false on parse failure.
func parseSimpleTime(hhmm string, base time.Time) (time.Time, bool) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(base.Year(), base.Month(), base.Day(), t.Hour(), t.Minute(), 0, 0, base.Location()), true
}

// simpleWindowContains returns whether now is inside the [start, stop)
// window. Handles overnight windows where stop < start (e.g. 22:00-06:00).
func simpleWindowContains(now, start, stop time.Time) bool {
	if stop.After(start) {
		return !now.Before(start) && now.Before(stop)
	}
	// Overnight: active from start until midnight, and again until stop.
	return !now.Before(start) || now.Before(stop)
}

// getDeterministicOffset returns the same offset in minutes for a given
// day/context, drawn from a Normal(0, variance/2) distribution. A normal
// rather than uniform draw means most days start close to the configured
// time, with exponentially fewer extreme offsets. Clamped to
// [-variance, +variance].
func getDeterministicOffset(name string, now time.Time, context string, variance int) int {
	if variance == 0 {
		return 0
	}

	// Deterministic seed from supervisor + date + context.
	seedStr := name + now.Format("2006-01-02") + context
	seed := int64(0)
	for _, c := range seedStr {
		seed = seed*31 + int64(c)
	}

	// Box-Muller transform to sample from N(0, 1) using the seeded RNG.
	r := rand.New(rand.NewSource(seed))
	u1, u2 := r.Float64(), r.Float64()
	if u1 < 1e-10 {
		u1 = 1e-10
	}
	z := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)

	offset := int(math.Round(z * float64(variance) / 2.0))
	if offset < -variance {
		offset = -variance
	}
	if offset > variance {
		offset = variance
	}
	return offset
}
