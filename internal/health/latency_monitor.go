package health

import (
	"log/slog"
	"time"
)

// LatencyMonitor watches the server-reported round trip while a connection is
// up and triggers a callback when latency stays above the threshold for a
// sustained period. Used by the supervisor to proactively reconnect instead
// of idling on a degraded link.
type LatencyMonitor struct {
	highSince     time.Time
	lastCheck     time.Time
	ThresholdMs   int
	Sustained     time.Duration
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger
	OnSustained   func()
}

func NewLatencyMonitor(logger *slog.Logger, thresholdMs int, sustained time.Duration) *LatencyMonitor {
	return &LatencyMonitor{
		ThresholdMs:   thresholdMs,
		Sustained:     sustained,
		CheckInterval: 2 * time.Second,
		Enabled:       true,
		Logger:        logger,
	}
}

// Check feeds one latency sample in. Returns true when the sustained
// threshold has been crossed; the callback, if set, fires at the same moment.
// Samples arriving faster than CheckInterval are ignored.
func (lm *LatencyMonitor) Check(latencyMs int) bool {
	if !lm.Enabled {
		return false
	}

	now := time.Now()
	if now.Sub(lm.lastCheck) < lm.CheckInterval {
		return false
	}
	lm.lastCheck = now

	// A non-positive reading means the roster entry has no measurement yet.
	if latencyMs <= 0 {
		return false
	}

	if latencyMs <= lm.ThresholdMs {
		if !lm.highSince.IsZero() {
			lm.Logger.Info("latency back to normal",
				slog.Int("latencyMs", latencyMs),
				slog.Duration("highFor", now.Sub(lm.highSince)),
			)
			lm.highSince = time.Time{}
		}
		return false
	}

	if lm.highSince.IsZero() {
		lm.highSince = now
		lm.Logger.Warn("high latency detected",
			slog.Int("latencyMs", latencyMs),
			slog.Int("thresholdMs", lm.ThresholdMs),
		)
		return false
	}

	elapsed := now.Sub(lm.highSince)
	if elapsed < lm.Sustained {
		lm.Logger.Debug("high latency continuing",
			slog.Int("latencyMs", latencyMs),
			slog.Duration("elapsed", elapsed),
		)
		return false
	}

	lm.Logger.Error("sustained high latency",
		slog.Int("latencyMs", latencyMs),
		slog.Duration("duration", elapsed),
	)
	if lm.OnSustained != nil {
		lm.OnSustained()
	}
	lm.Reset()
	return true
}

func (lm *LatencyMonitor) Reset() {
	lm.highSince = time.Time{}
	lm.lastCheck = time.Time{}
}
