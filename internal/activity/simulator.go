package activity

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/minelurk/minelurk/internal/utils"
)

// Actor is the subset of the game client the simulator drives.
type Actor interface {
	SwingArm() error
	Look(yaw, pitch float32) error
}

// reaction pause before each action, in milliseconds. Sleep skews and
// stretches it the way human reaction times behave.
const defaultReactionMs = 180

// Simulator performs small periodic in-game actions so the connection does
// not read as completely idle. Only the supervisor decides when steps run;
// the simulator just picks an action and the gap until the next one.
type Simulator struct {
	logger       *slog.Logger
	meanInterval time.Duration
	reactionMs   int

	yaw   float32
	pitch float32
}

func NewSimulator(logger *slog.Logger, meanInterval time.Duration) *Simulator {
	return &Simulator{
		logger:       logger,
		meanInterval: meanInterval,
		reactionMs:   defaultReactionMs,
	}
}

// Step pauses for a humanized reaction beat, performs one randomized action
// and returns the gamma-distributed delay before the next step. Action
// failures are logged and swallowed, the connection lifecycle decides what a
// dead link means.
func (s *Simulator) Step(a Actor) time.Duration {
	if s.reactionMs > 0 {
		utils.Sleep(s.reactionMs)
	}

	switch rand.Intn(3) {
	case 0:
		if err := a.SwingArm(); err != nil {
			s.logger.Debug("arm swing failed", slog.Any("error", err))
		}
	default:
		// Small view drift, wrapped into valid ranges.
		s.yaw += float32(rand.NormFloat64() * 15)
		if s.yaw > 180 {
			s.yaw -= 360
		}
		if s.yaw < -180 {
			s.yaw += 360
		}
		s.pitch += float32(rand.NormFloat64() * 5)
		if s.pitch > 85 {
			s.pitch = 85
		}
		if s.pitch < -85 {
			s.pitch = -85
		}
		if err := a.Look(s.yaw, s.pitch); err != nil {
			s.logger.Debug("look change failed", slog.Any("error", err))
		}
	}

	return utils.RandGammaDurationMs(float64(s.meanInterval.Milliseconds()), 3)
}
