package health

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/jpillora/backoff"
)

// DefaultProbeTimeout bounds a single reachability probe.
const DefaultProbeTimeout = 5 * time.Second

// Reachable reports whether a TCP connection to addr can be opened within
// timeout. It answers a yes/no question and never returns an error: any
// failure to connect simply means "not reachable right now".
func Reachable(addr string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitReachable probes addr until it answers, maxWait elapses, or ctx is
// cancelled. A maxWait <= 0 waits indefinitely. Returns true only when the
// server became reachable.
func WaitReachable(ctx context.Context, addr string, maxWait time.Duration, logger *slog.Logger) bool {
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var deadline time.Time
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	for {
		if Reachable(addr, DefaultProbeTimeout) {
			return true
		}

		wait := b.Duration()
		logger.Debug("server unreachable, waiting before next probe",
			slog.String("addr", addr),
			slog.Duration("wait", wait),
		)

		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}
