package event

import (
	"context"
	"log/slog"
	"sync"
)

var events = make(chan Event, 256)

// Send publishes an event to the process-wide bus. It never blocks: if the
// bus is saturated the event is dropped, listeners are best-effort consumers.
func Send(e Event) {
	select {
	case events <- e:
	default:
	}
}

type Handler func(ctx context.Context, e Event) error

type Listener struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers []Handler
}

func NewListener(logger *slog.Logger) *Listener {
	return &Listener{logger: logger}
}

func (l *Listener) Register(h Handler) {
	l.mu.Lock()
	l.handlers = append(l.handlers, h)
	l.mu.Unlock()
}

// Listen fans incoming events out to every registered handler until ctx is
// cancelled. Handler errors are logged, never propagated.
func (l *Listener) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			l.mu.RLock()
			handlers := make([]Handler, len(l.handlers))
			copy(handlers, l.handlers)
			l.mu.RUnlock()

			for _, h := range handlers {
				if err := h(ctx, e); err != nil {
					l.logger.Error("error handling event",
						slog.String("supervisor", e.Supervisor()),
						slog.String("message", e.Message()),
						slog.Any("error", err),
					)
				}
			}
		}
	}
}
