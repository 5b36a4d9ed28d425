// Package notifier emits periodic elapsed-time status events to the
// presentation layer.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/blucher/blucher/pkg/protocol"
)

// ErrPartialDelivery is wrapped by a Sink error when at least one of the
// sink's outputs received the notification.
var ErrPartialDelivery = errors.New("partial delivery")

// Sink receives notifications for the presentation layer.
type Sink interface {
	Emit(ctx context.Context, name string, payload protocol.Payload) error
}

// Config holds notifier settings.
type Config struct {
	Interval time.Duration
	Event    string

	// MaxFailures is the number of consecutive failed emissions after which
	// Run returns an error. Zero means never give up.
	MaxFailures int
}

// Stats is a snapshot of Notifier counters.
type Stats struct {
	Emitted int64
	Partial int64
	Failed  int64
}

// Notifier ticks every Interval and emits the time elapsed since it was
// created.
type Notifier struct {
	cfg    Config
	sink   Sink
	start  time.Time
	logger zerolog.Logger

	// Overridable for testing.
	since func(time.Time) time.Duration

	emitted atomic.Int64
	partial atomic.Int64
	failed  atomic.Int64
}

// New creates a Notifier. The start time is captured here, so restarting
// Run keeps elapsed time monotonic.
func New(cfg Config, sink Sink, logger zerolog.Logger) *Notifier {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Event == "" {
		cfg.Event = protocol.EventInputUpdate
	}
	return &Notifier{
		cfg:    cfg,
		sink:   sink,
		start:  time.Now(),
		logger: logger.With().Str("component", "notifier").Logger(),
		since:  time.Since,
	}
}

// Run emits one notification per interval until ctx is cancelled, which
// returns nil. It returns an error only after MaxFailures consecutive
// emission failures.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := n.emit(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			n.failed.Add(1)
			n.logger.Warn().Err(err).Int("consecutive", failures).Msg("notification delivery failed")
			if n.cfg.MaxFailures > 0 && failures >= n.cfg.MaxFailures {
				return fmt.Errorf("notifier: %d consecutive delivery failures: %w", failures, err)
			}
			continue
		}
		failures = 0
	}
}

func (n *Notifier) emit(ctx context.Context) error {
	elapsed := max(n.since(n.start), 0)
	msg := fmt.Sprintf("Time: %d", int64(elapsed/time.Second))

	if err := n.sink.Emit(ctx, n.cfg.Event, protocol.Payload{Message: msg}); err != nil {
		if !errors.Is(err, ErrPartialDelivery) {
			return err
		}
		n.partial.Add(1)
		n.logger.Warn().Err(err).Msg("notification partially delivered")
	}
	n.emitted.Add(1)
	n.logger.Debug().Str("message", msg).Msg("sent to presentation layer")
	return nil
}

// Elapsed returns the time since the notifier was created.
func (n *Notifier) Elapsed() time.Duration { return max(n.since(n.start), 0) }

// Stats returns a snapshot of the counters.
func (n *Notifier) Stats() Stats {
	return Stats{Emitted: n.emitted.Load(), Partial: n.partial.Load(), Failed: n.failed.Load()}
}
