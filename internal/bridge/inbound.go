package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/blucher/blucher/internal/relay"
	"github.com/blucher/blucher/pkg/protocol"
)

// ErrRejected marks an invocation refused before it reached the relay.
var ErrRejected = errors.New("command rejected")

// InboundStats is a snapshot of Inbound counters.
type InboundStats struct {
	Received int64
	Rejected int64
	Relayed  int64
}

// Inbound accepts text commands from the presentation layer and forwards
// them, typed, onto the relay. It owns the relay's sending end.
type Inbound struct {
	sender *relay.Sender[protocol.Command]
	limits atomic.Pointer[ThrustLimits]
	logger zerolog.Logger

	received atomic.Int64
	rejected atomic.Int64
	relayed  atomic.Int64
}

// NewInbound creates an Inbound that sends on sender.
func NewInbound(sender *relay.Sender[protocol.Command], limits ThrustLimits, logger zerolog.Logger) *Inbound {
	in := &Inbound{
		sender: sender,
		logger: logger.With().Str("component", "inbound").Logger(),
	}
	in.limits.Store(&limits)
	return in
}

// OnCommand parses message and relays the resulting command. It blocks while
// the relay is full. Parse and policy failures wrap ErrRejected; a closed
// relay yields an error wrapping relay.ErrClosed.
func (in *Inbound) OnCommand(ctx context.Context, message string) error {
	in.received.Add(1)
	in.logger.Info().Str("message", message).Msg("received from presentation layer")

	cmd, err := protocol.ParseCommand(message)
	if err != nil {
		in.rejected.Add(1)
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	cmd, err = in.limits.Load().Apply(cmd)
	if err != nil {
		in.rejected.Add(1)
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	if err := in.sender.Send(ctx, cmd); err != nil {
		in.logger.Warn().Err(err).Str("command", cmd.String()).Msg("relay send failed")
		return fmt.Errorf("relay command: %w", err)
	}
	in.relayed.Add(1)
	return nil
}

// SetLimits replaces the thrust limits applied to later commands.
func (in *Inbound) SetLimits(l ThrustLimits) {
	in.limits.Store(&l)
	in.logger.Info().
		Str("policy", string(l.Policy)).
		Float32("min", l.Min).
		Float32("max", l.Max).
		Msg("thrust limits updated")
}

// Limits returns the thrust limits in effect.
func (in *Inbound) Limits() ThrustLimits { return *in.limits.Load() }

// Close closes the relay's sending end. The outbound processor finishes
// the queued commands and exits.
func (in *Inbound) Close() { in.sender.Close() }

// Stats returns a snapshot of the counters.
func (in *Inbound) Stats() InboundStats {
	return InboundStats{
		Received: in.received.Load(),
		Rejected: in.rejected.Load(),
		Relayed:  in.relayed.Load(),
	}
}
