package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/blucher/blucher/internal/relay"
	"github.com/blucher/blucher/pkg/protocol"
)

// OutboundStats is a snapshot of Outbound counters.
type OutboundStats struct {
	Sent   int64
	Errors int64
}

// Outbound drains the relay, encoding each command and handing it to the
// transport. It owns the relay's receiving end.
type Outbound struct {
	receiver  *relay.Receiver[protocol.Command]
	transport Transport
	timeout   time.Duration
	logger    zerolog.Logger

	sent   atomic.Int64
	failed atomic.Int64
}

// NewOutbound creates an Outbound. timeout bounds each transmission;
// zero means no bound beyond the Run context.
func NewOutbound(receiver *relay.Receiver[protocol.Command], transport Transport, timeout time.Duration, logger zerolog.Logger) *Outbound {
	return &Outbound{
		receiver:  receiver,
		transport: transport,
		timeout:   timeout,
		logger:    logger.With().Str("component", "outbound").Str("transport", transport.Name()).Logger(),
	}
}

// Run processes commands until the relay closes or ctx is cancelled.
// Transmission failures are logged and do not stop the loop.
func (o *Outbound) Run(ctx context.Context) error {
	defer o.receiver.Close()

	for {
		cmd, err := o.receiver.Recv(ctx)
		if errors.Is(err, relay.ErrClosed) {
			o.logger.Info().Msg("relay closed, outbound processor stopping")
			return nil
		}
		if err != nil {
			return nil
		}
		o.transmit(ctx, cmd)
	}
}

func (o *Outbound) transmit(ctx context.Context, cmd protocol.Command) {
	data := protocol.Encode(cmd)

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	if err := o.transport.Transmit(ctx, data); err != nil {
		o.failed.Add(1)
		o.logger.Error().Err(err).Str("command", cmd.String()).Msg("transmit failed")
		return
	}
	o.sent.Add(1)
	o.logger.Debug().
		Str("command", cmd.String()).
		Int("bytes", len(data)).
		Msg("sent command")
}

// Stats returns a snapshot of the counters.
func (o *Outbound) Stats() OutboundStats {
	return OutboundStats{Sent: o.sent.Load(), Errors: o.failed.Load()}
}
