package bridge

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/blucher/blucher/pkg/protocol"
)

// Transport carries encoded commands to the control loop.
type Transport interface {
	Name() string
	Transmit(ctx context.Context, data []byte) error
}

// LogTransport only logs what would be transmitted.
type LogTransport struct {
	logger zerolog.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(logger zerolog.Logger) *LogTransport {
	return &LogTransport{logger: logger.With().Str("component", "transport").Logger()}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Transmit(_ context.Context, data []byte) error {
	t.logger.Info().
		Int("bytes", len(data)).
		Str("data", hex.EncodeToString(data)).
		Msg("command transmitted")
	return nil
}

// NATSTransport publishes encoded commands on protocol.SubjectCommands.
type NATSTransport struct {
	nc *nats.Conn
}

// NewNATSTransport creates a transport publishing over nc.
func NewNATSTransport(nc *nats.Conn) *NATSTransport {
	return &NATSTransport{nc: nc}
}

func (t *NATSTransport) Name() string { return "nats" }

func (t *NATSTransport) Transmit(ctx context.Context, data []byte) error {
	if err := t.nc.Publish(protocol.SubjectCommands, data); err != nil {
		return fmt.Errorf("publish command: %w", err)
	}
	// FlushWithContext refuses contexts without a deadline.
	var err error
	if _, ok := ctx.Deadline(); ok {
		err = t.nc.FlushWithContext(ctx)
	} else {
		err = t.nc.Flush()
	}
	if err != nil {
		return fmt.Errorf("flush command: %w", err)
	}
	return nil
}
