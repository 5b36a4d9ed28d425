// Package consumer is the receiving side of the bridge's NATS transport:
// it decodes commands published on protocol.SubjectCommands.
package consumer

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/blucher/blucher/pkg/protocol"
)

// Config holds connection options for a consumer.
type Config struct {
	NATSUrl  string
	NATSOpts []nats.Option
}

// Stats is a snapshot of Consumer counters.
type Stats struct {
	Received     int64
	DecodeErrors int64
	LastCommand  time.Time
}

// Consumer receives and decodes bridge commands.
type Consumer struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	logger zerolog.Logger

	received     atomic.Int64
	decodeErrors atomic.Int64
	lastCommand  atomic.Value // stores time.Time
}

// New connects to NATS. Call Subscribe to start receiving.
func New(cfg Config, logger zerolog.Logger) (*Consumer, error) {
	logger = logger.With().Str("component", "consumer").Logger()

	// Resilience: infinite reconnect with logging on state changes.
	resilienceOpts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Warn().Msg("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.NATSUrl, append(resilienceOpts, cfg.NATSOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	c := &Consumer{nc: nc, logger: logger}
	c.lastCommand.Store(time.Time{})
	return c, nil
}

// Subscribe delivers every decodable command to handler, in publish order.
// Messages that fail to decode are logged and dropped.
func (c *Consumer) Subscribe(handler func(protocol.Command)) error {
	if c.sub != nil {
		return errors.New("consumer already subscribed")
	}
	sub, err := c.nc.Subscribe(protocol.SubjectCommands, func(msg *nats.Msg) {
		cmd, err := protocol.Decode(msg.Data)
		if err != nil {
			c.decodeErrors.Add(1)
			c.logger.Error().Err(err).Int("bytes", len(msg.Data)).Msg("bad command message")
			return
		}
		c.received.Add(1)
		c.lastCommand.Store(time.Now())
		handler(cmd)
	})
	if err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}
	c.sub = sub
	return c.nc.Flush()
}

// Conn returns the underlying NATS connection.
func (c *Consumer) Conn() *nats.Conn { return c.nc }

// Stats returns a snapshot of the counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Received:     c.received.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		LastCommand:  c.lastCommand.Load().(time.Time),
	}
}

// Close unsubscribes and drains the connection.
func (c *Consumer) Close() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.nc.Drain()
}
