package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/blucher/blucher/internal/bridge"
	"github.com/blucher/blucher/internal/natsserver"
	"github.com/blucher/blucher/internal/notifier"
	"github.com/blucher/blucher/internal/presentation"
	"github.com/blucher/blucher/internal/relay"
	"github.com/blucher/blucher/pkg/protocol"
)

const shutdownTimeout = 5 * time.Second

// Daemon is the blucherd process.
type Daemon struct {
	cfg    Config
	logger zerolog.Logger

	receiver *relay.Receiver[protocol.Command]
	inbound  *bridge.Inbound
	outbound *bridge.Outbound
	notifier *notifier.Notifier
	api      *presentation.Server

	nats *natsserver.Server
	nc   *nats.Conn

	startedAt time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewDaemon creates a Daemon from config. The relay and inbound handler
// exist from here on, so ApplyConfig may be called before Run.
func NewDaemon(cfg Config, logger zerolog.Logger) *Daemon {
	sender, receiver := relay.New[protocol.Command](cfg.Relay.Capacity)
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		receiver: receiver,
		inbound:  bridge.NewInbound(sender, cfg.Thrust, logger),
		stopCh:   make(chan struct{}),
	}
}

// Run starts all subsystems and blocks until a signal is received or Stop is called.
func (d *Daemon) Run() error {
	d.startedAt = time.Now()

	// 1. Connect the transport.
	transport, err := d.startTransport()
	if err != nil {
		d.inbound.Close()
		return fmt.Errorf("start transport: %w", err)
	}

	// 2. Start the outbound processor. It gets its own context so it can
	// drain the relay after everything else has stopped.
	d.outbound = bridge.NewOutbound(d.receiver, transport, d.cfg.Transport.Timeout, d.logger)
	outCtx, cancelOut := context.WithCancel(context.Background())
	defer cancelOut()
	outDone := make(chan struct{})
	go func() {
		defer close(outDone)
		d.outbound.Run(outCtx)
	}()

	// 3. Start the presentation API and the notifier feeding it.
	d.api = presentation.New(d.cfg.Server.Socket, d.inbound, d, d.nc, d.logger)
	d.notifier = notifier.New(notifier.Config{
		Interval:    d.cfg.Notifier.Interval,
		Event:       d.cfg.Notifier.Event,
		MaxFailures: d.cfg.Notifier.MaxFailures,
	}, d.api, d.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifierDone := make(chan struct{})
	go func() {
		defer close(notifierDone)
		d.superviseNotifier(ctx)
	}()

	apiErrCh := make(chan error, 1)
	if err := d.api.Listen(); err != nil {
		apiErrCh <- err
	} else {
		go func() {
			apiErrCh <- d.api.Serve()
		}()
	}

	d.logger.Info().
		Str("socket", d.cfg.Server.Socket).
		Str("transport", transport.Name()).
		Int("relay_capacity", d.cfg.Relay.Capacity).
		Dur("notify_interval", d.cfg.Notifier.Interval).
		Msg("blucherd started")

	// 4. Wait for signal, stop call, or API error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-d.stopCh:
		d.logger.Info().Msg("stop requested, shutting down")
	case err := <-apiErrCh:
		if err != nil {
			d.logger.Error().Err(err).Msg("presentation API error")
			runErr = fmt.Errorf("presentation api: %w", err)
		}
	}

	// 5. Shut down: stop intake, let the relay drain, then stop the rest.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := d.api.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn().Err(err).Msg("presentation API shutdown")
	}
	cancel()
	d.inbound.Close()

	select {
	case <-outDone:
	case <-shutdownCtx.Done():
		d.logger.Warn().Int("pending", d.receiver.Len()).Msg("relay did not drain in time")
		cancelOut()
		<-outDone
	}
	<-notifierDone

	d.stopTransport()
	return runErr
}

func (d *Daemon) startTransport() (bridge.Transport, error) {
	if d.cfg.Transport.Kind != TransportNATS {
		return bridge.NewLogTransport(d.logger), nil
	}

	nc := d.cfg.NATS
	if nc.Embedded {
		ns, err := natsserver.New(natsserver.Config{
			Host:  nc.Host,
			Port:  nc.Port,
			Token: nc.Token,
		}, d.logger)
		if err != nil {
			return nil, fmt.Errorf("start nats: %w", err)
		}
		d.nats = ns
		d.nc = ns.Conn()
	} else {
		var opts []nats.Option
		if nc.Token != "" {
			opts = append(opts, nats.Token(nc.Token))
		}
		conn, err := nats.Connect(nc.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("nats connect %s: %w", nc.URL, err)
		}
		d.nc = conn
	}
	return bridge.NewNATSTransport(d.nc), nil
}

func (d *Daemon) stopTransport() {
	switch {
	case d.nats != nil:
		d.nats.Shutdown()
	case d.nc != nil:
		d.nc.Drain()
	}
}

// superviseNotifier restarts the notifier after it gives up, until ctx ends.
func (d *Daemon) superviseNotifier(ctx context.Context) {
	for {
		err := d.notifier.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		d.logger.Error().Err(err).
			Dur("restart_in", d.cfg.Notifier.RestartDelay).
			Msg("notifier stopped, restarting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.Notifier.RestartDelay):
		}
	}
}

// Stop signals the daemon to shut down. Safe to call from another goroutine
// and more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// ApplyConfig applies the settings that can change at runtime.
func (d *Daemon) ApplyConfig(cfg Config) {
	d.inbound.SetLimits(cfg.Thrust)
}

// Inbound returns the inbound command handler.
func (d *Daemon) Inbound() *bridge.Inbound { return d.inbound }

// Status reports uptime and pipeline counters.
func (d *Daemon) Status() protocol.StatusResponse {
	in := d.inbound.Stats()
	resp := protocol.StatusResponse{
		Status:           "ok",
		Uptime:           time.Since(d.startedAt).Truncate(time.Second).String(),
		StartedAt:        d.startedAt,
		Transport:        d.cfg.Transport.Kind,
		CommandsReceived: in.Received,
		CommandsRejected: in.Rejected,
		CommandsRelayed:  in.Relayed,
	}
	if d.outbound != nil {
		out := d.outbound.Stats()
		resp.CommandsSent = out.Sent
		resp.TransmitErrors = out.Errors
	}
	if d.notifier != nil {
		n := d.notifier.Stats()
		resp.Notifications = n.Emitted
		resp.NotificationsPartial = n.Partial
		resp.NotificationFailures = n.Failed
	}
	return resp
}

// NATSClientURL returns the embedded NATS server's client URL.
func (d *Daemon) NATSClientURL() string {
	if d.nats == nil {
		return ""
	}
	return d.nats.ClientURL()
}

// NATSConnectOpts returns NATS connection options for in-process connections.
func (d *Daemon) NATSConnectOpts() []nats.Option {
	if d.nats == nil {
		return nil
	}
	return natsserver.ConnectOptions(d.nats.NATSServer(), natsserver.Config{
		Host:  d.cfg.NATS.Host,
		Token: d.cfg.NATS.Token,
	})
}
