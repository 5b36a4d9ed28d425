package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/blucher/blucher/internal/bridge"
	"github.com/blucher/blucher/internal/server"
	"github.com/blucher/blucher/pkg/consumer"
	"github.com/blucher/blucher/pkg/protocol"
)

func testConfig(t *testing.T, transport string) server.Config {
	t.Helper()
	return server.Config{
		Server: server.ServerConfig{Socket: filepath.Join(t.TempDir(), "blucherd.sock")},
		Relay:  server.RelayConfig{Capacity: 1},
		Notifier: server.NotifierConfig{
			Interval:     100 * time.Millisecond,
			Event:        protocol.EventInputUpdate,
			MaxFailures:  5,
			RestartDelay: 100 * time.Millisecond,
		},
		Transport: server.TransportConfig{Kind: transport, Timeout: 2 * time.Second},
		NATS:      server.NATSConfig{Embedded: true},
		Thrust:    bridge.DefaultThrustLimits(),
	}
}

// startDaemon runs d in the background and waits for its socket.
func startDaemon(t *testing.T, d *server.Daemon, socketPath string) chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run() }()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socketPath); err == nil {
			return errCh
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("socket did not appear in time")
	return nil
}

func stopDaemon(t *testing.T, d *server.Daemon, errCh chan error) {
	t.Helper()
	d.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("daemon error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down in time")
	}
}

func socketClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
			},
		},
	}
}

func sendCommand(t *testing.T, client *http.Client, message string) (int, protocol.CommandResponse) {
	t.Helper()
	body, _ := json.Marshal(protocol.CommandRequest{Message: message})
	resp, err := client.Post("http://blucherd/api/v1/command", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("command request: %v", err)
	}
	defer resp.Body.Close()
	var out protocol.CommandResponse
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func getStatus(t *testing.T, client *http.Client) protocol.StatusResponse {
	t.Helper()
	resp, err := client.Get("http://blucherd/api/v1/status")
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	defer resp.Body.Close()
	var st protocol.StatusResponse
	json.NewDecoder(resp.Body).Decode(&st)
	return st
}

func TestEndToEndNATSTransport(t *testing.T) {
	cfg := testConfig(t, server.TransportNATS)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	d := server.NewDaemon(cfg, logger)
	errCh := startDaemon(t, d, cfg.Server.Socket)

	// Far side of the transport.
	c, err := consumer.New(consumer.Config{
		NATSUrl:  d.NATSClientURL(),
		NATSOpts: d.NATSConnectOpts(),
	}, logger)
	if err != nil {
		t.Fatalf("create consumer: %v", err)
	}
	defer c.Close()

	var mu sync.Mutex
	var received []protocol.Command
	if err := c.Subscribe(func(cmd protocol.Command) {
		mu.Lock()
		received = append(received, cmd)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Presentation-layer events published on NATS.
	nc, err := nats.Connect(d.NATSClientURL(), d.NATSConnectOpts()...)
	if err != nil {
		t.Fatalf("connect nats: %v", err)
	}
	defer nc.Close()
	evSub, err := nc.SubscribeSync(protocol.SubjectEvents(protocol.EventInputUpdate))
	if err != nil {
		t.Fatalf("subscribe events: %v", err)
	}
	nc.Flush()

	client := socketClient(cfg.Server.Socket)

	if code, resp := sendCommand(t, client, "thrust 0.75"); code != http.StatusOK {
		t.Fatalf("thrust: status %d, %+v", code, resp)
	}
	if code, resp := sendCommand(t, client, "ping"); code != http.StatusOK {
		t.Fatalf("ping: status %d, %+v", code, resp)
	}
	if code, _ := sendCommand(t, client, "Hello"); code != http.StatusUnprocessableEntity {
		t.Fatalf("Hello: status %d, want 422", code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	got := append([]protocol.Command(nil), received...)
	mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("consumer received %d commands, want 2: %v", len(got), got)
	}
	if got[0] != (protocol.SetThrust{Thrust: 0.75}) || got[1] != (protocol.Heartbeat{}) {
		t.Fatalf("consumer received %v", got)
	}

	msg, err := evSub.NextMsg(3 * time.Second)
	if err != nil {
		t.Fatalf("no input_update event: %v", err)
	}
	var evt protocol.Event
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Name != protocol.EventInputUpdate || evt.Payload.Message == "" {
		t.Fatalf("event = %+v", evt)
	}

	st := getStatus(t, client)
	for deadline := time.Now().Add(3 * time.Second); st.CommandsSent < 2 && time.Now().Before(deadline); {
		time.Sleep(50 * time.Millisecond)
		st = getStatus(t, client)
	}
	if st.Status != "ok" || st.Transport != server.TransportNATS {
		t.Fatalf("status = %+v", st)
	}
	if st.CommandsReceived != 3 || st.CommandsRejected != 1 || st.CommandsRelayed != 2 {
		t.Fatalf("command counters = %+v", st)
	}
	if st.CommandsSent != 2 {
		t.Fatalf("commands sent = %d, want 2", st.CommandsSent)
	}
	if st.Notifications == 0 {
		t.Fatal("no notifications counted")
	}

	stopDaemon(t, d, errCh)
}

func TestLogTransportAndStop(t *testing.T) {
	cfg := testConfig(t, server.TransportLog)
	d := server.NewDaemon(cfg, zerolog.Nop())
	errCh := startDaemon(t, d, cfg.Server.Socket)

	if d.NATSClientURL() != "" {
		t.Fatal("log transport should not start NATS")
	}

	client := socketClient(cfg.Server.Socket)
	if code, resp := sendCommand(t, client, "heartbeat"); code != http.StatusOK {
		t.Fatalf("heartbeat: status %d, %+v", code, resp)
	}

	stopDaemon(t, d, errCh)
	d.Stop()

	// The relay is closed after shutdown.
	if err := d.Inbound().OnCommand(context.Background(), "ping"); err == nil {
		t.Fatal("expected error after shutdown")
	}
}

func TestApplyConfigUpdatesLimits(t *testing.T) {
	cfg := testConfig(t, server.TransportLog)
	d := server.NewDaemon(cfg, zerolog.Nop())

	cfg.Thrust = bridge.ThrustLimits{Policy: bridge.ThrustReject, Min: -1, Max: 2}
	d.ApplyConfig(cfg)

	if got := d.Inbound().Limits(); got != cfg.Thrust {
		t.Fatalf("limits = %+v, want %+v", got, cfg.Thrust)
	}
}
