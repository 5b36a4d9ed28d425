package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/blucher/blucher/internal/bridge"
	"github.com/blucher/blucher/internal/natsserver"
	"github.com/blucher/blucher/pkg/protocol"
)

func TestNATSTransportPublishesEncodedCommand(t *testing.T) {
	srv, err := natsserver.New(natsserver.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	defer srv.Shutdown()

	nc, err := nats.Connect(srv.ClientURL(), nats.InProcessServer(srv.NATSServer()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync(protocol.SubjectCommands)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	nc.Flush()

	tr := bridge.NewNATSTransport(srv.Conn())
	if tr.Name() != "nats" {
		t.Fatalf("name = %s", tr.Name())
	}
	if err := tr.Transmit(context.Background(), protocol.Encode(protocol.SetThrust{Thrust: 1})); err != nil {
		t.Fatalf("transmit: %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	cmd, err := protocol.Decode(msg.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cmd != (protocol.SetThrust{Thrust: 1}) {
		t.Fatalf("got %v", cmd)
	}
}

func TestLogTransportNeverFails(t *testing.T) {
	tr := bridge.NewLogTransport(zerolog.Nop())
	if err := tr.Transmit(context.Background(), protocol.Encode(protocol.Heartbeat{})); err != nil {
		t.Fatalf("transmit: %v", err)
	}
}
