package consumer_test

import (
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/blucher/blucher/internal/natsserver"
	"github.com/blucher/blucher/pkg/consumer"
	"github.com/blucher/blucher/pkg/protocol"
)

func TestConsumerDecodesCommands(t *testing.T) {
	srv, err := natsserver.New(natsserver.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	defer srv.Shutdown()

	c, err := consumer.New(consumer.Config{
		NATSUrl:  srv.ClientURL(),
		NATSOpts: []nats.Option{nats.InProcessServer(srv.NATSServer())},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	defer c.Close()

	var mu sync.Mutex
	var got []protocol.Command
	if err := c.Subscribe(func(cmd protocol.Command) {
		mu.Lock()
		got = append(got, cmd)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := c.Subscribe(func(protocol.Command) {}); err == nil {
		t.Fatal("expected error on second subscribe")
	}

	nc := srv.Conn()
	nc.Publish(protocol.SubjectCommands, protocol.Encode(protocol.SetThrust{Thrust: 0.5}))
	nc.Publish(protocol.SubjectCommands, []byte{0x09})
	nc.Publish(protocol.SubjectCommands, protocol.Encode(protocol.Heartbeat{}))
	nc.Flush()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.Stats().Received+c.Stats().DecodeErrors >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("received %d commands, want 2: %v", len(got), got)
	}
	if got[0] != (protocol.SetThrust{Thrust: 0.5}) || got[1] != (protocol.Heartbeat{}) {
		t.Fatalf("commands = %v", got)
	}
	st := c.Stats()
	if st.DecodeErrors != 1 {
		t.Fatalf("decode errors = %d, want 1", st.DecodeErrors)
	}
	if st.LastCommand.IsZero() {
		t.Fatal("last command time not recorded")
	}
}
