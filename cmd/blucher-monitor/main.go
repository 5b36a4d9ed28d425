package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blucher/blucher/pkg/consumer"
	"github.com/blucher/blucher/pkg/protocol"
)

func main() {
	var (
		natsURL string
		token   string
	)

	rootCmd := &cobra.Command{
		Use:          "blucher-monitor",
		Short:        "Print commands blucherd transmits over NATS",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(
				zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
			).With().Timestamp().Logger()

			if token == "" {
				token = os.Getenv("BLUCHER_NATS_TOKEN")
			}
			var opts []nats.Option
			if token != "" {
				opts = append(opts, nats.Token(token))
			}

			c, err := consumer.New(consumer.Config{NATSUrl: natsURL, NATSOpts: opts}, logger)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer c.Close()

			if err := c.Subscribe(func(cmd protocol.Command) {
				logger.Info().
					Str("kind", cmd.Kind().String()).
					Str("command", cmd.String()).
					Msg("command received")
			}); err != nil {
				return err
			}

			logger.Info().Str("nats", natsURL).Str("subject", protocol.SubjectCommands).Msg("monitoring commands")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			st := c.Stats()
			logger.Info().
				Int64("received", st.Received).
				Int64("decode_errors", st.DecodeErrors).
				Msg("monitor stopped")
			return nil
		},
	}

	rootCmd.Flags().StringVar(&natsURL, "nats", "nats://127.0.0.1:4222", "NATS server URL")
	rootCmd.Flags().StringVar(&token, "token", "", "NATS auth token (default $BLUCHER_NATS_TOKEN)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
