package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blucher/blucher/pkg/protocol"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <command> [args...]",
		Short: "Send a command through blucherd",
		Long: `Send a command through blucherd, as the UI would.

Commands:
  heartbeat | ping
  set_thrust <value> | thrust <value>`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			// Catch typos locally; blucherd parses again.
			if _, err := protocol.ParseCommand(message); err != nil {
				return err
			}

			var resp protocol.CommandResponse
			code, err := apiPost("/api/v1/command", protocol.CommandRequest{Message: message}, &resp)
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				if resp.Error == "" {
					return fmt.Errorf("blucherd returned HTTP %d", code)
				}
				return errors.New(resp.Error)
			}

			fmt.Printf("sent: %s\n", message)
			return nil
		},
	}
}
