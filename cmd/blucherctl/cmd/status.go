package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blucher/blucher/pkg/protocol"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show blucherd status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp protocol.StatusResponse
			if err := apiGet("/api/v1/status", &resp); err != nil {
				return err
			}

			fmt.Printf("Status:        %s\n", resp.Status)
			fmt.Printf("Uptime:        %s\n", resp.Uptime)
			fmt.Printf("Started At:    %s\n", resp.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Transport:     %s\n", resp.Transport)
			fmt.Printf("Commands:      %d received, %d rejected, %d relayed, %d sent, %d failed\n",
				resp.CommandsReceived, resp.CommandsRejected, resp.CommandsRelayed,
				resp.CommandsSent, resp.TransmitErrors)
			fmt.Printf("Notifications: %d sent (%d partial), %d failed\n", resp.Notifications, resp.NotificationsPartial, resp.NotificationFailures)
			return nil
		},
	}
}
