package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blucher/blucher/pkg/protocol"
)

func newEventsCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream presentation-layer events from blucherd",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://blucherd/api/v1/events", nil)
			if err != nil {
				return err
			}
			resp, err := apiClient().Do(req)
			if err != nil {
				return fmt.Errorf("cannot connect to blucherd at %s: %w", socketPath, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("blucherd returned HTTP %d", resp.StatusCode)
			}

			sc := bufio.NewScanner(resp.Body)
			for sc.Scan() {
				data, ok := strings.CutPrefix(sc.Text(), "data: ")
				if !ok {
					continue
				}
				if raw {
					fmt.Println(data)
					continue
				}
				var evt protocol.Event
				if err := json.Unmarshal([]byte(data), &evt); err != nil {
					continue
				}
				fmt.Printf("%s  %-14s %s\n",
					time.Unix(evt.Timestamp, 0).Format("15:04:05"), evt.Name, evt.Payload.Message)
			}
			if ctx.Err() != nil {
				return nil
			}
			return sc.Err()
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print raw JSON events")
	return cmd
}
