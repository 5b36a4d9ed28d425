package cmd

import (
	"github.com/spf13/cobra"

	"github.com/blucher/blucher/pkg/sockpath"
)

var (
	socketPath string

	// Version is set by the main package via ldflags.
	Version = "dev"
)

// NewRootCmd creates the root blucherctl command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "blucherctl",
		Short:   "Blucher CLI — send commands to and watch blucherd",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", sockpath.DefaultSocketPath(), "blucherd Unix socket path")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newEventsCmd())

	return rootCmd
}
