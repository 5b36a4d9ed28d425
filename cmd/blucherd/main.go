package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blucher/blucher/internal/server"
)

func main() {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "blucherd",
		Short:        "Blucher daemon — command bridge between the control loop and the UI",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := server.NewLogger(cfg.Log)

			d := server.NewDaemon(cfg, logger)
			server.WatchConfig(cfgFile, logger, d.ApplyConfig)
			return d.Run()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
