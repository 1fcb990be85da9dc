package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the listener with the configured sources and sinks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadStartupConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runListener(runCtx, cfg, cmd.OutOrStdout())
		},
	}
}
