package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cashflowly/mpesa-listener/internal/sources"
)

func newSimulateCmd() *cobra.Command {
	var withWebhook bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Type SMS deliveries interactively and watch what gets forwarded",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadStartupConfig()
			if err != nil {
				return err
			}
			cfg.Sinks.Console.Enabled = true
			cfg.Probe.Enabled = false
			if !withWebhook {
				cfg.Webhook.Enabled = false
				cfg.Sinks.WebSocket.Enabled = false
			}

			out := cmd.OutOrStdout()
			repl := sources.NewREPL(cmd.InOrStdin(), out)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runListener(runCtx, cfg, out, repl)
		},
	}

	cmd.Flags().BoolVar(&withWebhook, "with-webhook", false, "Also serve the configured webhook while simulating")
	return cmd
}
