// Package cli wires Cobra subcommands to application dependencies; it is a thin controller with no business logic.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cashflowly/mpesa-listener/internal/bootstrap"
	"github.com/cashflowly/mpesa-listener/internal/config"
	"github.com/cashflowly/mpesa-listener/internal/logging"
)

// NewRootCmd creates the root command and registers all subcommands.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "mpesa",
		Short: "Listen for M-PESA confirmation SMS and forward them",
		// Let main handle fatal error rendering through structured logs.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// config and version only print; they never bootstrap the home dir.
			switch cmd.Name() {
			case "config", "version":
				if verbose {
					logging.SetLevel(slog.LevelDebug)
				}
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Configure(cmd.ErrOrStderr(), cfg.Log.Format)
			if verbose {
				logging.SetLevel(slog.LevelDebug)
			} else {
				logging.SetLevel(logging.ParseLevel(cfg.Log.Level))
			}

			configPath := cfg.ConfigPath()
			firstRun := false
			if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
				firstRun = true
			} else if err != nil {
				return fmt.Errorf("stat config file %q: %w", configPath, err)
			}

			if err := bootstrap.Initialize(cfg); err != nil {
				return err
			}
			if firstRun {
				_, err := fmt.Fprintf(
					cmd.ErrOrStderr(),
					"First run setup complete.\nEdit config file: %s\nGrant SMS access with: mpesa capability grant\n",
					configPath,
				)
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to `mpesa start` when no subcommand is provided.
			startCmd, _, err := cmd.Find([]string{"start"})
			if err != nil {
				return err
			}
			startCmd.SetContext(cmd.Context())
			return startCmd.RunE(startCmd, args)
		},
	}

	root.AddCommand(newConfigCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newCapabilityCmd())
	root.AddCommand(newVersionCmd())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (debug level)")

	return root
}
