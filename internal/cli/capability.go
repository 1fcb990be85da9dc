package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cashflowly/mpesa-listener/internal/capability"
	"github.com/cashflowly/mpesa-listener/internal/config"
	"github.com/cashflowly/mpesa-listener/internal/listener"
	"github.com/cashflowly/mpesa-listener/internal/logging"
)

func newCapabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capability",
		Short: "Inspect or change the SMS read capability",
	}
	cmd.AddCommand(newCapabilityCheckCmd())
	cmd.AddCommand(newCapabilityGrantCmd())
	cmd.AddCommand(newCapabilityRevokeCmd())
	return cmd
}

func newCapabilityCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Ask the configured oracle whether SMS can be read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			oracle, err := oracleFactory(cfg)
			if err != nil {
				return err
			}
			lst, err := listener.New(listener.Deps{Oracle: oracle})
			if err != nil {
				return err
			}
			resp, err := lst.CheckCapability(cmd.Context())
			if err != nil {
				return err
			}
			state := "denied"
			if resp.Granted {
				state = "granted"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (oracle=%s)\n", capability.ReadSMS, state, cfg.Capability.Oracle)
			return err
		},
	}
}

func newCapabilityGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant",
		Short: "Record the SMS read grant in the policy file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := policyConfig()
			if err != nil {
				return err
			}
			if err := capability.GrantPermission(cfg.GrantsPath(), capability.ReadSMS); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "granted %s in %s\n", capability.ReadSMS, cfg.GrantsPath())
			return err
		},
	}
}

func newCapabilityRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke",
		Short: "Remove the SMS read grant from the policy file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := policyConfig()
			if err != nil {
				return err
			}
			if err := capability.RevokePermission(cfg.GrantsPath(), capability.ReadSMS); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "revoked %s in %s\n", capability.ReadSMS, cfg.GrantsPath())
			return err
		},
	}
}

func policyConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Capability.Oracle != config.OraclePolicy {
		logging.Logger().Warn("capability.oracle is not policy; the grants file is not consulted", "oracle", cfg.Capability.Oracle)
	}
	return cfg, nil
}
