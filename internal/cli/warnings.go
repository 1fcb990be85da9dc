package cli

import (
	"github.com/cashflowly/mpesa-listener/internal/config"
	"github.com/cashflowly/mpesa-listener/internal/logging"
)

// loadStartupConfig loads and validates config, logging non-fatal findings.
func loadStartupConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	report, err := config.ValidateStartup(cfg)
	if err != nil {
		return nil, err
	}
	for _, warning := range report.Warnings {
		logging.Logger().Warn(warning)
	}
	return cfg, nil
}
