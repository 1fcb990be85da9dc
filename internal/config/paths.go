package config

import (
	"path/filepath"

	"github.com/cashflowly/mpesa-listener/internal/store"
)

func homeConfigPath(home string) string {
	return filepath.Join(home, store.ConfigFilePath)
}

func defaultHomePath(home string) string {
	return filepath.Join(home, ".mpesa")
}

// ConfigPath returns $MPESA_HOME/config.toml.
func (c *Config) ConfigPath() string {
	return homeConfigPath(c.HomeDir)
}

// GrantsPath returns the policy oracle's grants file.
func (c *Config) GrantsPath() string {
	return filepath.Join(c.HomeDir, store.GrantsFilePath)
}
