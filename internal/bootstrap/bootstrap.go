// Package bootstrap prepares the listener home directory on first run.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/cashflowly/mpesa-listener/internal/config"
	"github.com/cashflowly/mpesa-listener/internal/store"
)

const emptyGrants = "{\n  \"grants\": []\n}\n"

// Initialize creates the home directory, a starter config and an empty
// grants file. Existing files are left alone.
func Initialize(cfg *config.Config) error {
	if cfg == nil || cfg.HomeDir == "" {
		return fmt.Errorf("home directory is required")
	}
	if err := os.MkdirAll(cfg.HomeDir, 0o700); err != nil {
		return fmt.Errorf("create directory %q: %w", cfg.HomeDir, err)
	}

	configTOML, err := config.DefaultUserConfigTOML()
	if err != nil {
		return err
	}

	files := []struct {
		path    string
		content string
	}{
		{path: cfg.ConfigPath(), content: configTOML},
		{path: cfg.GrantsPath(), content: emptyGrants},
	}
	for _, file := range files {
		if err := writeFileIfMissing(file.path, file.content); err != nil {
			return err
		}
	}
	return nil
}

func writeFileIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %q: %w", path, err)
	}

	if err := store.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write file %q: %w", path, err)
	}
	return nil
}
