package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cashflowly/mpesa-listener/internal/capability"
	"github.com/cashflowly/mpesa-listener/internal/config"
)

func TestInitializeCreatesConfigAndGrants(t *testing.T) {
	homeDir := filepath.Join(t.TempDir(), ".mpesa")
	cfg := &config.Config{HomeDir: homeDir}

	if err := Initialize(cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	info, err := os.Stat(homeDir)
	if err != nil {
		t.Fatalf("stat home: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Fatalf("home perms = %o, want 700", info.Mode().Perm())
	}

	configRaw, err := os.ReadFile(cfg.ConfigPath())
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	configText := string(configRaw)
	for _, want := range []string{"[webhook]", "[capability]", "$MPESA_WEBHOOK_SECRET"} {
		if !strings.Contains(configText, want) {
			t.Fatalf("expected config to contain %q, got %q", want, configText)
		}
	}

	grants, err := capability.LoadGrants(cfg.GrantsPath())
	if err != nil {
		t.Fatalf("load grants: %v", err)
	}
	if len(grants.Grants) != 0 {
		t.Fatalf("expected no grants, got %+v", grants.Grants)
	}
	policy := &capability.Policy{Path: cfg.GrantsPath()}
	granted, err := policy.Granted(context.Background(), capability.ReadSMS)
	if err != nil || granted {
		t.Fatalf("fresh home must not grant read_sms: granted=%v err=%v", granted, err)
	}
}

func TestInitializeKeepsExistingFiles(t *testing.T) {
	homeDir := t.TempDir()
	cfg := &config.Config{HomeDir: homeDir}

	custom := "[log]\nlevel = 'debug'\n"
	if err := os.WriteFile(cfg.ConfigPath(), []byte(custom), 0o600); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	if err := capability.GrantPermission(cfg.GrantsPath(), capability.ReadSMS); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	if err := Initialize(cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	raw, err := os.ReadFile(cfg.ConfigPath())
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(raw) != custom {
		t.Fatalf("config was overwritten: %q", raw)
	}
	grants, err := capability.LoadGrants(cfg.GrantsPath())
	if err != nil {
		t.Fatalf("load grants: %v", err)
	}
	if !grants.Has(capability.ReadSMS) {
		t.Fatal("existing grant was lost")
	}
}

func TestInitializeRequiresHome(t *testing.T) {
	if err := Initialize(&config.Config{}); err == nil {
		t.Fatal("expected error for empty home dir")
	}
	if err := Initialize(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
