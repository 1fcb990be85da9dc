package capability

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cashflowly/mpesa-listener/internal/config"
)

func TestStatic(t *testing.T) {
	for _, want := range []bool{true, false} {
		got, err := Static(want).Granted(context.Background(), ReadSMS)
		if err != nil {
			t.Fatalf("static: %v", err)
		}
		if got != want {
			t.Fatalf("Static(%v) = %v", want, got)
		}
	}
}

func TestStaticHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Static(true).Granted(ctx, ReadSMS); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	home := t.TempDir()
	tests := []struct {
		name  string
		cfg   config.CapabilityConfig
		check func(t *testing.T, o Oracle)
	}{
		{
			name: "policy",
			cfg:  config.CapabilityConfig{Oracle: config.OraclePolicy},
			check: func(t *testing.T, o Oracle) {
				p, ok := o.(*Policy)
				if !ok {
					t.Fatalf("expected *Policy, got %T", o)
				}
				if p.Path != filepath.Join(home, "grants.json") {
					t.Fatalf("unexpected grants path %q", p.Path)
				}
			},
		},
		{
			name: "device",
			cfg:  config.CapabilityConfig{Oracle: config.OracleDevice, Device: "/dev/ttyUSB3"},
			check: func(t *testing.T, o Oracle) {
				d, ok := o.(*Device)
				if !ok || d.Path != "/dev/ttyUSB3" {
					t.Fatalf("expected device oracle for /dev/ttyUSB3, got %#v", o)
				}
			},
		},
		{
			name: "static",
			cfg:  config.CapabilityConfig{Oracle: config.OracleStatic, Granted: true},
			check: func(t *testing.T, o Oracle) {
				if s, ok := o.(Static); !ok || !bool(s) {
					t.Fatalf("expected Static(true), got %#v", o)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := FromConfig(&config.Config{HomeDir: home, Capability: tt.cfg})
			if err != nil {
				t.Fatalf("from config: %v", err)
			}
			tt.check(t, o)
		})
	}

	if _, err := FromConfig(&config.Config{Capability: config.CapabilityConfig{Oracle: "magic"}}); err == nil {
		t.Fatalf("expected error for unsupported oracle")
	}
	if _, err := FromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
