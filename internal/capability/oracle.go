// Package capability answers whether the host currently lets this process
// receive text messages.
package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/cashflowly/mpesa-listener/internal/config"
)

// Permission names one host capability.
type Permission string

// ReadSMS is the capability required to receive incoming text messages.
const ReadSMS Permission = "android.permission.READ_SMS"

// ErrUnknownPermission is returned for permissions an oracle cannot answer.
var ErrUnknownPermission = errors.New("capability: unknown permission")

// Oracle reports the current state of a permission. It never requests one.
type Oracle interface {
	Granted(ctx context.Context, p Permission) (bool, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, p Permission) (bool, error)

// Granted calls f.
func (f OracleFunc) Granted(ctx context.Context, p Permission) (bool, error) {
	return f(ctx, p)
}

// Static answers every query with the same value.
type Static bool

// Granted returns bool(s) unless ctx is done.
func (s Static) Granted(ctx context.Context, _ Permission) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(s), nil
}

// FromConfig builds the oracle selected by cfg.Capability.Oracle.
func FromConfig(cfg *config.Config) (Oracle, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	switch cfg.Capability.Oracle {
	case config.OraclePolicy:
		return &Policy{Path: cfg.GrantsPath()}, nil
	case config.OracleDevice:
		return &Device{Path: cfg.Capability.Device}, nil
	case config.OracleStatic:
		return Static(cfg.Capability.Granted), nil
	default:
		return nil, fmt.Errorf("unsupported capability oracle %q", cfg.Capability.Oracle)
	}
}

func checkKnown(p Permission) error {
	if p != ReadSMS {
		return fmt.Errorf("%w: %q", ErrUnknownPermission, p)
	}
	return nil
}
