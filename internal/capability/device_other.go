//go:build !unix

package capability

import (
	"context"
	"errors"
)

// Device grants ReadSMS when the process can read the modem device at Path.
type Device struct {
	Path string
}

// Granted is unsupported on this platform.
func (d *Device) Granted(_ context.Context, p Permission) (bool, error) {
	if err := checkKnown(p); err != nil {
		return false, err
	}
	return false, errors.New("device capability oracle is not supported on this platform")
}
