//go:build unix

package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Device grants ReadSMS when the process can open the modem device at Path
// for reading.
type Device struct {
	Path string
}

// Granted checks read access with access(2). Permission errors mean denied;
// any other failure, including a missing device, is returned as an error.
func (d *Device) Granted(ctx context.Context, p Permission) (bool, error) {
	if err := checkKnown(p); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path := strings.TrimSpace(d.Path)
	if path == "" {
		return false, errors.New("device path is required")
	}

	err := unix.Access(path, unix.R_OK)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return false, nil
	default:
		return false, fmt.Errorf("access %q: %w", path, err)
	}
}
