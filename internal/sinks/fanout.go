// Package sinks delivers notifications to their final destinations.
package sinks

import (
	"context"
	"errors"

	"github.com/cashflowly/mpesa-listener/internal/runtime"
)

// Fanout delivers every notification to all handlers in order. One failing
// handler does not stop the rest.
type Fanout []runtime.NotificationHandler

func (f Fanout) HandleNotification(ctx context.Context, n runtime.Notification) error {
	var errs []error
	for _, h := range f {
		if h == nil {
			continue
		}
		if err := h.HandleNotification(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
