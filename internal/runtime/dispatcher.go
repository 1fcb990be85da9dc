package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cashflowly/mpesa-listener/internal/capability"
	"github.com/cashflowly/mpesa-listener/internal/logging"
)

// Dispatcher filters parsed messages by sender and delivers matching bodies
// to the single registered subscriber.
type Dispatcher struct {
	oracle capability.Oracle
	slot   atomic.Pointer[Subscriber]
}

// NewDispatcher creates a dispatcher with an empty subscriber slot.
func NewDispatcher(oracle capability.Oracle) *Dispatcher {
	return &Dispatcher{oracle: oracle}
}

// Register replaces the current subscriber. A nil subscriber clears the slot.
func (d *Dispatcher) Register(sub Subscriber) {
	if sub == nil {
		d.slot.Store(nil)
		return
	}
	d.slot.Store(&sub)
}

// Registered reports whether a subscriber is currently set.
func (d *Dispatcher) Registered() bool {
	return d.slot.Load() != nil
}

// Ingest delivers msg.Body to the subscriber when msg comes from TrustedSender.
// Messages from other senders, or arriving with no subscriber, are dropped silently.
func (d *Dispatcher) Ingest(msg ParsedMessage) {
	if !IsTrustedSender(msg.Sender) {
		return
	}
	sub := d.slot.Load()
	if sub == nil {
		return
	}
	deliver(*sub, msg.Body)
}

func deliver(sub Subscriber, body string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger().Error("subscriber panicked", "panic", fmt.Sprint(r))
		}
	}()
	sub(body)
}

// CheckCapability asks the oracle whether messages can currently be received.
// An oracle failure is returned as an error rather than as a denial.
func (d *Dispatcher) CheckCapability(ctx context.Context) (bool, error) {
	if d.oracle == nil {
		return false, errors.New("capability oracle is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	granted, err := d.oracle.Granted(ctx, capability.ReadSMS)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", capability.ReadSMS, err)
	}
	return granted, nil
}
