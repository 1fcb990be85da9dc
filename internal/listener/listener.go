// Package listener wires a transport source, the dispatcher and a capability
// oracle into one explicitly constructed core.
package listener

import (
	"context"
	"errors"
	"fmt"

	"github.com/cashflowly/mpesa-listener/internal/capability"
	"github.com/cashflowly/mpesa-listener/internal/logging"
	"github.com/cashflowly/mpesa-listener/internal/runtime"
	"github.com/cashflowly/mpesa-listener/internal/transport"
)

// Deps are the collaborators injected into New.
type Deps struct {
	// Source delivers raw SMS events. It may be nil when events are injected
	// through HandleEvent only.
	Source transport.Source
	Oracle capability.Oracle
	// Decode overrides the fragment decoder; nil uses sms.Decode.
	Decode transport.DecodeFunc
}

// Listener is the message ingestion core.
type Listener struct {
	source     transport.Source
	dispatcher *runtime.Dispatcher
	adapter    *transport.Adapter
}

// New builds a Listener with an empty subscriber slot.
func New(deps Deps) (*Listener, error) {
	if deps.Oracle == nil {
		return nil, errors.New("capability oracle is required")
	}
	dispatcher := runtime.NewDispatcher(deps.Oracle)
	return &Listener{
		source:     deps.Source,
		dispatcher: dispatcher,
		adapter:    transport.NewAdapter(dispatcher, deps.Decode),
	}, nil
}

// Register replaces the subscriber receiving trusted message bodies.
func (l *Listener) Register(sub runtime.Subscriber) {
	l.dispatcher.Register(sub)
}

// CheckCapability reports whether the host grants the SMS read capability.
func (l *Listener) CheckCapability(ctx context.Context) (runtime.CapabilityResponse, error) {
	granted, err := l.dispatcher.CheckCapability(ctx)
	if err != nil {
		return runtime.CapabilityResponse{}, err
	}
	return runtime.CapabilityResponse{Granted: granted}, nil
}

// HandleEvent processes one delivery event synchronously.
func (l *Listener) HandleEvent(ctx context.Context, evt transport.DeliveryEvent) {
	l.adapter.HandleEvent(ctx, evt)
}

// Listen subscribes to the source and blocks until ctx is done or the
// source fails.
func (l *Listener) Listen(ctx context.Context) error {
	if l.source == nil {
		return errors.New("listener has no source")
	}
	if !l.dispatcher.Registered() {
		logging.Logger().Warn("listening without a subscriber; trusted messages will be dropped")
	}
	if err := l.source.Listen(ctx, l.adapter); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
