// Package transport turns raw SMS delivery events into parsed messages.
package transport

import (
	"context"

	"github.com/cashflowly/mpesa-listener/internal/sms"
)

// ActionSMSReceived is the only delivery action the adapter processes.
const ActionSMSReceived = "android.provider.Telephony.SMS_RECEIVED"

// DeliveryEvent is one delivery from an external transport. PDUs holds the
// raw fragments in arrival order.
type DeliveryEvent struct {
	ID     string
	Action string
	PDUs   [][]byte
}

// DecodeFunc extracts one message from a raw fragment.
type DecodeFunc func(pdu []byte) (sms.Message, error)

// EventSink receives delivery events from a Source.
type EventSink interface {
	HandleEvent(ctx context.Context, evt DeliveryEvent)
}

// Source is a subscription to an external transport. Listen delivers events
// to sink until ctx is done or the transport fails.
type Source interface {
	Listen(ctx context.Context, sink EventSink) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, sink EventSink) error

// Listen calls f.
func (f SourceFunc) Listen(ctx context.Context, sink EventSink) error {
	return f(ctx, sink)
}
