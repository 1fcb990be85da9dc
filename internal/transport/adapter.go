package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/cashflowly/mpesa-listener/internal/logging"
	"github.com/cashflowly/mpesa-listener/internal/runtime"
	"github.com/cashflowly/mpesa-listener/internal/sms"
)

// Adapter decodes each fragment of an SMS_RECEIVED event and hands the
// result to an Ingestor, in fragment order.
type Adapter struct {
	ingestor runtime.Ingestor
	decode   DecodeFunc
}

// NewAdapter creates an adapter. A nil decode uses sms.Decode.
func NewAdapter(ingestor runtime.Ingestor, decode DecodeFunc) *Adapter {
	if decode == nil {
		decode = sms.Decode
	}
	return &Adapter{ingestor: ingestor, decode: decode}
}

// HandleEvent processes one delivery event. Events with another action are
// ignored. A fragment that fails to decode is skipped.
func (a *Adapter) HandleEvent(_ context.Context, evt DeliveryEvent) {
	if evt.Action != ActionSMSReceived || len(evt.PDUs) == 0 {
		return
	}
	if a.ingestor == nil {
		return
	}
	eventID := evt.ID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	logger := logging.Logger()
	for i, pdu := range evt.PDUs {
		msg, err := a.decode(pdu)
		if err != nil {
			logger.Warn("skipping malformed sms fragment", "event_id", eventID, "fragment", i, "err", err)
			continue
		}
		logger.Debug("sms received", "event_id", eventID, "fragment", i, "sender", msg.Sender)
		a.ingestor.Ingest(runtime.ParsedMessage{Sender: msg.Sender, Body: msg.Body})
	}
}
