package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cashflowly/mpesa-listener/internal/runtime"
	"github.com/cashflowly/mpesa-listener/internal/sms"
)

type recordingIngestor struct {
	messages []runtime.ParsedMessage
}

func (r *recordingIngestor) Ingest(msg runtime.ParsedMessage) {
	r.messages = append(r.messages, msg)
}

func mustPDU(t *testing.T, sender, body string) []byte {
	t.Helper()
	pdu, err := sms.EncodeDeliver(sender, body, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("encode pdu: %v", err)
	}
	return pdu
}

func TestHandleEventDecodesFragmentsInOrder(t *testing.T) {
	ingestor := &recordingIngestor{}
	a := NewAdapter(ingestor, nil)

	a.HandleEvent(context.Background(), DeliveryEvent{
		ID:     "evt-1",
		Action: ActionSMSReceived,
		PDUs: [][]byte{
			mustPDU(t, "MPESA", "Ksh500 sent"),
			mustPDU(t, "OTHER", "spam"),
			mustPDU(t, "+254700000001", "hi"),
		},
	})

	want := []runtime.ParsedMessage{
		{Sender: "MPESA", Body: "Ksh500 sent"},
		{Sender: "OTHER", Body: "spam"},
		{Sender: "+254700000001", Body: "hi"},
	}
	if len(ingestor.messages) != len(want) {
		t.Fatalf("expected %d messages, got %#v", len(want), ingestor.messages)
	}
	for i := range want {
		if ingestor.messages[i] != want[i] {
			t.Fatalf("message %d = %#v, want %#v", i, ingestor.messages[i], want[i])
		}
	}
}

func TestHandleEventSkipsMalformedFragment(t *testing.T) {
	ingestor := &recordingIngestor{}
	a := NewAdapter(ingestor, nil)

	a.HandleEvent(context.Background(), DeliveryEvent{
		Action: ActionSMSReceived,
		PDUs: [][]byte{
			{0x07, 0x91, 0x13},
			nil,
			mustPDU(t, "MPESA", "Ksh500 sent"),
		},
	})

	if len(ingestor.messages) != 1 || ingestor.messages[0].Body != "Ksh500 sent" {
		t.Fatalf("expected valid fragment after malformed ones, got %#v", ingestor.messages)
	}
}

func TestHandleEventIgnoresOtherActions(t *testing.T) {
	ingestor := &recordingIngestor{}
	decodes := 0
	a := NewAdapter(ingestor, func(pdu []byte) (sms.Message, error) {
		decodes++
		return sms.Decode(pdu)
	})

	for _, action := range []string{"", "android.provider.Telephony.SMS_DELIVER", "android.intent.action.BOOT_COMPLETED", "android.provider.telephony.sms_received"} {
		a.HandleEvent(context.Background(), DeliveryEvent{
			Action: action,
			PDUs:   [][]byte{mustPDU(t, "MPESA", "x")},
		})
	}

	if decodes != 0 || len(ingestor.messages) != 0 {
		t.Fatalf("expected other actions ignored, got %d decodes and %#v", decodes, ingestor.messages)
	}
}

func TestHandleEventWithoutFragments(t *testing.T) {
	ingestor := &recordingIngestor{}
	a := NewAdapter(ingestor, nil)

	a.HandleEvent(context.Background(), DeliveryEvent{Action: ActionSMSReceived})
	a.HandleEvent(context.Background(), DeliveryEvent{Action: ActionSMSReceived, PDUs: [][]byte{}})

	if len(ingestor.messages) != 0 {
		t.Fatalf("expected no messages, got %#v", ingestor.messages)
	}
}

func TestHandleEventUsesInjectedDecoder(t *testing.T) {
	ingestor := &recordingIngestor{}
	a := NewAdapter(ingestor, func(pdu []byte) (sms.Message, error) {
		if string(pdu) == "bad" {
			return sms.Message{}, errors.New("bad fragment")
		}
		return sms.Message{Sender: "MPESA", Body: string(pdu)}, nil
	})

	a.HandleEvent(context.Background(), DeliveryEvent{
		Action: ActionSMSReceived,
		PDUs:   [][]byte{[]byte("a"), []byte("bad"), []byte("b")},
	})

	if len(ingestor.messages) != 2 || ingestor.messages[0].Body != "a" || ingestor.messages[1].Body != "b" {
		t.Fatalf("unexpected messages %#v", ingestor.messages)
	}
}

func TestAdapterFeedsDispatcher(t *testing.T) {
	d := runtime.NewDispatcher(nil)
	var got []string
	d.Register(func(body string) { got = append(got, body) })
	a := NewAdapter(d, nil)

	a.HandleEvent(context.Background(), DeliveryEvent{
		Action: ActionSMSReceived,
		PDUs: [][]byte{
			mustPDU(t, "MPESA", "Ksh500 sent"),
			mustPDU(t, "OTHER", "spam"),
		},
	})

	if len(got) != 1 || got[0] != "Ksh500 sent" {
		t.Fatalf("expected exactly one notification, got %#v", got)
	}
}

func TestAdapterNoSubscriberNoPanic(t *testing.T) {
	a := NewAdapter(runtime.NewDispatcher(nil), nil)
	a.HandleEvent(context.Background(), DeliveryEvent{
		Action: ActionSMSReceived,
		PDUs:   [][]byte{mustPDU(t, "MPESA", "hello")},
	})
}
