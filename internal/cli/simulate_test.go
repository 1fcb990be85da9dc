package cli

import (
	"strings"
	"testing"
)

func TestSimulateForwardsTrustedMessages(t *testing.T) {
	homeDir := createTestHome(t)
	writeValidConfig(t, homeDir)

	input := strings.Join([]string{
		`sms MPESA "QK12AB34 Confirmed. Ksh500.00 received"`,
		`sms +254700000001 "call me"`,
		`event SMS_SENT MPESA "outgoing copy"`,
		"/quit",
	}, "\n") + "\n"

	res, err := executeRoot(t, nil, input, "simulate")
	if err != nil {
		t.Fatalf("execute simulate: %v", err)
	}
	out := res.out.String()
	if !strings.Contains(out, "mpesa> QK12AB34 Confirmed. Ksh500.00 received") {
		t.Fatalf("expected forwarded confirmation, got %q", out)
	}
	for _, unwanted := range []string{"mpesa> call me", "mpesa> outgoing copy"} {
		if strings.Contains(out, unwanted) {
			t.Fatalf("unexpected forward %q in %q", unwanted, out)
		}
	}
	if strings.Count(out, "delivered ") != 3 {
		t.Fatalf("expected three delivered events, got %q", out)
	}
}

func TestSimulateEndsOnEOF(t *testing.T) {
	homeDir := createTestHome(t)
	writeValidConfig(t, homeDir)

	if _, err := executeRoot(t, nil, "", "simulate"); err != nil {
		t.Fatalf("execute simulate: %v", err)
	}
}
