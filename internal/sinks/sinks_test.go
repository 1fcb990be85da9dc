package sinks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cashflowly/mpesa-listener/internal/runtime"
)

func TestConsoleWritesPrefixedLine(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)

	if err := c.HandleNotification(context.Background(), runtime.Notification{Message: "Ksh500 sent"}); err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	if got := out.String(); got != "mpesa> Ksh500 sent\n" {
		t.Fatalf("unexpected console output %q", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestConsoleWriteError(t *testing.T) {
	if err := NewConsole(failingWriter{}).HandleNotification(context.Background(), runtime.Notification{}); err == nil {
		t.Fatal("expected write error")
	}
}

func TestFanoutDeliversToAllAndJoinsErrors(t *testing.T) {
	var first, last bytes.Buffer
	errA := errors.New("sink a failed")
	f := Fanout{
		NewConsole(&first),
		runtime.NotificationHandlerFunc(func(context.Context, runtime.Notification) error { return errA }),
		nil,
		NewConsole(&last),
	}

	err := f.HandleNotification(context.Background(), runtime.Notification{Message: "x"})
	if !errors.Is(err, errA) {
		t.Fatalf("expected joined error to include sink failure, got %v", err)
	}
	if !strings.Contains(first.String(), "x") || !strings.Contains(last.String(), "x") {
		t.Fatalf("expected every sink to receive the notification")
	}
}

func TestFanoutEmpty(t *testing.T) {
	if err := (Fanout{}).HandleNotification(context.Background(), runtime.Notification{Message: "x"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
