package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cashflowly/mpesa-listener/internal/runtime"
)

const consolePrefix = "mpesa> "

// Console prints each notification on its own line.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console sink writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) HandleNotification(_ context.Context, n runtime.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, "%s%s\n", consolePrefix, n.Message); err != nil {
		return fmt.Errorf("write console notification: %w", err)
	}
	return nil
}
