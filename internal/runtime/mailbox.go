package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cashflowly/mpesa-listener/internal/logging"
)

// Mailbox is an unbounded FIFO of notifications drained by its own goroutine.
// Posting never blocks, so a Mailbox subscriber keeps Ingest non-blocking.
type Mailbox struct {
	handler NotificationHandler

	wake chan struct{}
	done chan struct{}

	stateMu    sync.Mutex
	pending    []Notification
	started    bool
	running    bool
	currentRun context.CancelFunc
}

// NewMailbox creates a mailbox that delivers to handler once started.
func NewMailbox(handler NotificationHandler) *Mailbox {
	return &Mailbox{
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start begins draining the mailbox.
func (m *Mailbox) Start(ctx context.Context) error {
	if m == nil {
		return errors.New("mailbox is required")
	}
	if m.handler == nil {
		return errors.New("handler is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.stateMu.Lock()
	if m.started {
		m.stateMu.Unlock()
		return errors.New("mailbox already started")
	}
	m.started = true
	m.stateMu.Unlock()

	go m.run(ctx)
	return nil
}

// Post appends one notification. Notifications posted before Start are kept.
func (m *Mailbox) Post(n Notification) {
	m.stateMu.Lock()
	m.pending = append(m.pending, n)
	m.stateMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Subscriber returns a Subscriber that posts each body to the mailbox.
func (m *Mailbox) Subscriber() Subscriber {
	return func(body string) {
		m.Post(Notification{Message: body})
	}
}

// Len returns the number of notifications waiting to be handled.
func (m *Mailbox) Len() int {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return len(m.pending)
}

// Stop cancels the in-flight notification and drops everything pending.
func (m *Mailbox) Stop() {
	m.stateMu.Lock()
	cancel := m.currentRun
	m.currentRun = nil
	m.pending = nil
	m.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// WaitUntilIdle blocks until nothing is running and nothing is pending.
func (m *Mailbox) WaitUntilIdle(ctx context.Context) error {
	if m == nil {
		return errors.New("mailbox is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if m.isIdle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait blocks until the drain loop exits.
func (m *Mailbox) Wait() {
	if m == nil {
		return
	}
	<-m.done
}

func (m *Mailbox) run(ctx context.Context) {
	defer close(m.done)
	for {
		if ctx.Err() != nil {
			m.Stop()
			return
		}
		n, runCtx, ok := m.next(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				m.Stop()
				return
			case <-m.wake:
			}
			continue
		}
		m.handle(runCtx, n)
		m.finishRun()
	}
}

func (m *Mailbox) next(ctx context.Context) (Notification, context.Context, bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if len(m.pending) == 0 {
		return Notification{}, nil, false
	}
	n := m.pending[0]
	m.pending[0] = Notification{}
	m.pending = m.pending[1:]

	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.currentRun = cancel
	return n, runCtx, true
}

func (m *Mailbox) finishRun() {
	m.stateMu.Lock()
	cancel := m.currentRun
	m.currentRun = nil
	m.running = false
	m.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (m *Mailbox) handle(ctx context.Context, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger().Error("notification handler panicked", "panic", fmt.Sprint(r))
		}
	}()
	err := m.handler.HandleNotification(ctx, n)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	logging.Logger().Error("notification handling failed", "err", err)
}

func (m *Mailbox) isIdle() bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if !m.started {
		return true
	}
	return !m.running && len(m.pending) == 0
}
