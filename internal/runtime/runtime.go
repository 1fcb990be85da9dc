// Package runtime holds the message ingestion and dispatch core.
package runtime

import (
	"context"
	"strings"
)

// TrustedSender is the only originating address whose messages are delivered.
const TrustedSender = "MPESA"

// ParsedMessage is the sender and body extracted from one inbound fragment.
type ParsedMessage struct {
	Sender string
	Body   string
}

// Subscriber receives the body of every message from the trusted sender.
// It is expected to return quickly.
type Subscriber func(body string)

// Notification is the payload handed to subscribers through the mailbox.
type Notification struct {
	Message string `json:"message"`
}

// CapabilityResponse is the result of a capability check.
type CapabilityResponse struct {
	Granted bool `json:"granted"`
}

// Ingestor accepts parsed messages from a transport.
type Ingestor interface {
	Ingest(msg ParsedMessage)
}

// NotificationHandler consumes notifications drained from a Mailbox.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, n Notification) error
}

// NotificationHandlerFunc adapts a function to NotificationHandler.
type NotificationHandlerFunc func(ctx context.Context, n Notification) error

// HandleNotification calls f.
func (f NotificationHandlerFunc) HandleNotification(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// IsTrustedSender reports whether sender matches TrustedSender, ignoring case.
func IsTrustedSender(sender string) bool {
	return strings.EqualFold(sender, TrustedSender)
}
