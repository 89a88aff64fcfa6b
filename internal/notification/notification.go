package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindEmailConfirmation carries the link that stamps an address as verified.
	KindEmailConfirmation = "email_confirmation"
	// KindPasswordReset carries the password recovery link.
	KindPasswordReset = "password_reset"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Link        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of sending mail.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger. The link is only logged
// at debug level since it carries a bearer token.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination)
	n.logger.DebugContext(ctx, "notification link", "kind", message.Kind, "link", message.Link)
	return nil
}

// Outbox records messages in memory. Tests read links back from it.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

// Send appends the message.
func (o *Outbox) Send(_ context.Context, message Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, message)
	return nil
}

// Last returns the most recent message of kind sent to destination.
func (o *Outbox) Last(kind, destination string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		m := o.messages[i]
		if m.Kind == kind && m.Destination == destination {
			return m, true
		}
	}
	return Message{}, false
}

// Count returns how many messages were recorded.
func (o *Outbox) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}
