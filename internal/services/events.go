package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/admitportal/apiserver/internal/logging"
	"github.com/admitportal/apiserver/internal/mq"
	"github.com/admitportal/apiserver/types"
)

// Event types published to the broker.
const (
	EventMessageSent      = "messages.sent"
	EventMessageReplied   = "messages.replied"
	EventDocumentUploaded = "documents.uploaded"
)

// Event is the JSON payload of a broker message.
type Event struct {
	Type     string          `json:"type"`
	Username string          `json:"username"`
	ID       string          `json:"id,omitempty"`
	Subject  string          `json:"subject,omitempty"`
	At       types.Timestamp `json:"at"`
}

// EventPublisher announces completed mutations to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Notifier publishes events on one broker channel. A nil Notifier, or one
// without a broker, drops events.
type Notifier struct {
	queue   *mq.MQ
	channel string
	log     logging.Logger
}

func NewNotifier(queue *mq.MQ, channel string, log logging.Logger) *Notifier {
	if log == nil {
		log = logging.Discard()
	}
	return &Notifier{queue: queue, channel: channel, log: log}
}

func (n *Notifier) Publish(ctx context.Context, event Event) error {
	if n == nil || n.queue == nil {
		return nil
	}
	_, err := n.queue.PublishJSON(ctx, n.channel, event, map[string]string{"type": event.Type})
	return err
}

// Consume passes each event on the channel to handle until ctx is done.
// Payloads that are not events are logged and acknowledged; a handle error
// asks the broker for redelivery. Without a broker it returns at once.
func (n *Notifier) Consume(ctx context.Context, handle func(ctx context.Context, event Event) error) error {
	if n == nil || n.queue == nil {
		return nil
	}
	err := n.queue.Subscribe(ctx, n.channel, func(ctx context.Context, msg mq.Message) error {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil || event.Type == "" {
			n.log.Warn(ctx, "discarding malformed event", "id", msg.ID, "error", err)
			return nil
		}
		return handle(ctx, event)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// LogEvent writes event to log. It is the handler behind the event log
// consumer.
func LogEvent(log logging.Logger) func(ctx context.Context, event Event) error {
	return func(ctx context.Context, event Event) error {
		log.Info(ctx, "portal event",
			"type", event.Type,
			"username", event.Username,
			"id", event.ID,
			"subject", event.Subject,
			"at", event.At.String(),
		)
		return nil
	}
}

// publish sends event through p, logging instead of failing: the change it
// announces has already been saved.
func publish(ctx context.Context, p EventPublisher, log logging.Logger, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		log.Warn(ctx, "event publish failed", "type", event.Type, "error", err)
	}
}
