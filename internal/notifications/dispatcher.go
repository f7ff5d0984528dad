package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
)

// MailKind labels the transactional mail templates the mailer renders.
type MailKind string

const (
	// MailKindOrderConfirmation is sent after checkout creates the order.
	MailKindOrderConfirmation MailKind = "order_confirmation"
	// MailKindPaymentReceipt is sent once a payment is verified.
	MailKindPaymentReceipt MailKind = "payment_receipt"
	// MailKindDelivered is sent when an admin marks the order delivered.
	MailKindDelivered MailKind = "order_delivered"
	// MailKindAdminMessage is a free-form admin-to-customer message.
	MailKindAdminMessage MailKind = "admin_message"
)

// MailIntent describes a transactional mail for the out-of-process mailer.
type MailIntent struct {
	To      string   `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Kind    MailKind `json:"kind"`
	OrderID string   `json:"orderId,omitempty"`
}

// Dispatcher hands mail intents to the delivery pipeline. Implementations
// must be safe to call after the triggering state transition has committed;
// callers treat failures as non-fatal.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent MailIntent) error
}

// PubSubDispatcher publishes mail intents to a Pub/Sub topic consumed by the
// mailer worker.
type PubSubDispatcher struct {
	topic   *pubsub.Topic
	from    string
	marshal func(any) ([]byte, error)
}

// NewPubSubDispatcher constructs a Pub/Sub backed mail dispatcher.
func NewPubSubDispatcher(topic *pubsub.Topic, from string) (*PubSubDispatcher, error) {
	if topic == nil {
		return nil, errors.New("pubsub mail dispatcher: topic is required")
	}
	return &PubSubDispatcher{
		topic:   topic,
		from:    strings.TrimSpace(from),
		marshal: json.Marshal,
	}, nil
}

// Dispatch enqueues the mail intent on the configured topic.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, intent MailIntent) error {
	if d == nil || d.topic == nil {
		return errors.New("pubsub mail dispatcher: not initialised")
	}
	if strings.TrimSpace(intent.To) == "" {
		return errors.New("pubsub mail dispatcher: recipient is required")
	}

	data, err := d.marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal mail intent: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "kind", string(intent.Kind))
	setAttr(attrs, "orderId", intent.OrderID)
	setAttr(attrs, "from", d.from)

	result := d.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish mail intent: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
