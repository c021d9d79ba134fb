// Package broker wraps the AMQP topic exchange the engine speaks to
// (spec.md §6): inbound event/heat delivery, heat reply routing, and the
// outbound openstack_event/app_feedback notification exchanges. The client
// is github.com/rabbitmq/amqp091-go — the de facto standard Go AMQP
// client; no example in the retrieved corpus touches a message broker, so
// this dependency is named rather than grounded (see DESIGN.md).
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config describes how to reach the broker and which exchanges/keys to use.
type Config struct {
	URL string

	InboundExchange string
	InboundQueue    string
	InboundKey      string

	// ReplyKeyTemplate contains a literal "{resource_id}" placeholder,
	// substituted per reply (spec.md §6, recovered reply-routing-key
	// scheme from original_source/rabbitmq.py).
	ReplyKeyTemplate string
	ReplyExchange    string

	OpenStackEventExchange string
	OpenStackEventKey      string
	AppFeedbackExchange    string
	AppFeedbackKey         string
}

// ReplyKey substitutes {resource_id} into the configured template.
func ReplyKey(template, resourceID string) string {
	return strings.ReplaceAll(template, "{resource_id}", resourceID)
}

// Conn is a long-lived AMQP connection shared by the Event Router's
// consumer loop, heat replies, and the Enactor's ephemeral publishers.
type Conn struct {
	cfg  Config
	conn *amqp.Connection
	mu   sync.Mutex
}

// Dial opens the AMQP connection.
func Dial(cfg Config) (*Conn, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("broker: dialing %s: %w", redactURL(cfg.URL), err)
	}
	return &Conn{cfg: cfg, conn: conn}, nil
}

func redactURL(url string) string {
	if i := strings.Index(url, "@"); i != -1 {
		return "amqp://***" + url[i:]
	}
	return url
}

// Close closes the underlying AMQP connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Healthy reports whether the connection is open, for the --healthcheck
// CLI path.
func (c *Conn) Healthy() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// MessageHandler processes one inbound delivery body. A returned error
// only reflects malformed input; it is never used to requeue/retry the
// message (spec.md §7: InvalidMessage is logged and dropped).
type MessageHandler func(ctx context.Context, body []byte) error

// Consume starts consuming cfg.InboundQueue and invokes handler for every
// delivery, acking regardless of handler outcome (the engine never retries
// a delivery). It blocks until ctx is cancelled.
func (c *Conn) Consume(ctx context.Context, handler MessageHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("broker: opening channel: %w", err)
	}
	defer ch.Close()

	deliveries, err := ch.ConsumeWithContext(ctx, c.cfg.InboundQueue, "adaptationengine", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consuming %s: %w", c.cfg.InboundQueue, err)
	}

	logger := slog.With("component", "broker")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("broker: delivery channel closed")
			}
			if err := handler(ctx, d.Body); err != nil {
				logger.Error("Message handler returned error", "error", err)
			}
			if err := d.Ack(false); err != nil {
				logger.Error("Ack failed", "error", err)
			}
		}
	}
}

// ReplyToHeat publishes a JSON reply to the heat reply key for resourceID
// (spec.md §4.B: "Each emits exactly one reply via the broker, keyed by the
// inbound resource id").
func (c *Conn) ReplyToHeat(ctx context.Context, resourceID string, reply interface{}) error {
	key := ReplyKey(c.cfg.ReplyKeyTemplate, resourceID)
	return c.publish(ctx, c.cfg.ReplyExchange, key, reply)
}

func (c *Conn) publish(ctx context.Context, exchange, key string, payload interface{}) error {
	body, err := marshal(payload)
	if err != nil {
		return fmt.Errorf("broker: encoding publish payload: %w", err)
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("broker: opening publish channel: %w", err)
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
