package broker

import (
	"context"
	"encoding/json"
)

func marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Publisher is a short-lived handle opened around one enactment and closed
// immediately after, rather than a long-lived shared publisher — the
// lifecycle recovered from original_source/ (spec.md §11; §4.G step 1/6).
type Publisher struct {
	conn *Conn
}

// OpenPublisher opens a new ephemeral publisher for the enactment
// notification exchanges.
func (c *Conn) OpenPublisher(ctx context.Context) (*Publisher, error) {
	return &Publisher{conn: c}, nil
}

// PublishOpenStackEvent publishes a notification on the openstack_event
// exchange (spec.md §4.G steps 2 and 5).
func (p *Publisher) PublishOpenStackEvent(ctx context.Context, payload interface{}) error {
	return p.conn.publish(ctx, p.conn.cfg.OpenStackEventExchange, p.conn.cfg.OpenStackEventKey, payload)
}

// PublishAppFeedback publishes a notification on the app_feedback exchange
// (spec.md §4.G steps 2 and 5).
func (p *Publisher) PublishAppFeedback(ctx context.Context, payload interface{}) error {
	return p.conn.publish(ctx, p.conn.cfg.AppFeedbackExchange, p.conn.cfg.AppFeedbackKey, payload)
}

// PublishDeveloper publishes a Developer-kind adaptation request to the
// main exchange, name unchanged (spec.md §4.G Developer dispatch).
func (p *Publisher) PublishDeveloper(ctx context.Context, key string, payload interface{}) error {
	return p.conn.publish(ctx, p.conn.cfg.InboundExchange, key, payload)
}

// Close releases resources held by the publisher. AMQP channels in this
// client are opened per-publish, so Close is currently a no-op retained to
// keep the open/close lifecycle explicit at call sites.
func (p *Publisher) Close() error {
	return nil
}
