package events

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer drains the dispatch queue and feeds each event to the
// handler. Malformed messages are dropped; handler errors are logged
// and the message acked anyway, since notification dispatch is
// best-effort and redelivery would re-run cooldown checks for nothing.
type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	handler Handler
	logger  *zap.Logger
}

// NewConsumer connects, declares the queue and binds it to the topic
// exchange with a wildcard key.
func NewConsumer(amqpURL, exchange, queue string, handler Handler, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(queue, "#", exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch, queue: queue, handler: handler, logger: logger}, nil
}

// Run consumes until the context is cancelled or the delivery channel
// closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("event consumer started", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var event DomainEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Error("malformed event dropped", zap.String("routing_key", d.RoutingKey), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := c.handler(ctx, event); err != nil {
		c.logger.Error("event dispatch failed", zap.String("routing_key", d.RoutingKey), zap.Error(err))
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
