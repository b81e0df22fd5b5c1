package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Routing keys for domain events on the topic exchange. This service
// only produces MessageSent; the other keys document what the listing
// and offer services publish, and the dispatch queue binds "#" so it
// consumes all of them.
const (
	MessageSent    = "message.sent"
	InquiryCreated = "inquiry.created"
	OfferCreated   = "offer.created"
	OfferAccepted  = "offer.accepted"
	ListingLiked   = "listing.liked"
	ListingViewed  = "listing.viewed"
	ProductUpdated = "product.updated"
)

// DomainEvent is the wire format of marketplace events that feed the
// notification dispatcher.
type DomainEvent struct {
	Name           string                  `json:"name"`
	OccurredAt     time.Time               `json:"occurred_at"`
	RecipientID    int64                   `json:"recipient_id"`
	SenderID       *int64                  `json:"sender_id,omitempty"`
	Type           models.NotificationType `json:"type"`
	Priority       models.Priority         `json:"priority"`
	Title          string                  `json:"title"`
	Body           string                  `json:"body"`
	Data           models.NotificationData `json:"data"`
	ListingID      *int64                  `json:"listing_id,omitempty"`
	ConversationID *int64                  `json:"conversation_id,omitempty"`
	MessageID      *int64                  `json:"message_id,omitempty"`
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event DomainEvent) error
	Close() error
}

// NewAMQPPublisher builds a RabbitMQ publisher. Returns ok=false when
// the broker is unreachable so the caller can fall back to local
// dispatch instead of silently dropping events.
func NewAMQPPublisher(amqpURL, exchange string, logger *zap.Logger) (Publisher, bool) {
	if amqpURL == "" {
		return nil, false
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Warn("rabbitmq unavailable", zap.Error(err))
		return nil, false
	}

	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("rabbitmq channel failed", zap.Error(err))
		_ = conn.Close()
		return nil, false
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		logger.Warn("rabbitmq exchange declare failed", zap.Error(err))
		_ = ch.Close()
		_ = conn.Close()
		return nil, false
	}

	logger.Info("rabbitmq connected", zap.String("exchange", exchange))
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}, true
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *zap.Logger
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event DomainEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		observability.IncAMQPPublishError()
		p.logger.Error("rabbitmq publish failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
