package events

import (
	"context"

	"go.uber.org/zap"
)

// Handler processes a consumed domain event.
type Handler func(ctx context.Context, event DomainEvent) error

// LocalPublisher hands events straight to the handler that would
// otherwise sit behind the broker. Used for single-node deployments
// without RabbitMQ so the notification pipeline still runs.
type LocalPublisher struct {
	handler Handler
	logger  *zap.Logger
}

// NewLocalPublisher constructs a LocalPublisher.
func NewLocalPublisher(handler Handler, logger *zap.Logger) *LocalPublisher {
	return &LocalPublisher{handler: handler, logger: logger}
}

// Publish invokes the handler asynchronously, mirroring broker
// semantics: the publish path never waits on dispatch.
func (p *LocalPublisher) Publish(_ context.Context, routingKey string, event DomainEvent) error {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("local dispatch panic", zap.String("routing_key", routingKey), zap.Any("panic", r))
			}
		}()
		if err := p.handler(context.Background(), event); err != nil {
			p.logger.Error("local dispatch failed", zap.String("routing_key", routingKey), zap.Error(err))
		}
	}()
	return nil
}

func (p *LocalPublisher) Close() error {
	return nil
}
