package notify

import (
	"context"

	"messaging-service/internal/events"
)

// EventHandler adapts the dispatcher to the domain event stream.
func EventHandler(d *Dispatcher) events.Handler {
	return func(ctx context.Context, event events.DomainEvent) error {
		_, err := d.Dispatch(ctx, Event{
			RecipientID:    event.RecipientID,
			SenderID:       event.SenderID,
			Type:           event.Type,
			Priority:       event.Priority,
			Title:          event.Title,
			Body:           event.Body,
			Data:           event.Data,
			ListingID:      event.ListingID,
			ConversationID: event.ConversationID,
			MessageID:      event.MessageID,
		})
		return err
	}
}
