package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/models"
)

func TestLocalPublisherInvokesHandler(t *testing.T) {
	received := make(chan DomainEvent, 1)
	publisher := NewLocalPublisher(func(_ context.Context, event DomainEvent) error {
		received <- event
		return nil
	}, zap.NewNop())

	event := DomainEvent{
		Name:        MessageSent,
		RecipientID: 2,
		Type:        models.NotifNewMessage,
		Priority:    models.PriorityHigh,
	}
	require.NoError(t, publisher.Publish(context.Background(), MessageSent, event))

	select {
	case got := <-received:
		assert.Equal(t, int64(2), got.RecipientID)
		assert.Equal(t, models.NotifNewMessage, got.Type)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestLocalPublisherSurvivesHandlerPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	publisher := NewLocalPublisher(func(context.Context, DomainEvent) error {
		defer wg.Done()
		panic("boom")
	}, zap.NewNop())

	require.NoError(t, publisher.Publish(context.Background(), MessageSent, DomainEvent{RecipientID: 2}))
	wg.Wait()

	// A panicking handler must not take the process down or poison the
	// publisher for the next event.
	done := make(chan struct{})
	ok := NewLocalPublisher(func(context.Context, DomainEvent) error {
		close(done)
		return nil
	}, zap.NewNop())
	require.NoError(t, ok.Publish(context.Background(), MessageSent, DomainEvent{RecipientID: 3}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subsequent publish did not dispatch")
	}
}
