package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/events"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func TestEventHandlerTranslatesDomainEvent(t *testing.T) {
	f := newDispatcherFixture()
	sender := int64(7)
	conversationID := int64(12)
	messageID := int64(90)
	stored := models.Notification{ID: 50, RecipientID: 3}

	f.cooldowns.On("Allow", mock.Anything, "7:3:new_message", 30*time.Second).Return(true, nil).Once()
	f.notifications.On("Create", mock.Anything, mock.MatchedBy(func(n repositories.NewNotification) bool {
		return n.RecipientID == 3 &&
			n.SenderID != nil && *n.SenderID == 7 &&
			n.Type == models.NotifNewMessage &&
			n.Title == "New message" &&
			n.Body == "see you at noon" &&
			n.ConversationID != nil && *n.ConversationID == 12 &&
			n.MessageID != nil && *n.MessageID == 90 &&
			n.Priority == models.PriorityHigh
	})).Return(stored, nil).Once()
	f.live.On("IsOnline", int64(3)).Return(false).Once()
	f.preferences.On("Get", mock.Anything, int64(3)).Return(models.DefaultPreferences(3), nil).Once()
	f.tokens.On("ActiveForUser", mock.Anything, int64(3)).Return([]models.DeviceToken(nil), nil).Once()

	handler := EventHandler(f.dispatcher)
	err := handler(context.Background(), events.DomainEvent{
		Name:           events.MessageSent,
		RecipientID:    3,
		SenderID:       &sender,
		Type:           models.NotifNewMessage,
		Priority:       models.PriorityHigh,
		Title:          "New message",
		Body:           "see you at noon",
		ConversationID: &conversationID,
		MessageID:      &messageID,
	})
	require.NoError(t, err)
	f.notifications.AssertExpectations(t)
}

func TestEventHandlerAppliesCategoryCooldown(t *testing.T) {
	f := newDispatcherFixture()
	sender := int64(7)
	listingID := int64(31)

	f.notifications.On("Create", mock.Anything, mock.Anything).Return(models.Notification{ID: 51, RecipientID: 3}, nil).Once()
	f.live.On("IsOnline", int64(3)).Return(false).Once()
	f.cooldowns.On("Allow", mock.Anything, "7:3:listing_liked", time.Hour).Return(false, nil).Once()

	handler := EventHandler(f.dispatcher)
	err := handler(context.Background(), events.DomainEvent{
		Name:        events.ListingLiked,
		RecipientID: 3,
		SenderID:    &sender,
		Type:        models.NotifListingLiked,
		Title:       "Someone liked your listing",
		ListingID:   &listingID,
	})
	require.NoError(t, err)
	f.cooldowns.AssertExpectations(t)
	f.sender.AssertNotCalled(t, "SendToTokens", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventHandlerPropagatesDispatchError(t *testing.T) {
	f := newDispatcherFixture()

	f.notifications.On("Create", mock.Anything, mock.Anything).Return(models.Notification{}, assert.AnError).Once()

	handler := EventHandler(f.dispatcher)
	err := handler(context.Background(), events.DomainEvent{
		RecipientID: 3,
		Type:        models.NotifNewMessage,
		Title:       "New message",
	})
	require.Error(t, err)
}
