package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/push"
	"messaging-service/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateOrGet(ctx context.Context, userID, otherID int64, listingID *int64) (models.Conversation, error) {
	args := m.Called(ctx, userID, otherID, listingID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetByID(ctx context.Context, conversationID int64) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) UpdateLastMessage(ctx context.Context, conversationID int64, preview string, senderID int64, msgType models.MessageType, sentAt time.Time) error {
	args := m.Called(ctx, conversationID, preview, senderID, msgType, sentAt)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) IncrementUnread(ctx context.Context, conversationID, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ResetUnread(ctx context.Context, conversationID, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) TotalUnread(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *ConversationRepositoryMock) Delete(ctx context.Context, conversationID int64) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, nm repositories.NewMessage) (models.Message, error) {
	args := m.Called(ctx, nm)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetByID(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListForConversation(ctx context.Context, conversationID int64, includeDeleted bool, limit int, beforeID int64) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, includeDeleted, limit, beforeID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID int64) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, conversationID, readerID int64, messageIDs []int64) ([]int64, error) {
	args := m.Called(ctx, conversationID, readerID, messageIDs)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadIDs(ctx context.Context, conversationID, readerID int64) ([]int64, error) {
	args := m.Called(ctx, conversationID, readerID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID, senderID int64) (bool, error) {
	args := m.Called(ctx, messageID, senderID)
	return args.Bool(0), args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, n repositories.NewNotification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var notif models.Notification
	if val := args.Get(0); val != nil {
		notif = val.(models.Notification)
	}
	return notif, args.Error(1)
}

func (m *NotificationRepositoryMock) ListForRecipient(ctx context.Context, recipientID int64, filter repositories.NotificationFilter) ([]models.Notification, error) {
	args := m.Called(ctx, recipientID, filter)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) UndeliveredSince(ctx context.Context, recipientID int64, since time.Time) ([]models.Notification, error) {
	args := m.Called(ctx, recipientID, since)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, recipientID int64, ids []int64) (int64, error) {
	args := m.Called(ctx, recipientID, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkDelivered(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) Delete(ctx context.Context, recipientID, id int64) error {
	args := m.Called(ctx, recipientID, id)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).(int64), args.Error(1)
}

type TokenRepositoryMock struct {
	mock.Mock
}

func (m *TokenRepositoryMock) Upsert(ctx context.Context, userID int64, token, endpointARN, platform string) (models.DeviceToken, error) {
	args := m.Called(ctx, userID, token, endpointARN, platform)
	var dt models.DeviceToken
	if val := args.Get(0); val != nil {
		dt = val.(models.DeviceToken)
	}
	return dt, args.Error(1)
}

func (m *TokenRepositoryMock) ActiveForUser(ctx context.Context, userID int64) ([]models.DeviceToken, error) {
	args := m.Called(ctx, userID)
	var list []models.DeviceToken
	if val := args.Get(0); val != nil {
		list = val.([]models.DeviceToken)
	}
	return list, args.Error(1)
}

func (m *TokenRepositoryMock) Deactivate(ctx context.Context, tokens []string) (int64, error) {
	args := m.Called(ctx, tokens)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TokenRepositoryMock) Remove(ctx context.Context, userID int64, token string) (string, error) {
	args := m.Called(ctx, userID, token)
	return args.String(0), args.Error(1)
}

func (m *TokenRepositoryMock) DeactivateStale(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).(int64), args.Error(1)
}

type PreferenceRepositoryMock struct {
	mock.Mock
}

func (m *PreferenceRepositoryMock) Get(ctx context.Context, userID int64) (models.Preferences, error) {
	args := m.Called(ctx, userID)
	var prefs models.Preferences
	if val := args.Get(0); val != nil {
		prefs = val.(models.Preferences)
	}
	return prefs, args.Error(1)
}

func (m *PreferenceRepositoryMock) Upsert(ctx context.Context, prefs models.Preferences) (models.Preferences, error) {
	args := m.Called(ctx, prefs)
	var saved models.Preferences
	if val := args.Get(0); val != nil {
		saved = val.(models.Preferences)
	}
	return saved, args.Error(1)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) VerifyToken(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

type PushSenderMock struct {
	mock.Mock
}

func (m *PushSenderMock) SendToTokens(ctx context.Context, tokens []models.DeviceToken, payload push.Payload) push.Result {
	args := m.Called(ctx, tokens, payload)
	var res push.Result
	if val := args.Get(0); val != nil {
		res = val.(push.Result)
	}
	return res
}

func (m *PushSenderMock) RegisterToken(ctx context.Context, platform, token string) (string, error) {
	args := m.Called(ctx, platform, token)
	return args.String(0), args.Error(1)
}

func (m *PushSenderMock) Unregister(ctx context.Context, endpointARN string) error {
	args := m.Called(ctx, endpointARN)
	return args.Error(0)
}

type CooldownStoreMock struct {
	mock.Mock
}

func (m *CooldownStoreMock) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, window)
	return args.Bool(0), args.Error(1)
}

// LiveMock stands in for the hub in service and dispatcher tests.
type LiveMock struct {
	mock.Mock
}

func (m *LiveMock) BroadcastToRoom(conversationID int64, event string, data interface{}, exclude presence.Handle) {
	m.Called(conversationID, event, data, exclude)
}

func (m *LiveMock) SendToUser(userID int64, event string, data interface{}) int {
	args := m.Called(userID, event, data)
	return args.Int(0)
}

func (m *LiveMock) IsOnline(userID int64) bool {
	args := m.Called(userID)
	return args.Bool(0)
}
