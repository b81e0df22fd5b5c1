package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/events"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
)

var (
	ErrNotParticipant = errors.New("user is not a conversation participant")
	ErrEmptyMessage   = errors.New("message has no content")
)

const previewLength = 80

// LiveBroadcaster is the hub surface the service needs: room fan-out plus
// the authoritative per-user personal channel.
type LiveBroadcaster interface {
	BroadcastToRoom(conversationID int64, event string, data interface{}, exclude presence.Handle)
	SendToUser(userID int64, event string, data interface{}) int
	IsOnline(userID int64) bool
}

// SendRequest carries everything needed to send a message. Either
// ConversationID or ReceiverID must be set; with only ReceiverID the
// conversation is created lazily on first contact.
type SendRequest struct {
	SenderID       int64
	ReceiverID     int64
	ConversationID int64
	ListingID      *int64
	Type           models.MessageType
	Content        string
	ImageURL       string
	ReplyToID      *int64
}

// Service implements the message delivery state machine: it creates
// messages in state "sent", advances them to "delivered" and "read"
// monotonically, and emits the matching live receipts.
type Service struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	live          LiveBroadcaster
	publisher     events.Publisher
	logger        *zap.Logger
}

// NewService constructs a Service.
func NewService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, live LiveBroadcaster, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		live:          live,
		publisher:     publisher,
		logger:        logger,
	}
}

// Send creates the message, refreshes the conversation snapshot, bumps
// the receiver's unread counter, broadcasts the live event and publishes
// the post-commit domain event. The message is marked delivered when the
// receiver holds at least one live connection at broadcast time; an
// explicit client acknowledgment funnels into the same transition.
func (s *Service) Send(ctx context.Context, req SendRequest, origin presence.Handle) (models.Message, error) {
	if req.Content == "" && req.ImageURL == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if req.Type == "" {
		req.Type = models.MessageText
	}

	conv, err := s.resolveConversation(ctx, req)
	if err != nil {
		return models.Message{}, err
	}
	receiverID := conv.OtherParticipant(req.SenderID)

	replyPreview := ""
	if req.ReplyToID != nil {
		if replied, rerr := s.messages.GetByID(ctx, *req.ReplyToID); rerr == nil {
			replyPreview = truncate(replied.Content, previewLength)
		}
	}

	msg, err := s.messages.Create(ctx, repositories.NewMessage{
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		ReceiverID:     receiverID,
		ListingID:      req.ListingID,
		Type:           req.Type,
		Content:        req.Content,
		ImageURL:       req.ImageURL,
		ReplyToID:      req.ReplyToID,
		ReplyPreview:   replyPreview,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}

	// Snapshot and counter updates are side channels of the already
	// persisted message: log failures, never roll back.
	if err := s.conversations.UpdateLastMessage(ctx, conv.ID, truncate(req.Content, previewLength), req.SenderID, req.Type, msg.CreatedAt); err != nil {
		s.logger.Error("update conversation snapshot failed", zap.Int64("conversation_id", conv.ID), zap.Error(err))
	}
	if err := s.conversations.IncrementUnread(ctx, conv.ID, receiverID); err != nil {
		s.logger.Error("increment unread failed", zap.Int64("conversation_id", conv.ID), zap.Error(err))
	}

	s.live.BroadcastToRoom(conv.ID, models.EventNewMessage, msg, origin)
	s.live.SendToUser(receiverID, models.EventNewMessage, msg)

	if s.live.IsOnline(receiverID) {
		s.markDelivered(ctx, &msg)
	}

	s.publishMessageSent(ctx, conv, msg)
	return msg, nil
}

func (s *Service) resolveConversation(ctx context.Context, req SendRequest) (models.Conversation, error) {
	if req.ConversationID != 0 {
		conv, err := s.conversations.GetByID(ctx, req.ConversationID)
		if err != nil {
			return models.Conversation{}, err
		}
		if !conv.Participant(req.SenderID) {
			return models.Conversation{}, ErrNotParticipant
		}
		return conv, nil
	}
	return s.conversations.CreateOrGet(ctx, req.SenderID, req.ReceiverID, req.ListingID)
}

// AcknowledgeDelivered applies a client delivery acknowledgment. Only the
// receiver may acknowledge; re-acknowledging or acknowledging a read
// message is a no-op.
func (s *Service) AcknowledgeDelivered(ctx context.Context, messageID, userID int64) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != userID {
		return ErrNotParticipant
	}
	s.markDelivered(ctx, &msg)
	return nil
}

// markDelivered advances sent -> delivered and emits the receipt to the
// sender's personal channel. Persistence failure is logged only; the
// live event already went out best-effort.
func (s *Service) markDelivered(ctx context.Context, msg *models.Message) {
	transitioned, err := s.messages.MarkDelivered(ctx, msg.ID)
	if err != nil {
		s.logger.Error("record delivery failed", zap.Int64("message_id", msg.ID), zap.Error(err))
		return
	}
	if !transitioned {
		return
	}
	msg.Status = models.StatusDelivered
	s.live.SendToUser(msg.SenderID, models.EventMessageDelivered, models.MessageDeliveredEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
	})
}

// MarkRead applies a batched read acknowledgment from the reader: the
// listed messages move to read (idempotently), the reader's unread
// counter resets to zero, and a read receipt goes to the room and the
// sender's personal channel.
func (s *Service) MarkRead(ctx context.Context, conversationID, readerID int64, messageIDs []int64) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.Participant(readerID) {
		return ErrNotParticipant
	}

	updated, err := s.messages.MarkRead(ctx, conversationID, readerID, messageIDs)
	if err != nil {
		s.logger.Error("record read failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		return nil
	}

	if err := s.conversations.ResetUnread(ctx, conversationID, readerID); err != nil {
		s.logger.Error("reset unread failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
	}

	if len(updated) == 0 {
		return nil
	}

	receipt := models.MessagesReadEvent{
		MessageIDs:     updated,
		ReadBy:         readerID,
		ConversationID: conversationID,
	}
	s.live.BroadcastToRoom(conversationID, models.EventMessagesRead, receipt, nil)
	s.live.SendToUser(conv.OtherParticipant(readerID), models.EventMessagesRead, receipt)

	if total, terr := s.conversations.TotalUnread(ctx, readerID); terr == nil {
		s.live.SendToUser(readerID, models.EventUnreadCountUpdate, models.UnreadCountEvent{Count: total})
	}
	return nil
}

// MarkConversationRead marks every unread message of the reader in the
// conversation, for the HTTP mark-read endpoint.
func (s *Service) MarkConversationRead(ctx context.Context, conversationID, readerID int64) error {
	ids, err := s.messages.UnreadIDs(ctx, conversationID, readerID)
	if err != nil {
		return err
	}
	return s.MarkRead(ctx, conversationID, readerID, ids)
}

// Delete soft-deletes a message owned by the caller and notifies the
// room and the receiver.
func (s *Service) Delete(ctx context.Context, messageID, userID int64) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrNotParticipant
	}

	deleted, err := s.messages.SoftDelete(ctx, messageID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}

	event := models.MessageDeletedEvent{MessageID: messageID, ConversationID: msg.ConversationID}
	s.live.BroadcastToRoom(msg.ConversationID, models.EventMessageDeleted, event, nil)
	s.live.SendToUser(msg.ReceiverID, models.EventMessageDeleted, event)
	return nil
}

// DeleteConversation hard-deletes the conversation; messages cascade.
func (s *Service) DeleteConversation(ctx context.Context, conversationID, userID int64) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.Participant(userID) {
		return ErrNotParticipant
	}
	return s.conversations.Delete(ctx, conversationID)
}

// publishMessageSent emits the post-commit domain event the notification
// dispatcher consumes. Publish failures never fail the send.
func (s *Service) publishMessageSent(ctx context.Context, conv models.Conversation, msg models.Message) {
	senderID := msg.SenderID
	event := events.DomainEvent{
		Name:        events.MessageSent,
		OccurredAt:  time.Now().UTC(),
		RecipientID: msg.ReceiverID,
		SenderID:    &senderID,
		Type:        models.NotifNewMessage,
		Priority:    models.PriorityHigh,
		Title:       "New message",
		Body:        truncate(msg.Content, previewLength),
		Data: models.NotificationData{
			MessagePreview: truncate(msg.Content, previewLength),
		},
		ConversationID: &conv.ID,
		MessageID:      &msg.ID,
	}
	if conv.ListingID.Valid {
		listingID := conv.ListingID.Int64
		event.ListingID = &listingID
	}
	if err := s.publisher.Publish(ctx, events.MessageSent, event); err != nil {
		s.logger.Error("publish message.sent failed", zap.Int64("message_id", msg.ID), zap.Error(err))
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
