package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// MessageHandler serves conversation and message endpoints.
type MessageHandler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	service       *messaging.Service
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(conversations repositories.ConversationRepository, messages repositories.MessageRepository, service *messaging.Service) *MessageHandler {
	return &MessageHandler{
		conversations: conversations,
		messages:      messages,
		service:       service,
	}
}

// ListConversations returns the user's conversations, most recently
// active first, with unread counts from the reader's perspective.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	userID := middleware.UserID(c)

	convs, err := h.conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summaries = append(summaries, conv.SummaryFor(userID))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// ListMessages returns a page of conversation history, newest first.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := middleware.UserID(c)
	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	beforeID, _ := strconv.ParseInt(c.Query("before_id"), 10, 64)
	includeDeleted := c.Query("include_deleted") == "true"

	msgs, err := h.messages.ListForConversation(c.Request.Context(), conversationID, includeDeleted, limit, beforeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage creates and delivers a message, creating the conversation
// lazily on first contact.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		ConversationID int64              `json:"conversation_id"`
		ReceiverID     int64              `json:"receiver_id"`
		ListingID      *int64             `json:"listing_id"`
		Type           models.MessageType `json:"type"`
		Content        string             `json:"content"`
		ImageURL       string             `json:"image_url"`
		ReplyToID      *int64             `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	if req.ConversationID == 0 && req.ReceiverID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id or receiver_id required"})
		return
	}
	if req.ReceiverID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}

	msg, err := h.service.Send(c.Request.Context(), messaging.SendRequest{
		SenderID:       userID,
		ReceiverID:     req.ReceiverID,
		ConversationID: req.ConversationID,
		ListingID:      req.ListingID,
		Type:           req.Type,
		Content:        req.Content,
		ImageURL:       req.ImageURL,
		ReplyToID:      req.ReplyToID,
	}, nil)
	if err != nil {
		switch {
		case errors.Is(err, messaging.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message has no content"})
		case errors.Is(err, messaging.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		}
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkConversationRead marks every unread message of the caller in the
// conversation.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := middleware.UserID(c)
	if err := h.service.MarkConversationRead(c.Request.Context(), conversationID, userID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, messaging.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark read"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteConversation removes the conversation and its messages.
func (h *MessageHandler) DeleteConversation(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := middleware.UserID(c)
	if err := h.service.DeleteConversation(c.Request.Context(), conversationID, userID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, messaging.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete conversation"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// DeleteMessage soft-deletes a message owned by the caller.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := middleware.UserID(c)
	if err := h.service.Delete(c.Request.Context(), messageID, userID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, messaging.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may delete a message"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
