package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/notify"
	"messaging-service/internal/push"
	"messaging-service/internal/repositories"
)

// NotificationHandler serves notification, device token and preference
// endpoints.
type NotificationHandler struct {
	notifications repositories.NotificationRepository
	tokens        repositories.TokenRepository
	preferences   repositories.PreferenceRepository
	dispatcher    *notify.Dispatcher
	sender        push.Sender
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifications repositories.NotificationRepository, tokens repositories.TokenRepository, preferences repositories.PreferenceRepository, dispatcher *notify.Dispatcher, sender push.Sender) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		tokens:        tokens,
		preferences:   preferences,
		dispatcher:    dispatcher,
		sender:        sender,
	}
}

// List returns a page of the user's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	filter := repositories.NotificationFilter{
		Type:       models.NotificationType(c.Query("type")),
		UnreadOnly: c.Query("unread") == "true",
		Limit:      limit,
		Offset:     offset,
	}

	items, err := h.notifications.ListForRecipient(c.Request.Context(), userID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	unread, err := h.notifications.CountUnread(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "unread_count": unread})
}

// MarkRead marks the listed notifications read, or all of them when no
// ids are given.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req struct {
		IDs []int64 `json:"ids"`
		All bool    `json:"all"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	var (
		updated int64
		err     error
	)
	if req.All || len(req.IDs) == 0 {
		updated, err = h.notifications.MarkAllRead(c.Request.Context(), userID)
	} else {
		updated, err = h.notifications.MarkRead(c.Request.Context(), userID, req.IDs)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Delete removes one notification owned by the caller.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("notification_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	userID := middleware.UserID(c)
	if err := h.notifications.Delete(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// RegisterToken registers a device token for push delivery. The token is
// exchanged for a platform endpoint before it is stored, so a token the
// gateway rejects is never persisted.
func (h *NotificationHandler) RegisterToken(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Platform string `json:"platform" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	endpointARN, err := h.sender.RegisterToken(c.Request.Context(), req.Platform, req.Token)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not register token with push gateway"})
		return
	}

	token, err := h.tokens.Upsert(c.Request.Context(), userID, req.Token, endpointARN, req.Platform)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store token"})
		return
	}
	c.JSON(http.StatusCreated, token)
}

// RemoveToken deletes a device token and its platform endpoint.
func (h *NotificationHandler) RemoveToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	endpointARN, err := h.tokens.Remove(c.Request.Context(), userID, req.Token)
	if errors.Is(err, repositories.ErrTokenNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove token"})
		return
	}
	if endpointARN != "" {
		_ = h.sender.Unregister(c.Request.Context(), endpointARN)
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// GetPreferences returns the user's notification settings, falling back
// to defaults when none were saved.
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	prefs, err := h.preferences.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences replaces the user's notification settings.
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var req models.Preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.UserID = middleware.UserID(c)

	if req.QuietHoursEnabled {
		if !validClock(req.QuietStart) || !validClock(req.QuietEnd) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quiet hours must be HH:MM"})
			return
		}
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	prefs, err := h.preferences.Upsert(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// SendTest dispatches a test notification to the caller through the full
// pipeline.
func (h *NotificationHandler) SendTest(c *gin.Context) {
	userID := middleware.UserID(c)
	result, err := h.dispatcher.Dispatch(c.Request.Context(), notify.Event{
		RecipientID: userID,
		Type:        models.NotifSystem,
		Priority:    models.PriorityHigh,
		Title:       "Test notification",
		Body:        "Push delivery is working.",
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notification":  result.Notification,
		"pushed":        result.Pushed,
		"suppressed_by": result.SuppressedBy,
	})
}

func validClock(value string) bool {
	if len(value) != 5 || value[2] != ':' {
		return false
	}
	hour, err1 := strconv.Atoi(value[:2])
	minute, err2 := strconv.Atoi(value[3:])
	return err1 == nil && err2 == nil && hour >= 0 && hour < 24 && minute >= 0 && minute < 60
}
