package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/push"
	"messaging-service/internal/repositories"
)

// LiveNotifier is the hub surface the dispatcher needs.
type LiveNotifier interface {
	SendToUser(userID int64, event string, data interface{}) int
	IsOnline(userID int64) bool
}

// Event is a normalized notification request, produced from consumed
// domain events.
type Event struct {
	RecipientID    int64
	SenderID       *int64
	Type           models.NotificationType
	Priority       models.Priority
	Title          string
	Body           string
	Data           models.NotificationData
	ListingID      *int64
	ConversationID *int64
	MessageID      *int64
}

// Result reports what a dispatch did with the event.
type Result struct {
	Notification models.Notification
	Pushed       bool
	SuppressedBy string
}

// Suppression reasons.
const (
	suppressRateLimit  = "rate_limit"
	suppressPreference = "preference"
	suppressQuietHours = "quiet_hours"
	suppressOffline    = "no_push_targets"
	suppressInvalid    = "invalid_recipient"
)

// Dispatcher routes notifications: always persists the in-app record,
// then decides live and push delivery from presence, preferences, quiet
// hours and per-pair cooldowns.
type Dispatcher struct {
	notifications repositories.NotificationRepository
	preferences   repositories.PreferenceRepository
	tokens        repositories.TokenRepository
	cooldowns     CooldownStore
	live          LiveNotifier
	sender        push.Sender
	logger        *zap.Logger
	now           func() time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(notifications repositories.NotificationRepository, preferences repositories.PreferenceRepository, tokens repositories.TokenRepository, cooldowns CooldownStore, live LiveNotifier, sender push.Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		preferences:   preferences,
		tokens:        tokens,
		cooldowns:     cooldowns,
		live:          live,
		sender:        sender,
		logger:        logger,
		now:           time.Now,
	}
}

// Dispatch runs the full pipeline for one event. Persistence failures
// are the only fatal ones; push problems degrade to the stored record.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) (Result, error) {
	if event.RecipientID <= 0 {
		observability.IncDispatch(suppressInvalid)
		return Result{SuppressedBy: suppressInvalid}, nil
	}
	if event.Priority == "" {
		event.Priority = models.PriorityNormal
	}

	notification, err := d.persist(ctx, event)
	if err != nil {
		observability.IncDispatch("error")
		return Result{}, fmt.Errorf("persist notification: %w", err)
	}
	result := Result{Notification: notification}

	if d.live.IsOnline(event.RecipientID) {
		d.deliverLive(ctx, &result.Notification)
	}

	// The cooldown only trims push noise. The record above and any live
	// delivery already happened, so a denied window suppresses nothing
	// the user cannot still see in-app.
	if allowed := d.allowByCooldown(ctx, event); !allowed {
		result.SuppressedBy = suppressRateLimit
		observability.IncDispatch(suppressRateLimit)
		return result, nil
	}

	prefs, err := d.preferences.Get(ctx, event.RecipientID)
	if err != nil {
		d.logger.Error("load preferences failed", zap.Int64("user_id", event.RecipientID), zap.Error(err))
		prefs = models.DefaultPreferences(event.RecipientID)
	}

	if reason := d.pushSuppression(prefs, event); reason != "" {
		result.SuppressedBy = reason
		observability.IncDispatch(reason)
		return result, nil
	}

	result.Pushed = d.deliverPush(ctx, &result.Notification, event)
	if result.Pushed {
		observability.IncDispatch("pushed")
	} else {
		observability.IncDispatch(suppressOffline)
		result.SuppressedBy = suppressOffline
	}
	return result, nil
}

// allowByCooldown keys the cooldown on sender, recipient and category so
// one chatty counterpart cannot drown the rest.
func (d *Dispatcher) allowByCooldown(ctx context.Context, event Event) bool {
	senderID := int64(0)
	if event.SenderID != nil {
		senderID = *event.SenderID
	}
	key := fmt.Sprintf("%d:%d:%s", senderID, event.RecipientID, event.Type)
	allowed, err := d.cooldowns.Allow(ctx, key, cooldownFor(event.Type))
	if err != nil {
		// A broken cooldown store must not block notifications.
		d.logger.Error("cooldown check failed", zap.String("key", key), zap.Error(err))
		return true
	}
	return allowed
}

func (d *Dispatcher) persist(ctx context.Context, event Event) (models.Notification, error) {
	return d.notifications.Create(ctx, repositories.NewNotification{
		RecipientID:    event.RecipientID,
		SenderID:       event.SenderID,
		Type:           event.Type,
		Title:          event.Title,
		Body:           event.Body,
		Data:           event.Data,
		ListingID:      event.ListingID,
		ConversationID: event.ConversationID,
		MessageID:      event.MessageID,
		Priority:       event.Priority,
	})
}

// deliverLive pushes the record and the fresh unread count over the
// recipient's live connections and records delivery.
func (d *Dispatcher) deliverLive(ctx context.Context, n *models.Notification) {
	if d.live.SendToUser(n.RecipientID, models.EventNewNotification, *n) == 0 {
		return
	}
	if err := d.notifications.MarkDelivered(ctx, n.ID); err != nil {
		d.logger.Error("mark delivered failed", zap.Int64("notification_id", n.ID), zap.Error(err))
		return
	}
	n.Delivered = true

	if count, err := d.notifications.CountUnread(ctx, n.RecipientID); err == nil {
		d.live.SendToUser(n.RecipientID, models.EventUnreadCountUpdate, models.UnreadCountEvent{Count: count})
	}
}

// pushSuppression applies preference gates in order: master switch,
// category switch, then quiet hours. Urgent events and system notices
// skip quiet hours; system notices also skip category switches.
func (d *Dispatcher) pushSuppression(prefs models.Preferences, event Event) string {
	if !prefs.PushEnabled {
		return suppressPreference
	}
	if event.Type != models.NotifSystem && !categoryEnabled(prefs, event.Type) {
		return suppressPreference
	}
	if event.Priority != models.PriorityUrgent && d.inQuietHours(prefs) {
		return suppressQuietHours
	}
	return ""
}

func categoryEnabled(prefs models.Preferences, t models.NotificationType) bool {
	switch t {
	case models.NotifNewMessage, models.NotifNewInquiry:
		return prefs.MessagesEnabled
	case models.NotifNewOffer, models.NotifOfferAccepted:
		return prefs.OffersEnabled
	case models.NotifListingLiked, models.NotifListingViewed, models.NotifProductUpdate:
		return prefs.ProductUpdates
	default:
		return true
	}
}

// inQuietHours evaluates the window in the user's timezone. Windows may
// wrap past midnight (22:00 to 07:00). Malformed settings disable the
// window rather than silencing the user.
func (d *Dispatcher) inQuietHours(prefs models.Preferences) bool {
	if !prefs.QuietHoursEnabled {
		return false
	}
	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		loc = time.UTC
	}
	start, err1 := parseClock(prefs.QuietStart)
	end, err2 := parseClock(prefs.QuietEnd)
	if err1 != nil || err2 != nil || start == end {
		return false
	}

	now := d.now().In(loc)
	minute := now.Hour()*60 + now.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// deliverPush fans out to the recipient's active device tokens,
// deactivates tokens the gateway rejected permanently, and records
// delivery when at least one device was reached.
func (d *Dispatcher) deliverPush(ctx context.Context, n *models.Notification, event Event) bool {
	tokens, err := d.tokens.ActiveForUser(ctx, n.RecipientID)
	if err != nil {
		d.logger.Error("load device tokens failed", zap.Int64("user_id", n.RecipientID), zap.Error(err))
		return false
	}
	if len(tokens) == 0 {
		return false
	}

	badge := 0
	if count, err := d.notifications.CountUnread(ctx, n.RecipientID); err == nil {
		badge = count
	}

	res := d.sender.SendToTokens(ctx, tokens, push.Payload{
		Title:    n.Title,
		Body:     n.Body,
		Type:     n.Type,
		Priority: n.Priority,
		Data:     event.Data,
		Badge:    badge,
	})

	if len(res.InvalidTokens) > 0 {
		if _, err := d.tokens.Deactivate(ctx, res.InvalidTokens); err != nil {
			d.logger.Error("deactivate tokens failed", zap.Int64("user_id", n.RecipientID), zap.Error(err))
		}
	}

	if res.SuccessCount == 0 {
		return false
	}
	if !n.Delivered {
		if err := d.notifications.MarkDelivered(ctx, n.ID); err != nil {
			d.logger.Error("mark delivered failed", zap.Int64("notification_id", n.ID), zap.Error(err))
		} else {
			n.Delivered = true
		}
	}
	return true
}
