package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/messaging"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pendingNotificationWindow bounds the connect-time snapshot of missed
// notifications.
const pendingNotificationWindow = 24 * time.Hour

// Gateway authenticates websocket handshakes, replays missed state and
// runs the per-connection read loop of the live protocol.
type Gateway struct {
	hub           *Hub
	registry      *presence.Registry
	verifier      auth.Verifier
	messages      *messaging.Service
	conversations repositories.ConversationRepository
	notifications repositories.NotificationRepository
	logger        *zap.Logger
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, registry *presence.Registry, verifier auth.Verifier, messages *messaging.Service, conversations repositories.ConversationRepository, notifications repositories.NotificationRepository, logger *zap.Logger) *Gateway {
	return &Gateway{
		hub:           hub,
		registry:      registry,
		verifier:      verifier,
		messages:      messages,
		conversations: conversations,
		notifications: notifications,
		logger:        logger,
	}
}

// Handle upgrades the connection after token verification and serves it
// until the client disconnects.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := g.verifier.VerifyToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := newConn(userID, sock)
	g.registry.Register(userID, conn)
	observability.IncWSActive()
	g.logger.Info("websocket connected",
		zap.Int64("user_id", userID),
		zap.String("conn_id", conn.ID()))

	g.sendInitialState(ctx, conn)
	go g.readLoop(conn)
}

// bearerToken pulls the token from the Authorization header or, for
// browser clients that cannot set headers on websocket dials, the token
// query parameter.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

// sendInitialState replays what the client missed while offline: the
// recent undelivered notifications and the current unread total. Replay
// failures degrade to an empty snapshot.
func (g *Gateway) sendInitialState(ctx context.Context, conn *Conn) {
	pending, err := g.notifications.UndeliveredSince(ctx, conn.UserID(), time.Now().Add(-pendingNotificationWindow))
	if err != nil {
		g.logger.Error("pending notification replay failed", zap.Int64("user_id", conn.UserID()), zap.Error(err))
	}
	if len(pending) > 0 {
		if err := conn.SendEvent(models.EventPendingNotifications, models.PendingNotificationsEvent{
			Notifications: pending,
			Count:         len(pending),
		}); err == nil {
			for _, n := range pending {
				if derr := g.notifications.MarkDelivered(ctx, n.ID); derr != nil {
					g.logger.Error("mark notification delivered failed", zap.Int64("notification_id", n.ID), zap.Error(derr))
				}
			}
		}
	}

	total, err := g.conversations.TotalUnread(ctx, conn.UserID())
	if err != nil {
		g.logger.Error("unread total lookup failed", zap.Int64("user_id", conn.UserID()), zap.Error(err))
		return
	}
	_ = conn.SendEvent(models.EventUnreadCountUpdate, models.UnreadCountEvent{Count: total})
}

func (g *Gateway) readLoop(conn *Conn) {
	defer func() {
		g.hub.RemoveConn(conn)
		g.registry.Unregister(conn)
		observability.DecWSActive()
		_ = conn.Close()
		g.logger.Info("websocket disconnected",
			zap.Int64("user_id", conn.UserID()),
			zap.String("conn_id", conn.ID()))
	}()

	for {
		_, raw, err := conn.sock.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Debug("websocket read failed", zap.Int64("user_id", conn.UserID()), zap.Error(err))
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			g.sendError(conn, "malformed event")
			continue
		}
		g.dispatch(context.Background(), conn, env)
	}
}

// dispatch routes one client event. Protocol errors are answered on the
// same connection; the socket stays open.
func (g *Gateway) dispatch(ctx context.Context, conn *Conn, env envelope) {
	switch env.Event {
	case models.EventJoinConversation:
		g.handleJoin(ctx, conn, env.Data)
	case models.EventLeaveConversation:
		var p struct {
			ConversationID int64 `json:"conversation_id"`
		}
		if json.Unmarshal(env.Data, &p) == nil {
			g.hub.LeaveRoom(p.ConversationID, conn)
		}
	case models.EventSendMessage:
		g.handleSend(ctx, conn, env.Data)
	case models.EventTyping:
		g.handleTyping(conn, env.Data)
	case models.EventMessageRead:
		g.handleRead(ctx, conn, env.Data)
	case models.EventMessageDelivered:
		g.handleDeliveredAck(ctx, conn, env.Data)
	case models.EventDeleteMessage:
		g.handleDelete(ctx, conn, env.Data)
	case models.EventCallUser:
		g.handleCall(conn, env.Data)
	case models.EventCallResponse:
		g.handleCallResponse(conn, env.Data)
	case models.EventEndCall:
		g.handleEndCall(conn, env.Data)
	default:
		g.sendError(conn, "unknown event: "+env.Event)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, conn *Conn, data json.RawMessage) {
	var p struct {
		ConversationID int64 `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed event")
		return
	}
	member, err := g.conversations.IsParticipant(ctx, p.ConversationID, conn.UserID())
	if err != nil {
		g.sendError(conn, "join failed")
		return
	}
	if !member {
		g.sendError(conn, "not a conversation participant")
		return
	}
	g.hub.JoinRoom(p.ConversationID, conn)
}

func (g *Gateway) handleSend(ctx context.Context, conn *Conn, data json.RawMessage) {
	var p struct {
		ConversationID int64              `json:"conversation_id"`
		ReceiverID     int64              `json:"receiver_id"`
		ListingID      *int64             `json:"listing_id"`
		Type           models.MessageType `json:"type"`
		Content        string             `json:"content"`
		ImageURL       string             `json:"image_url"`
		ReplyToID      *int64             `json:"reply_to_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed event")
		return
	}

	_, err := g.messages.Send(ctx, messaging.SendRequest{
		SenderID:       conn.UserID(),
		ReceiverID:     p.ReceiverID,
		ConversationID: p.ConversationID,
		ListingID:      p.ListingID,
		Type:           p.Type,
		Content:        p.Content,
		ImageURL:       p.ImageURL,
		ReplyToID:      p.ReplyToID,
	}, conn)
	if err != nil {
		g.logger.Warn("send message failed", zap.Int64("user_id", conn.UserID()), zap.Error(err))
		g.sendError(conn, "message not sent")
	}
}

func (g *Gateway) handleTyping(conn *Conn, data json.RawMessage) {
	var p models.TypingEvent
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed event")
		return
	}
	p.UserID = conn.UserID()
	g.hub.BroadcastToRoom(p.ConversationID, models.EventUserTyping, p, conn)
}

func (g *Gateway) handleRead(ctx context.Context, conn *Conn, data json.RawMessage) {
	var p struct {
		ConversationID int64   `json:"conversation_id"`
		MessageIDs     []int64 `json:"message_ids"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed event")
		return
	}
	if err := g.messages.MarkRead(ctx, p.ConversationID, conn.UserID(), p.MessageIDs); err != nil {
		g.logger.Warn("mark read failed", zap.Int64("user_id", conn.UserID()), zap.Error(err))
		g.sendError(conn, "read receipt failed")
	}
}

func (g *Gateway) handleDeliveredAck(ctx context.Context, conn *Conn, data json.RawMessage) {
	var p struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed event")
		return
	}
	if err := g.messages.AcknowledgeDelivered(ctx, p.MessageID, conn.UserID()); err != nil {
		g.logger.Debug("delivery ack rejected", zap.Int64("message_id", p.MessageID), zap.Error(err))
	}
}

func (g *Gateway) handleDelete(ctx context.Context, conn *Conn, data json.RawMessage) {
	var p struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed event")
		return
	}
	if err := g.messages.Delete(ctx, p.MessageID, conn.UserID()); err != nil {
		g.sendError(conn, "delete failed")
	}
}

func (g *Gateway) handleCall(conn *Conn, data json.RawMessage) {
	var p models.CallEvent
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed event")
		return
	}
	p.CallerID = conn.UserID()
	if g.hub.SendToUser(p.ReceiverID, models.EventIncomingCall, p) == 0 {
		g.sendError(conn, "user is offline")
	}
}

func (g *Gateway) handleCallResponse(conn *Conn, data json.RawMessage) {
	var p models.CallResponseEvent
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed event")
		return
	}
	p.ResponderID = conn.UserID()
	g.hub.SendToUser(p.CallerID, models.EventCallResponse, p)
}

func (g *Gateway) handleEndCall(conn *Conn, data json.RawMessage) {
	var p struct {
		ConversationID int64 `json:"conversation_id"`
		PeerID         int64 `json:"peer_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(conn, "malformed event")
		return
	}
	g.hub.SendToUser(p.PeerID, models.EventCallEnded, models.CallEndedEvent{
		ConversationID: p.ConversationID,
		UserID:         conn.UserID(),
	})
}

func (g *Gateway) sendError(conn *Conn, message string) {
	_ = conn.SendEvent(models.EventError, models.ErrorEvent{Message: message})
}
