package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/messaging"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
)

type gatewayFixture struct {
	srv       *httptest.Server
	verifier  *mocks.VerifierMock
	convRepo  *mocks.ConversationRepositoryMock
	msgRepo   *mocks.MessageRepositoryMock
	notifRepo *mocks.NotificationRepositoryMock
	hub       *Hub
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	f := &gatewayFixture{
		verifier:  new(mocks.VerifierMock),
		convRepo:  new(mocks.ConversationRepositoryMock),
		msgRepo:   new(mocks.MessageRepositoryMock),
		notifRepo: new(mocks.NotificationRepositoryMock),
	}

	registry := presence.NewRegistry()
	f.hub = NewHub(registry, zap.NewNop())
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	service := messaging.NewService(f.convRepo, f.msgRepo, f.hub, publisher, zap.NewNop())

	gateway := NewGateway(f.hub, registry, f.verifier, service, f.convRepo, f.notifRepo, zap.NewNop())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", gateway.Handle)
	f.srv = httptest.NewServer(router)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *gatewayFixture) dial(t *testing.T, token string) (*websocket.Conn, *http.Response) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=" + token
	sock, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Cleanup(func() { _ = sock.Close() })
	}
	return sock, resp
}

func (f *gatewayFixture) expectEmptyInitialState(userID int64) {
	f.notifRepo.On("UndeliveredSince", mock.Anything, userID, mock.Anything).
		Return([]models.Notification(nil), nil).Once()
	f.convRepo.On("TotalUnread", mock.Anything, userID).Return(0, nil).Once()
}

func TestGatewayRejectsBadToken(t *testing.T) {
	f := newGatewayFixture(t)
	f.verifier.On("VerifyToken", mock.Anything, "bad").Return(int64(0), assert.AnError).Once()

	_, resp := f.dial(t, "bad")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayReplaysInitialState(t *testing.T) {
	f := newGatewayFixture(t)
	f.verifier.On("VerifyToken", mock.Anything, "good").Return(int64(2), nil).Once()

	pending := models.Notification{ID: 44, RecipientID: 2, Type: models.NotifNewMessage}
	f.notifRepo.On("UndeliveredSince", mock.Anything, int64(2), mock.Anything).
		Return([]models.Notification{pending}, nil).Once()
	f.notifRepo.On("MarkDelivered", mock.Anything, int64(44)).Return(nil).Once()
	f.convRepo.On("TotalUnread", mock.Anything, int64(2)).Return(4, nil).Once()

	sock, _ := f.dial(t, "good")
	require.NotNil(t, sock)

	first := readClientEvent(t, sock)
	assert.Equal(t, models.EventPendingNotifications, first.Event)
	second := readClientEvent(t, sock)
	assert.Equal(t, models.EventUnreadCountUpdate, second.Event)
}

func TestGatewayJoinRequiresMembership(t *testing.T) {
	f := newGatewayFixture(t)
	f.verifier.On("VerifyToken", mock.Anything, "good").Return(int64(2), nil).Once()
	f.expectEmptyInitialState(2)
	f.convRepo.On("IsParticipant", mock.Anything, int64(5), int64(2)).Return(false, nil).Once()

	sock, _ := f.dial(t, "good")
	require.NotNil(t, sock)
	assert.Equal(t, models.EventUnreadCountUpdate, readClientEvent(t, sock).Event)

	require.NoError(t, sock.WriteJSON(map[string]interface{}{
		"event": models.EventJoinConversation,
		"data":  map[string]int64{"conversation_id": 5},
	}))

	env := readClientEvent(t, sock)
	assert.Equal(t, models.EventError, env.Event, "rejected join answers on the same socket")
}

func TestGatewayTypingFanout(t *testing.T) {
	f := newGatewayFixture(t)
	f.verifier.On("VerifyToken", mock.Anything, "alice").Return(int64(1), nil).Once()
	f.verifier.On("VerifyToken", mock.Anything, "bob").Return(int64(2), nil).Once()
	f.expectEmptyInitialState(1)
	f.expectEmptyInitialState(2)
	f.convRepo.On("IsParticipant", mock.Anything, int64(5), int64(1)).Return(true, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, int64(5), int64(2)).Return(true, nil).Once()

	alice, _ := f.dial(t, "alice")
	bob, _ := f.dial(t, "bob")
	require.NotNil(t, alice)
	require.NotNil(t, bob)
	readClientEvent(t, alice) // initial unread count
	readClientEvent(t, bob)

	join := func(sock *websocket.Conn) {
		require.NoError(t, sock.WriteJSON(map[string]interface{}{
			"event": models.EventJoinConversation,
			"data":  map[string]int64{"conversation_id": 5},
		}))
	}
	join(alice)
	join(bob)
	waitForRoomSize(t, f.hub, 5, 2)

	require.NoError(t, alice.WriteJSON(map[string]interface{}{
		"event": models.EventTyping,
		"data":  map[string]interface{}{"conversation_id": 5, "is_typing": true},
	}))

	env := readClientEvent(t, bob)
	assert.Equal(t, models.EventUserTyping, env.Event)
}

func readClientEvent(t *testing.T, sock *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, sock.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env envelope
	require.NoError(t, sock.ReadJSON(&env))
	return env
}

func waitForRoomSize(t *testing.T, hub *Hub, conversationID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		size := len(hub.rooms[conversationID])
		hub.mu.RUnlock()
		if size == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %d never reached %d members", conversationID, want)
}
