package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/events"
	"messaging-service/internal/messaging"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

type messageFixture struct {
	convRepo  *mocks.ConversationRepositoryMock
	msgRepo   *mocks.MessageRepositoryMock
	live      *mocks.LiveMock
	publisher *mocks.PublisherMock
	router    *gin.Engine
}

func newMessageFixture() *messageFixture {
	f := &messageFixture{
		convRepo:  new(mocks.ConversationRepositoryMock),
		msgRepo:   new(mocks.MessageRepositoryMock),
		live:      new(mocks.LiveMock),
		publisher: new(mocks.PublisherMock),
	}
	service := messaging.NewService(f.convRepo, f.msgRepo, f.live, f.publisher, zap.NewNop())
	handler := NewMessageHandler(f.convRepo, f.msgRepo, service)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.GET("/conversations/:conversation_id/messages", handler.ListMessages)
	r.POST("/conversations/:conversation_id/read", handler.MarkConversationRead)
	r.DELETE("/conversations/:conversation_id", handler.DeleteConversation)
	r.POST("/messages", handler.SendMessage)
	r.DELETE("/messages/:message_id", handler.DeleteMessage)
	f.router = r
	return f
}

func TestListConversations(t *testing.T) {
	f := newMessageFixture()

	convs := []models.Conversation{{ID: 5, User1ID: 1, User2ID: 2, User1Unread: 3}}
	f.convRepo.On("ListForUser", mock.Anything, int64(1)).Return(convs, nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, int64(2), resp.Conversations[0].OtherUserID)
	assert.Equal(t, 3, resp.Conversations[0].Unread)
}

func TestListMessagesForbiddenForOutsider(t *testing.T) {
	f := newMessageFixture()

	f.convRepo.On("IsParticipant", mock.Anything, int64(5), int64(1)).Return(false, nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	f.msgRepo.AssertNotCalled(t, "ListForConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessagesPassesPagination(t *testing.T) {
	f := newMessageFixture()

	f.convRepo.On("IsParticipant", mock.Anything, int64(5), int64(1)).Return(true, nil).Once()
	f.msgRepo.On("ListForConversation", mock.Anything, int64(5), false, 20, int64(100)).
		Return([]models.Message{{ID: 99}}, nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/5/messages?limit=20&before_id=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	f.msgRepo.AssertExpectations(t)
}

func TestSendMessageCreatesConversationLazily(t *testing.T) {
	f := newMessageFixture()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	msg := models.Message{ID: 10, ConversationID: 5, SenderID: 1, ReceiverID: 2, Content: "hi"}

	f.convRepo.On("CreateOrGet", mock.Anything, int64(1), int64(2), (*int64)(nil)).Return(conv, nil).Once()
	f.msgRepo.On("Create", mock.Anything, mock.Anything).Return(msg, nil).Once()
	f.convRepo.On("UpdateLastMessage", mock.Anything, int64(5), "hi", int64(1), models.MessageText, mock.Anything).Return(nil).Once()
	f.convRepo.On("IncrementUnread", mock.Anything, int64(5), int64(2)).Return(nil).Once()
	f.live.On("BroadcastToRoom", int64(5), models.EventNewMessage, msg, nil).Once()
	f.live.On("SendToUser", int64(2), models.EventNewMessage, msg).Return(0).Once()
	f.live.On("IsOnline", int64(2)).Return(false).Once()
	f.publisher.On("Publish", mock.Anything, events.MessageSent, mock.Anything).Return(nil).Once()

	body := bytes.NewBufferString(`{"receiver_id":2,"content":"hi"}`)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	f.convRepo.AssertExpectations(t)
}

func TestSendMessageRejectsSelf(t *testing.T) {
	f := newMessageFixture()

	body := bytes.NewBufferString(`{"receiver_id":1,"content":"hi"}`)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages", body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	f := newMessageFixture()

	body := bytes.NewBufferString(`{"receiver_id":2}`)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages", body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkConversationReadEndpoint(t *testing.T) {
	f := newMessageFixture()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	f.msgRepo.On("UnreadIDs", mock.Anything, int64(5), int64(1)).Return([]int64{7}, nil).Once()
	f.convRepo.On("GetByID", mock.Anything, int64(5)).Return(conv, nil).Once()
	f.msgRepo.On("MarkRead", mock.Anything, int64(5), int64(1), []int64{7}).Return([]int64{7}, nil).Once()
	f.convRepo.On("ResetUnread", mock.Anything, int64(5), int64(1)).Return(nil).Once()
	f.live.On("BroadcastToRoom", int64(5), models.EventMessagesRead, mock.Anything, nil).Once()
	f.live.On("SendToUser", int64(2), models.EventMessagesRead, mock.Anything).Return(1).Once()
	f.convRepo.On("TotalUnread", mock.Anything, int64(1)).Return(0, nil).Once()
	f.live.On("SendToUser", int64(1), models.EventUnreadCountUpdate, mock.Anything).Return(1).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/5/read", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteConversationForbidden(t *testing.T) {
	f := newMessageFixture()

	conv := models.Conversation{ID: 5, User1ID: 3, User2ID: 2}
	f.convRepo.On("GetByID", mock.Anything, int64(5)).Return(conv, nil).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/conversations/5", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	f.convRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteMessageNotFound(t *testing.T) {
	f := newMessageFixture()

	f.msgRepo.On("GetByID", mock.Anything, int64(404)).Return(models.Message{}, assert.AnError).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/messages/404", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
