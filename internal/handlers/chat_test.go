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

	"messaging-service/internal/delivery"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type chatFixture struct {
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	groups   *mocks.GroupRepositoryMock
	registry *mocks.RegistryMock
	router   *gin.Engine
}

func newChatFixture() chatFixture {
	gin.SetMode(gin.TestMode)

	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	groups := new(mocks.GroupRepositoryMock)
	registry := new(mocks.RegistryMock)
	transport := new(mocks.TransportMock)
	transport.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	engine := delivery.NewEngine(chats, messages, groups, registry, transport, false)
	handler := NewChatHandler(engine)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/chats/start", handler.StartChat)
	r.GET("/chats", handler.ListChats)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/chats/:chat_id/messages", handler.PostChatMessage)
	r.POST("/chats/:chat_id/read", handler.MarkChatMessagesRead)
	r.POST("/messages/:message_id/read", handler.MarkMessageRead)
	r.DELETE("/messages/:message_id", handler.DeleteMessage)

	return chatFixture{chats: chats, messages: messages, groups: groups, registry: registry, router: r}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStartChatSuccess(t *testing.T) {
	f := newChatFixture()

	f.chats.On("CreateOrGetDirectChat", mock.Anything,
		models.Participant{UserID: 1, UserName: "alice"},
		models.Participant{UserID: 2, UserName: "bob"}).
		Return(models.Chat{ID: 3, Type: models.ChatDirect}, nil).Once()
	f.registry.On("JoinRoom", 1, 3).Once()
	f.registry.On("JoinRoom", 2, 3).Once()

	rec := doJSON(t, f.router, http.MethodPost, "/chats/start", gin.H{
		"user_name": "alice", "friend_id": 2, "friend_name": "bob",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	f.chats.AssertExpectations(t)
}

func TestStartChatValidation(t *testing.T) {
	f := newChatFixture()

	rec := doJSON(t, f.router, http.MethodPost, "/chats/start", gin.H{"friend_id": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostChatMessageForbiddenForNonParticipant(t *testing.T) {
	f := newChatFixture()

	f.chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, Type: models.ChatDirect}, nil).Once()
	f.chats.On("GetParticipants", mock.Anything, 3).
		Return([]models.Participant{{UserID: 5}, {UserID: 6}}, nil).Once()

	rec := doJSON(t, f.router, http.MethodPost, "/chats/3/messages", gin.H{
		"sender_name": "alice", "content": "hi",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostChatMessageUnknownChat(t *testing.T) {
	f := newChatFixture()

	f.chats.On("GetChat", mock.Anything, 99).Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	rec := doJSON(t, f.router, http.MethodPost, "/chats/99/messages", gin.H{
		"sender_name": "alice", "content": "hi",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostChatMessageSuccess(t *testing.T) {
	f := newChatFixture()

	f.chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, Type: models.ChatDirect}, nil).Once()
	f.chats.On("GetParticipants", mock.Anything, 3).
		Return([]models.Participant{{UserID: 1}, {UserID: 2}}, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: 10, ChatID: 3, SenderID: 1, Content: "hi"}, nil).Once()
	f.chats.On("SetLastMessage", mock.Anything, 3, 10).Return(nil).Once()
	f.chats.On("IncrementUnread", mock.Anything, 3, (*int)(nil)).Return(nil).Once()
	f.registry.On("BroadcastToRoom", 3, 0, models.EventMessageReceived, mock.Anything).Once()
	f.registry.On("IsOnline", 2).Return(false).Once()

	rec := doJSON(t, f.router, http.MethodPost, "/chats/3/messages", gin.H{
		"sender_name": "alice", "content": "hi",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Message models.Message `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 10, resp.Message.ID)
}

func TestMarkChatMessagesRead(t *testing.T) {
	f := newChatFixture()

	f.chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3}, nil).Once()
	f.chats.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()
	f.messages.On("MarkRead", mock.Anything, 3, []int{10, 11}, 1).Return([]int{10}, nil).Once()
	f.chats.On("DecrementUnread", mock.Anything, 3, 1, 1).Return(nil).Once()
	f.registry.On("BroadcastToRoom", 3, 0, models.EventMessageReadUpdate, mock.Anything).Once()

	rec := doJSON(t, f.router, http.MethodPost, "/chats/3/read", gin.H{"message_ids": []int{10, 11}})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp["marked_read"])
}

func TestDeleteMessageForbidden(t *testing.T) {
	f := newChatFixture()

	f.messages.On("GetMessage", mock.Anything, 10).
		Return(models.Message{ID: 10, ChatID: 3, SenderID: 2}, nil).Once()

	rec := doJSON(t, f.router, http.MethodDelete, "/messages/10", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListChats(t *testing.T) {
	f := newChatFixture()

	preview := &models.Message{ID: 10, ChatID: 3, SenderID: 2, Content: "see you there"}
	f.chats.On("ListChats", mock.Anything, 1, 20, 0).
		Return([]models.ChatSummary{{ChatID: 3, UnreadCount: 2, LastMessage: preview}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	require.NotNil(t, resp.Chats[0].LastMessage)
	assert.Equal(t, "see you there", resp.Chats[0].LastMessage.Content)
	assert.Equal(t, 2, resp.Chats[0].UnreadCount)
	f.chats.AssertExpectations(t)
}
