package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type registryMock struct {
	mock.Mock
}

func (m *registryMock) Register(ctx context.Context, client *Client, rooms []int) {
	m.Called(ctx, client, rooms)
}

func (m *registryMock) Unregister(ctx context.Context, client *Client) {
	m.Called(ctx, client)
}

func (m *registryMock) Send(userID int, event string, payload interface{}) bool {
	args := m.Called(userID, event, payload)
	return args.Bool(0)
}

func (m *registryMock) BroadcastToRoom(chatID int, exceptUserID int, event string, payload interface{}) {
	m.Called(chatID, exceptUserID, event, payload)
}

func (m *registryMock) JoinRoom(userID, chatID int) {
	m.Called(userID, chatID)
}

func (m *registryMock) IsOnline(userID int) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

type chatRepoMock struct {
	mock.Mock
}

func (m *chatRepoMock) CreateOrGetDirectChat(ctx context.Context, user, friend models.Participant) (models.Chat, error) {
	args := m.Called(ctx, user, friend)
	return args.Get(0).(models.Chat), args.Error(1)
}

func (m *chatRepoMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(models.Chat), args.Error(1)
}

func (m *chatRepoMock) GetParticipants(ctx context.Context, chatID int) ([]models.Participant, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *chatRepoMock) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *chatRepoMock) ChatIDsForUser(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *chatRepoMock) ListChats(ctx context.Context, userID int, limit, offset int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatSummary), args.Error(1)
}

func (m *chatRepoMock) SetLastMessage(ctx context.Context, chatID int, messageID int) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *chatRepoMock) IncrementUnread(ctx context.Context, chatID int, excludeUserID *int) error {
	args := m.Called(ctx, chatID, excludeUserID)
	return args.Error(0)
}

func (m *chatRepoMock) DecrementUnread(ctx context.Context, chatID int, userID int, by int) error {
	args := m.Called(ctx, chatID, userID, by)
	return args.Error(0)
}

type userRepoMock struct {
	mock.Mock
}

func (m *userRepoMock) SetPresence(ctx context.Context, userID int, online bool, lastSeen time.Time) error {
	args := m.Called(ctx, userID, online, lastSeen)
	return args.Error(0)
}

func (m *userRepoMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.User), args.Error(1)
}

var _ Registry = (*registryMock)(nil)
var _ repositories.ChatRepository = (*chatRepoMock)(nil)
var _ repositories.UserRepository = (*userRepoMock)(nil)

func TestTeardownKeepsPresenceAfterReconnect(t *testing.T) {
	registry := new(registryMock)
	users := new(userRepoMock)
	h := NewHandler(registry, new(chatRepoMock), users, "secret")

	replaced := &Client{Info: ConnInfo{ConnID: "a", UserID: 7, ConnectedAt: time.Now()}}
	registry.On("Unregister", mock.Anything, replaced).Once()
	registry.On("IsOnline", 7).Return(true).Once()

	reason := "replaced"
	h.teardown(context.Background(), replaced, []int{1, 2}, &reason)

	users.AssertNotCalled(t, "SetPresence", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	registry.AssertNotCalled(t, "BroadcastToRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	registry.AssertExpectations(t)
}

func TestTeardownPersistsOfflineOnLastDisconnect(t *testing.T) {
	registry := new(registryMock)
	users := new(userRepoMock)
	h := NewHandler(registry, new(chatRepoMock), users, "secret")

	client := &Client{Info: ConnInfo{ConnID: "a", UserID: 7, ConnectedAt: time.Now()}}
	registry.On("Unregister", mock.Anything, client).Once()
	registry.On("IsOnline", 7).Return(false).Once()
	users.On("SetPresence", mock.Anything, 7, false, mock.Anything).Return(nil).Once()
	registry.On("BroadcastToRoom", 1, 7, models.EventUserStatus, mock.MatchedBy(func(p interface{}) bool {
		status, ok := p.(models.StatusPayload)
		return ok && !status.Online && status.UserID == 7
	})).Once()

	reason := "going away"
	h.teardown(context.Background(), client, []int{1}, &reason)

	users.AssertExpectations(t)
	registry.AssertExpectations(t)
}

func TestTypingRelayIgnoresNonMembers(t *testing.T) {
	registry := new(registryMock)
	chats := new(chatRepoMock)
	h := NewHandler(registry, chats, new(userRepoMock), "secret")

	chats.On("IsParticipant", mock.Anything, 9, 7).Return(false, nil).Once()

	data, err := json.Marshal(map[string]interface{}{
		"event":   models.EventTypingUpdate,
		"payload": models.TypingPayload{ChatID: 9, IsTyping: true},
	})
	require.NoError(t, err)
	h.handleClientEvent(context.Background(), ConnInfo{UserID: 7}, data)

	registry.AssertNotCalled(t, "BroadcastToRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	chats.AssertExpectations(t)
}

func TestTypingRelayStampsSenderAndBroadcasts(t *testing.T) {
	registry := new(registryMock)
	chats := new(chatRepoMock)
	h := NewHandler(registry, chats, new(userRepoMock), "secret")

	chats.On("IsParticipant", mock.Anything, 9, 7).Return(true, nil).Once()
	registry.On("BroadcastToRoom", 9, 7, models.EventTypingUpdate,
		models.TypingPayload{ChatID: 9, UserID: 7, IsTyping: true}).Once()

	data, err := json.Marshal(map[string]interface{}{
		"event": models.EventTypingUpdate,
		// a spoofed user id in the payload must be overwritten
		"payload": models.TypingPayload{ChatID: 9, UserID: 99, IsTyping: true},
	})
	require.NoError(t, err)
	h.handleClientEvent(context.Background(), ConnInfo{UserID: 7}, data)

	registry.AssertExpectations(t)
}
