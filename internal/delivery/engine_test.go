package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
)

func newTestEngine(skipSenderUnread bool) (*Engine, *mocks.ChatRepositoryMock, *mocks.MessageRepositoryMock, *mocks.GroupRepositoryMock, *mocks.RegistryMock, *mocks.TransportMock) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	groups := new(mocks.GroupRepositoryMock)
	registry := new(mocks.RegistryMock)
	transport := new(mocks.TransportMock)
	engine := NewEngine(chats, messages, groups, registry, transport, skipSenderUnread)
	return engine, chats, messages, groups, registry, transport
}

func directParticipants() []models.Participant {
	return []models.Participant{
		{ChatID: 3, UserID: 1, UserName: "alice"},
		{ChatID: 3, UserID: 2, UserName: "bob"},
	}
}

func TestSendDeliversToOnlineRecipient(t *testing.T) {
	engine, chats, messages, _, registry, transport := newTestEngine(false)
	ctx := context.Background()

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, Type: models.ChatDirect}, nil).Once()
	chats.On("GetParticipants", mock.Anything, 3).Return(directParticipants(), nil).Once()
	messages.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: 10, ChatID: 3, SenderID: 1, Content: "hi"}, nil).Once()
	chats.On("SetLastMessage", mock.Anything, 3, 10).Return(nil).Once()
	chats.On("IncrementUnread", mock.Anything, 3, (*int)(nil)).Return(nil).Once()
	transport.On("Publish", mock.Anything, rabbitmq.QueueFanout,
		models.FanoutJob{MessageID: 10, ChatID: 3, SenderID: 1}, uint8(0)).Return(nil).Once()
	registry.On("BroadcastToRoom", 3, 0, models.EventMessageReceived, mock.Anything).Once()
	registry.On("IsOnline", 2).Return(true).Once()
	registry.On("Send", 2, models.EventMessageDelivered,
		models.DeliveredPayload{MessageID: 10, ChatID: 3, UserID: 2}).Return(true).Once()

	msg, err := engine.Send(ctx, SendInput{ChatID: 3, SenderID: 1, SenderName: "alice", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 10, msg.ID)

	chats.AssertExpectations(t)
	messages.AssertExpectations(t)
	registry.AssertExpectations(t)
	transport.AssertExpectations(t)
}

func TestSendSkipsOfflineRecipient(t *testing.T) {
	engine, chats, messages, _, registry, transport := newTestEngine(false)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, Type: models.ChatDirect}, nil).Once()
	chats.On("GetParticipants", mock.Anything, 3).Return(directParticipants(), nil).Once()
	messages.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: 10, ChatID: 3, SenderID: 1}, nil).Once()
	chats.On("SetLastMessage", mock.Anything, 3, 10).Return(nil).Once()
	chats.On("IncrementUnread", mock.Anything, 3, (*int)(nil)).Return(nil).Once()
	transport.On("Publish", mock.Anything, rabbitmq.QueueFanout, mock.Anything, uint8(0)).Return(nil).Once()
	registry.On("BroadcastToRoom", 3, 0, models.EventMessageReceived, mock.Anything).Once()
	registry.On("IsOnline", 2).Return(false).Once()

	_, err := engine.Send(context.Background(), SendInput{ChatID: 3, SenderID: 1, Content: "hi"})
	require.NoError(t, err)

	registry.AssertNotCalled(t, "Send", 2, models.EventMessageDelivered, mock.Anything)
}

func TestSendUnknownChat(t *testing.T) {
	engine, chats, _, _, _, _ := newTestEngine(false)

	chats.On("GetChat", mock.Anything, 99).Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	_, err := engine.Send(context.Background(), SendInput{ChatID: 99, SenderID: 1, Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendNonParticipant(t *testing.T) {
	engine, chats, _, _, _, _ := newTestEngine(false)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, Type: models.ChatDirect}, nil).Once()
	chats.On("GetParticipants", mock.Anything, 3).Return(directParticipants(), nil).Once()

	_, err := engine.Send(context.Background(), SendInput{ChatID: 3, SenderID: 9, Content: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSendAdminOnlyGroupRejectsMember(t *testing.T) {
	engine, chats, _, groups, _, _ := newTestEngine(false)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, Type: models.ChatGroup}, nil).Once()
	chats.On("GetParticipants", mock.Anything, 3).Return(directParticipants(), nil).Once()
	groups.On("GetGroupByChatID", mock.Anything, 3).
		Return(models.Group{ID: 5, ChatID: 3, OnlyAdminCanMessage: true, Admins: []int{2}}, nil).Once()

	_, err := engine.Send(context.Background(), SendInput{ChatID: 3, SenderID: 1, Content: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSendSkipSenderUnreadFlag(t *testing.T) {
	engine, chats, messages, _, registry, transport := newTestEngine(true)

	sender := 1
	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, Type: models.ChatDirect}, nil).Once()
	chats.On("GetParticipants", mock.Anything, 3).Return(directParticipants(), nil).Once()
	messages.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: 10, ChatID: 3, SenderID: sender}, nil).Once()
	chats.On("SetLastMessage", mock.Anything, 3, 10).Return(nil).Once()
	chats.On("IncrementUnread", mock.Anything, 3, &sender).Return(nil).Once()
	transport.On("Publish", mock.Anything, rabbitmq.QueueFanout, mock.Anything, uint8(0)).Return(nil).Once()
	registry.On("BroadcastToRoom", 3, 0, models.EventMessageReceived, mock.Anything).Once()
	registry.On("IsOnline", 2).Return(false).Once()

	_, err := engine.Send(context.Background(), SendInput{ChatID: 3, SenderID: sender, Content: "hi"})
	require.NoError(t, err)
	chats.AssertExpectations(t)
}

func TestMarkReadIdempotent(t *testing.T) {
	engine, chats, messages, _, registry, _ := newTestEngine(false)

	messages.On("GetMessage", mock.Anything, 10).
		Return(models.Message{ID: 10, ChatID: 3, SenderID: 1}, nil).Twice()
	chats.On("IsParticipant", mock.Anything, 3, 2).Return(true, nil).Twice()

	// first read decrements and broadcasts
	messages.On("MarkRead", mock.Anything, 3, []int{10}, 2).Return([]int{10}, nil).Once()
	chats.On("DecrementUnread", mock.Anything, 3, 2, 1).Return(nil).Once()
	registry.On("BroadcastToRoom", 3, 0, models.EventMessageReadUpdate, mock.Anything).Once()
	messages.On("GetReceipts", mock.Anything, 10).Return([]models.Receipt{{UserID: 1}}, nil).Twice()

	_, err := engine.MarkRead(context.Background(), 10, 2)
	require.NoError(t, err)

	// second read is a no-op
	messages.On("MarkRead", mock.Anything, 3, []int{10}, 2).Return([]int{}, nil).Once()

	_, err = engine.MarkRead(context.Background(), 10, 2)
	require.NoError(t, err)

	chats.AssertNumberOfCalls(t, "DecrementUnread", 1)
	registry.AssertNumberOfCalls(t, "BroadcastToRoom", 1)
}

func TestMarkManyReadDecrementsByNewCount(t *testing.T) {
	engine, chats, messages, _, registry, _ := newTestEngine(false)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3}, nil).Once()
	chats.On("IsParticipant", mock.Anything, 3, 2).Return(true, nil).Once()
	messages.On("MarkRead", mock.Anything, 3, []int{10, 11, 12}, 2).Return([]int{11, 12}, nil).Once()
	chats.On("DecrementUnread", mock.Anything, 3, 2, 2).Return(nil).Once()
	registry.On("BroadcastToRoom", 3, 0, models.EventMessageReadUpdate, mock.Anything).Once()

	count, err := engine.MarkManyRead(context.Background(), 3, []int{10, 11, 12}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	chats.AssertExpectations(t)
}

func TestDeleteOnlyBySender(t *testing.T) {
	engine, _, messages, _, _, _ := newTestEngine(false)

	messages.On("GetMessage", mock.Anything, 10).
		Return(models.Message{ID: 10, ChatID: 3, SenderID: 1}, nil).Twice()
	messages.On("SoftDelete", mock.Anything, 10, 1).Return(nil).Once()

	err := engine.Delete(context.Background(), 10, 2)
	assert.ErrorIs(t, err, ErrForbidden)

	err = engine.Delete(context.Background(), 10, 1)
	assert.NoError(t, err)
}

func TestGetChatMessagesReversesAndMarksRead(t *testing.T) {
	engine, chats, messages, _, registry, _ := newTestEngine(false)

	chats.On("IsParticipant", mock.Anything, 3, 2).Return(true, nil).Once()
	messages.On("ListChatMessages", mock.Anything, 3, 50, 0).Return([]models.Message{
		{ID: 12, ChatID: 3}, {ID: 11, ChatID: 3}, {ID: 10, ChatID: 3},
	}, nil).Once()
	messages.On("GetReceipts", mock.Anything, mock.Anything).Return([]models.Receipt{}, nil).Times(3)
	messages.On("MarkChatRead", mock.Anything, 3, 2).Return([]int{11, 12}, nil).Once()
	chats.On("DecrementUnread", mock.Anything, 3, 2, 2).Return(nil).Once()
	registry.On("BroadcastToRoom", 3, 0, models.EventMessageReadUpdate, mock.Anything).Once()

	page, err := engine.GetChatMessages(context.Background(), 3, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, []int{page[0].ID, page[1].ID, page[2].ID}, []int{10, 11, 12})
}
