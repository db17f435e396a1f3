package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

// Engine is the authoritative write path for messages: it validates
// against the store, persists, queues the durable fanout job and pushes
// best-effort socket events to connected participants.
type Engine struct {
	chats     repositories.ChatRepository
	messages  repositories.MessageRepository
	groups    repositories.GroupRepository
	registry  ws.Registry
	transport rabbitmq.Transport

	// skipSenderUnread restores the intuitive counter semantics. The
	// default increments the sender's own unread count on send, matching
	// the long-observed production behavior clients compensate for.
	skipSenderUnread bool
}

// NewEngine constructs the delivery engine.
func NewEngine(chats repositories.ChatRepository, messages repositories.MessageRepository, groups repositories.GroupRepository, registry ws.Registry, transport rabbitmq.Transport, skipSenderUnread bool) *Engine {
	return &Engine{
		chats:            chats,
		messages:         messages,
		groups:           groups,
		registry:         registry,
		transport:        transport,
		skipSenderUnread: skipSenderUnread,
	}
}

// SendInput carries one message send request.
type SendInput struct {
	ChatID        int
	SenderID      int
	SenderName    string
	SenderPhoto   string
	Content       string
	MediaType     models.MediaType
	MediaURL      string
	MediaMetadata models.MediaMetadata
}

// Send persists a message and fans it out. The content reaches every
// currently connected room member synchronously; offline participants
// pick it up via pagination once they reconnect.
func (e *Engine) Send(ctx context.Context, in SendInput) (models.Message, error) {
	chat, err := e.chats.GetChat(ctx, in.ChatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return models.Message{}, fmt.Errorf("%w: chat %d", ErrNotFound, in.ChatID)
		}
		return models.Message{}, err
	}

	participants, err := e.chats.GetParticipants(ctx, in.ChatID)
	if err != nil {
		return models.Message{}, err
	}
	if !containsUser(participants, in.SenderID) {
		return models.Message{}, fmt.Errorf("%w: sender is not a chat participant", ErrForbidden)
	}

	if chat.Type == models.ChatGroup {
		group, err := e.groups.GetGroupByChatID(ctx, in.ChatID)
		if err != nil {
			return models.Message{}, err
		}
		if group.OnlyAdminCanMessage && !group.IsAdmin(in.SenderID) {
			return models.Message{}, fmt.Errorf("%w: only admins may message this group", ErrForbidden)
		}
	}

	if in.Content == "" && in.MediaURL == "" {
		return models.Message{}, fmt.Errorf("%w: empty message", ErrBadRequest)
	}
	mediaType := in.MediaType
	if mediaType == "" {
		mediaType = models.MediaText
	}

	msg, err := e.messages.CreateMessage(ctx, models.Message{
		ChatID:        in.ChatID,
		SenderID:      in.SenderID,
		SenderName:    in.SenderName,
		SenderPhoto:   in.SenderPhoto,
		Content:       in.Content,
		MediaType:     mediaType,
		MediaURL:      in.MediaURL,
		MediaMetadata: in.MediaMetadata,
	})
	if err != nil {
		return models.Message{}, err
	}

	if err := e.chats.SetLastMessage(ctx, in.ChatID, msg.ID); err != nil {
		return models.Message{}, err
	}
	var exclude *int
	if e.skipSenderUnread {
		exclude = &in.SenderID
	}
	if err := e.chats.IncrementUnread(ctx, in.ChatID, exclude); err != nil {
		return models.Message{}, err
	}
	observability.IncMessageSent()

	job := models.FanoutJob{MessageID: msg.ID, ChatID: in.ChatID, SenderID: in.SenderID}
	if err := e.transport.Publish(ctx, rabbitmq.QueueFanout, job, 0); err != nil {
		log.Printf("fanout publish failed for message %d: %v", msg.ID, err)
		observability.IncFanoutJob("publish_error")
	}

	e.registry.BroadcastToRoom(in.ChatID, 0, models.EventMessageReceived, msg)

	for _, p := range participants {
		if p.UserID == in.SenderID || !e.registry.IsOnline(p.UserID) {
			continue
		}
		e.registry.Send(p.UserID, models.EventMessageDelivered,
			models.DeliveredPayload{MessageID: msg.ID, ChatID: in.ChatID, UserID: p.UserID})
	}

	return msg, nil
}

// MarkRead records a read receipt for a single message. Repeated calls
// are no-ops: the unread counter only moves on the first read.
func (e *Engine) MarkRead(ctx context.Context, messageID, userID int) (models.Message, error) {
	msg, err := e.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return models.Message{}, err
	}

	if err := e.requireParticipant(ctx, msg.ChatID, userID); err != nil {
		return models.Message{}, err
	}

	newlyRead, err := e.messages.MarkRead(ctx, msg.ChatID, []int{messageID}, userID)
	if err != nil {
		return models.Message{}, err
	}
	e.settleRead(ctx, msg.ChatID, userID, newlyRead)

	msg.DeliveredTo, msg.ReadBy, err = e.loadReceipts(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkManyRead records read receipts for a set of messages in one chat.
func (e *Engine) MarkManyRead(ctx context.Context, chatID int, messageIDs []int, userID int) (int, error) {
	if _, err := e.chats.GetChat(ctx, chatID); err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return 0, fmt.Errorf("%w: chat %d", ErrNotFound, chatID)
		}
		return 0, err
	}
	if err := e.requireParticipant(ctx, chatID, userID); err != nil {
		return 0, err
	}

	newlyRead, err := e.messages.MarkRead(ctx, chatID, messageIDs, userID)
	if err != nil {
		return 0, err
	}
	e.settleRead(ctx, chatID, userID, newlyRead)
	return len(newlyRead), nil
}

// Delete soft-deletes a message. Only the sender may delete; receipt
// history and unread counters are left untouched and clients re-query.
func (e *Engine) Delete(ctx context.Context, messageID, userID int) error {
	msg, err := e.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return err
	}
	if msg.SenderID != userID {
		return fmt.Errorf("%w: only the sender may delete a message", ErrForbidden)
	}
	return e.messages.SoftDelete(ctx, messageID, userID)
}

// GetChatMessages returns a chronological page of messages and, as a
// side effect, marks everything unread in the chat as read for the
// requester so the client needs no second round trip.
func (e *Engine) GetChatMessages(ctx context.Context, chatID, userID, limit, offset int) ([]models.Message, error) {
	if err := e.requireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	page, err := e.messages.ListChatMessages(ctx, chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	for i := range page {
		page[i].DeliveredTo, page[i].ReadBy, err = e.loadReceipts(ctx, page[i].ID)
		if err != nil {
			return nil, err
		}
	}

	newlyRead, err := e.messages.MarkChatRead(ctx, chatID, userID)
	if err != nil {
		log.Printf("mark chat read failed for chat %d user %d: %v", chatID, userID, err)
		return page, nil
	}
	e.settleRead(ctx, chatID, userID, newlyRead)

	return page, nil
}

// CreateDirectChat returns the direct chat between two users, creating
// it on first use.
func (e *Engine) CreateDirectChat(ctx context.Context, user, friend models.Participant) (models.Chat, error) {
	if friend.UserID == 0 {
		return models.Chat{}, fmt.Errorf("%w: friend id is required", ErrBadRequest)
	}
	if user.UserID == friend.UserID {
		return models.Chat{}, fmt.Errorf("%w: cannot chat with yourself", ErrBadRequest)
	}
	chat, err := e.chats.CreateOrGetDirectChat(ctx, user, friend)
	if err != nil {
		return models.Chat{}, err
	}
	e.registry.JoinRoom(user.UserID, chat.ID)
	e.registry.JoinRoom(friend.UserID, chat.ID)
	return chat, nil
}

// ListChats returns a paginated chat overview with unread counts.
func (e *Engine) ListChats(ctx context.Context, userID, limit, offset int) ([]models.ChatSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.chats.ListChats(ctx, userID, limit, offset)
}

func (e *Engine) requireParticipant(ctx context.Context, chatID, userID int) error {
	member, err := e.chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a chat participant", ErrForbidden)
	}
	return nil
}

// settleRead decrements the unread counter by the newly read count and
// announces the read to the room. Broadcast failures stay invisible.
func (e *Engine) settleRead(ctx context.Context, chatID, userID int, newlyRead []int) {
	if len(newlyRead) == 0 {
		return
	}
	if err := e.chats.DecrementUnread(ctx, chatID, userID, len(newlyRead)); err != nil {
		log.Printf("unread decrement failed for chat %d user %d: %v", chatID, userID, err)
	}
	e.registry.BroadcastToRoom(chatID, 0, models.EventMessageReadUpdate, models.ReadUpdatePayload{
		ChatID:     chatID,
		UserID:     userID,
		MessageIDs: newlyRead,
		Timestamp:  time.Now().UTC(),
	})
}

func (e *Engine) loadReceipts(ctx context.Context, messageID int) (delivered, read []models.Receipt, err error) {
	receipts, err := e.messages.GetReceipts(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range receipts {
		delivered = append(delivered, r)
		if r.ReadAt != nil {
			read = append(read, r)
		}
	}
	return delivered, read, nil
}

func containsUser(participants []models.Participant, userID int) bool {
	for _, p := range participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
