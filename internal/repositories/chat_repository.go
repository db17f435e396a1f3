package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat and roster persistence.
type ChatRepository interface {
	CreateOrGetDirectChat(ctx context.Context, user, friend models.Participant) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	GetParticipants(ctx context.Context, chatID int) ([]models.Participant, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	ChatIDsForUser(ctx context.Context, userID int) ([]int, error)
	ListChats(ctx context.Context, userID int, limit, offset int) ([]models.ChatSummary, error)
	SetLastMessage(ctx context.Context, chatID int, messageID int) error
	IncrementUnread(ctx context.Context, chatID int, excludeUserID *int) error
	DecrementUnread(ctx context.Context, chatID int, userID int, by int) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateOrGetDirectChat returns the existing direct chat between the two
// users or creates one. Idempotent under concurrency: both users hash to
// one canonical pair key with a unique constraint behind it, so two
// racing first messages converge on the same chat.
func (r *ChatRepo) CreateOrGetDirectChat(ctx context.Context, user, friend models.Participant) (models.Chat, error) {
	if user.UserID == friend.UserID {
		return models.Chat{}, errors.New("cannot create chat with self")
	}

	ids := []int{user.UserID, friend.UserID}
	sort.Ints(ids)
	directKey := fmt.Sprintf("%d:%d", ids[0], ids[1])

	const selectByKey = `SELECT id, type, last_message_id, created_at FROM chats WHERE direct_key=$1`

	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, selectByKey, directKey)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowxContext(ctx, `INSERT INTO chats (type, direct_key) VALUES ('direct', $1)
        ON CONFLICT (direct_key) DO NOTHING
        RETURNING id, type, last_message_id, created_at`, directKey).StructScan(&chat)
	if errors.Is(err, sql.ErrNoRows) {
		// a concurrent request won the insert; return its chat
		var existing models.Chat
		if getErr := r.db.GetContext(ctx, &existing, selectByKey, directKey); getErr != nil {
			return models.Chat{}, getErr
		}
		return existing, nil
	}
	if err != nil {
		return models.Chat{}, err
	}

	for _, p := range []models.Participant{user, friend} {
		if _, err = tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, user_name, profile_photo) VALUES ($1, $2, $3, $4)
            ON CONFLICT (chat_id, user_id) DO NOTHING`, chat.ID, p.UserID, p.UserName, p.ProfilePhoto); err != nil {
			return models.Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, type, last_message_id, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetParticipants returns the chat roster.
func (r *ChatRepo) GetParticipants(ctx context.Context, chatID int) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.SelectContext(ctx, &participants, `SELECT chat_id, user_id, user_name, profile_photo, unread_count
        FROM chat_participants WHERE chat_id=$1 ORDER BY user_id`, chatID)
	return participants, err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// ChatIDsForUser returns ids of every chat the user participates in.
// Used at connect time to join one room per chat.
func (r *ChatRepo) ChatIDsForUser(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT chat_id FROM chat_participants WHERE user_id=$1`, userID)
	return ids, err
}

// chatSummaryRow flattens a chat with its optional last message for one
// scan; message columns are null for chats that have no messages yet.
type chatSummaryRow struct {
	ID          int             `db:"id"`
	Type        models.ChatType `db:"type"`
	UnreadCount int             `db:"unread_count"`
	CreatedAt   time.Time       `db:"created_at"`

	MessageID        *int                 `db:"message_id"`
	SenderID         *int                 `db:"sender_id"`
	SenderName       *string              `db:"sender_name"`
	SenderPhoto      *string              `db:"sender_photo"`
	Content          *string              `db:"content"`
	MediaType        *models.MediaType    `db:"media_type"`
	MediaURL         *string              `db:"media_url"`
	MediaMetadata    models.MediaMetadata `db:"media_metadata"`
	IsDeleted        *bool                `db:"is_deleted"`
	MessageCreatedAt *time.Time           `db:"message_created_at"`
}

// ListChats returns a page of chats for the user with unread counters and
// the last-message preview.
func (r *ChatRepo) ListChats(ctx context.Context, userID int, limit, offset int) ([]models.ChatSummary, error) {
	query := `SELECT c.id, c.type, cp.unread_count, c.created_at,
        m.id AS message_id, m.sender_id, m.sender_name, m.sender_photo,
        m.content, m.media_type, m.media_url, m.media_metadata, m.is_deleted,
        m.created_at AS message_created_at
        FROM chats c
        INNER JOIN chat_participants cp ON cp.chat_id = c.id AND cp.user_id = $1
        LEFT JOIN messages m ON m.id = c.last_message_id
        ORDER BY c.created_at DESC
        LIMIT $2 OFFSET $3`
	var rows []chatSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(rows))
	for _, row := range rows {
		summary := models.ChatSummary{
			ChatID:      row.ID,
			Type:        row.Type,
			UnreadCount: row.UnreadCount,
			CreatedAt:   row.CreatedAt,
		}
		if row.MessageID != nil {
			summary.LastMessage = &models.Message{
				ID:            *row.MessageID,
				ChatID:        row.ID,
				SenderID:      *row.SenderID,
				SenderName:    *row.SenderName,
				SenderPhoto:   *row.SenderPhoto,
				Content:       *row.Content,
				MediaType:     *row.MediaType,
				MediaURL:      *row.MediaURL,
				MediaMetadata: row.MediaMetadata,
				IsDeleted:     *row.IsDeleted,
				CreatedAt:     *row.MessageCreatedAt,
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// SetLastMessage points the chat at its newest message.
func (r *ChatRepo) SetLastMessage(ctx context.Context, chatID int, messageID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chats SET last_message_id=$2 WHERE id=$1`, chatID, messageID)
	return err
}

// IncrementUnread bumps the unread counter for every participant in one
// atomic statement. excludeUserID skips one user when non-nil.
func (r *ChatRepo) IncrementUnread(ctx context.Context, chatID int, excludeUserID *int) error {
	if excludeUserID != nil {
		_, err := r.db.ExecContext(ctx, `UPDATE chat_participants SET unread_count = unread_count + 1 WHERE chat_id=$1 AND user_id<>$2`, chatID, *excludeUserID)
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE chat_participants SET unread_count = unread_count + 1 WHERE chat_id=$1`, chatID)
	return err
}

// DecrementUnread lowers the unread counter, clamped at zero.
func (r *ChatRepo) DecrementUnread(ctx context.Context, chatID int, userID int, by int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chat_participants SET unread_count = GREATEST(unread_count - $3, 0) WHERE chat_id=$1 AND user_id=$2`, chatID, userID, by)
	return err
}
