package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository persists messages and their receipt state.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListChatMessages(ctx context.Context, chatID int, limit, offset int) ([]models.Message, error)
	GetReceipts(ctx context.Context, messageID int) ([]models.Receipt, error)
	MarkDelivered(ctx context.Context, messageID int, userID int) (bool, error)
	MarkRead(ctx context.Context, chatID int, messageIDs []int, userID int) ([]int, error)
	MarkChatRead(ctx context.Context, chatID int, userID int) ([]int, error)
	SoftDelete(ctx context.Context, messageID int, senderID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and records self-delivery for the sender
// in the same transaction, so deliveredTo always contains the sender.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var stored models.Message
	if err = tx.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, sender_id, sender_name, sender_photo, content, media_type, media_url, media_metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, chat_id, sender_id, sender_name, sender_photo, content, media_type, media_url, media_metadata, is_deleted, created_at`,
		msg.ChatID, msg.SenderID, msg.SenderName, msg.SenderPhoto, msg.Content, msg.MediaType, msg.MediaURL, msg.MediaMetadata).
		StructScan(&stored); err != nil {
		return models.Message{}, err
	}

	var selfReceipt models.Receipt
	if err = tx.QueryRowxContext(ctx, `INSERT INTO message_receipts (message_id, user_id) VALUES ($1, $2)
        RETURNING user_id, delivered_at, read_at`, stored.ID, msg.SenderID).
		StructScan(&selfReceipt); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}

	stored.DeliveredTo = []models.Receipt{selfReceipt}
	return stored, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, chat_id, sender_id, sender_name, sender_photo, content, media_type, media_url, media_metadata, is_deleted, created_at
        FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListChatMessages returns a newest-first page of non-deleted messages.
// Callers reverse the page to chronological order before returning it.
func (r *MessageRepo) ListChatMessages(ctx context.Context, chatID int, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, chat_id, sender_id, sender_name, sender_photo, content, media_type, media_url, media_metadata, is_deleted, created_at
        FROM messages
        WHERE chat_id=$1 AND is_deleted = FALSE
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`, chatID, limit, offset)
	return msgs, err
}

// GetReceipts returns the delivery/read receipt set for a message.
func (r *MessageRepo) GetReceipts(ctx context.Context, messageID int) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := r.db.SelectContext(ctx, &receipts, `SELECT user_id, delivered_at, read_at FROM message_receipts WHERE message_id=$1 ORDER BY user_id`, messageID)
	return receipts, err
}

// MarkDelivered records a delivery receipt. Returns false when the receipt
// already existed; duplicates from queue redelivery are harmless.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO message_receipts (message_id, user_id) VALUES ($1, $2)
        ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// MarkRead stamps read receipts for the given messages, inserting a delivery
// receipt first when one is missing. Returns only the newly read ids so the
// unread decrement matches: a repeated read is a no-op.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID int, messageIDs []int, userID int) ([]int, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO message_receipts (message_id, user_id)
        SELECT m.id, $3 FROM messages m WHERE m.chat_id=$1 AND m.id = ANY($2)
        ON CONFLICT (message_id, user_id) DO NOTHING`, chatID, pq.Array(messageIDs), userID); err != nil {
		return nil, err
	}

	var newlyRead []int
	if err = tx.SelectContext(ctx, &newlyRead, `UPDATE message_receipts mr SET read_at = $4
        FROM messages m
        WHERE m.id = mr.message_id AND m.chat_id=$1 AND mr.message_id = ANY($2) AND mr.user_id=$3 AND mr.read_at IS NULL
        RETURNING mr.message_id`, chatID, pq.Array(messageIDs), userID, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return newlyRead, nil
}

// MarkChatRead marks every message in the chat not sent by the user as read.
// Backs the mark-as-read-on-fetch behavior of the message page endpoint.
func (r *MessageRepo) MarkChatRead(ctx context.Context, chatID int, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM messages m
        WHERE m.chat_id=$1 AND m.sender_id<>$2 AND m.is_deleted = FALSE
        AND NOT EXISTS (SELECT 1 FROM message_receipts mr WHERE mr.message_id=m.id AND mr.user_id=$2 AND mr.read_at IS NOT NULL)`,
		chatID, userID)
	if err != nil {
		return nil, err
	}
	return r.MarkRead(ctx, chatID, ids, userID)
}

// SoftDelete flags the message deleted and redacts its content. Receipt
// history survives so other participants' views keep their ordering.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int, senderID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_deleted = TRUE, content = $3 WHERE id=$1 AND sender_id=$2`,
		messageID, senderID, models.DeletedPlaceholder)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
