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

var ErrNotificationNotFound = errors.New("notification not found")

const notificationColumns = `id, user_id, type, title, body, data, status, priority, category, scheduled_for, batch_id, delivered_at, seen_at, error, created_at`

// NotificationRepository persists notifications through their dispatch
// lifecycle. Status transitions happen here so every mutation is one atomic
// statement; the pipeline never read-modify-writes in memory.
type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	CreateBulk(ctx context.Context, list []models.Notification) ([]models.Notification, error)
	GetByID(ctx context.Context, id int) (models.Notification, error)
	List(ctx context.Context, userID int, limit, offset int) ([]models.Notification, error)
	MarkSeen(ctx context.Context, id int, userID int) error
	ClaimPending(ctx context.Context, now time.Time, limit int) ([]models.Notification, error)
	MarkProcessing(ctx context.Context, id int) error
	SetBatchID(ctx context.Context, ids []int, batchID string) error
	MarkDelivered(ctx context.Context, id int, at time.Time) error
	MarkFailed(ctx context.Context, id int, reason string) error
	MarkSkipped(ctx context.Context, id int, reason string) error
	Reschedule(ctx context.Context, id int, at time.Time) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create persists a Pending notification.
func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ScheduledFor.IsZero() {
		n.ScheduledFor = time.Now().UTC()
	}
	var stored models.Notification
	err := r.db.QueryRowxContext(ctx, `INSERT INTO notifications (user_id, type, title, body, data, priority, category, scheduled_for)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+notificationColumns,
		n.UserID, n.Type, n.Title, n.Body, n.Data, n.Priority, n.Category, n.ScheduledFor).
		StructScan(&stored)
	return stored, err
}

// CreateBulk inserts all records in one transaction.
func (r *NotificationRepo) CreateBulk(ctx context.Context, list []models.Notification) ([]models.Notification, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stored := make([]models.Notification, 0, len(list))
	for _, n := range list {
		if n.ScheduledFor.IsZero() {
			n.ScheduledFor = time.Now().UTC()
		}
		var row models.Notification
		if err = tx.QueryRowxContext(ctx, `INSERT INTO notifications (user_id, type, title, body, data, priority, category, scheduled_for)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            RETURNING `+notificationColumns,
			n.UserID, n.Type, n.Title, n.Body, n.Data, n.Priority, n.Category, n.ScheduledFor).
			StructScan(&row); err != nil {
			return nil, err
		}
		stored = append(stored, row)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

// GetByID fetches one notification.
func (r *NotificationRepo) GetByID(ctx context.Context, id int) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// List returns a newest-first page of a user's notifications.
func (r *NotificationRepo) List(ctx context.Context, userID int, limit, offset int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list, `SELECT `+notificationColumns+` FROM notifications
        WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	return list, err
}

// MarkSeen stamps the in-app seen timestamp, scoped to the owner.
func (r *NotificationRepo) MarkSeen(ctx context.Context, id int, userID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET seen_at = NOW() WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ClaimPending atomically flips up to limit due Pending rows to Processing
// and returns them. SKIP LOCKED keeps concurrent scheduler runs from
// claiming the same rows.
func (r *NotificationRepo) ClaimPending(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	var claimed []models.Notification
	err := r.db.SelectContext(ctx, &claimed, `UPDATE notifications SET status=$1
        WHERE id IN (
            SELECT id FROM notifications
            WHERE status=$2 AND scheduled_for <= $3
            ORDER BY scheduled_for
            LIMIT $4
            FOR UPDATE SKIP LOCKED
        )
        RETURNING `+notificationColumns,
		models.StatusProcessing, models.StatusPending, now, limit)
	return claimed, err
}

// MarkProcessing claims a single notification on the direct-queue path.
func (r *NotificationRepo) MarkProcessing(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status=$2 WHERE id=$1`, id, models.StatusProcessing)
	return err
}

// SetBatchID stamps one user-group of claimed notifications.
func (r *NotificationRepo) SetBatchID(ctx context.Context, ids []int, batchID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET batch_id=$2 WHERE id = ANY($1)`, pq.Array(ids), batchID)
	return err
}

// MarkDelivered records terminal success.
func (r *NotificationRepo) MarkDelivered(ctx context.Context, id int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status=$2, delivered_at=$3, error=NULL WHERE id=$1`,
		id, models.StatusDelivered, at)
	return err
}

// MarkFailed records terminal failure with the provider error.
func (r *NotificationRepo) MarkFailed(ctx context.Context, id int, reason string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status=$2, error=$3 WHERE id=$1`,
		id, models.StatusFailed, reason)
	return err
}

// MarkSkipped records that preferences suppressed the notification.
func (r *NotificationRepo) MarkSkipped(ctx context.Context, id int, reason string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status=$2, error=$3 WHERE id=$1`,
		id, models.StatusSkipped, reason)
	return err
}

// Reschedule bumps scheduled_for and returns the row to Pending, used for
// quiet-hours deferral.
func (r *NotificationRepo) Reschedule(ctx context.Context, id int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET status=$2, scheduled_for=$3, batch_id=NULL WHERE id=$1`,
		id, models.StatusPending, at)
	return err
}
