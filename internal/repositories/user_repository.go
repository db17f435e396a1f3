package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// UserRepository persists presence state so REST reads reflect the latest
// known status even without an open connection.
type UserRepository interface {
	SetPresence(ctx context.Context, userID int, online bool, lastSeen time.Time) error
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// SetPresence upserts the user's online flag and last-seen timestamp.
func (r *UserRepo) SetPresence(ctx context.Context, userID int, online bool, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, is_online, last_seen) VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET is_online = EXCLUDED.is_online, last_seen = EXCLUDED.last_seen`,
		userID, online, lastSeen)
	return err
}

// GetUser fetches presence state for one user.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, is_online, last_seen FROM users WHERE id=$1`, userID)
	return user, err
}
