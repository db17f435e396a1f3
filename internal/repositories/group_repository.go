package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrGroupFull     = errors.New("group is at capacity")
)

// GroupRepository abstracts group persistence. A group owns exactly one chat;
// the roster lives on chat_participants so unread counters work uniformly.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group models.Group, creator models.Participant, members []models.Participant) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	GetGroupByChatID(ctx context.Context, chatID int) (models.Group, error)
	GetGroupByInviteToken(ctx context.Context, token string) (models.Group, error)
	AddParticipants(ctx context.Context, groupID int, participants []models.Participant) (models.Group, []models.Participant, error)
	UpdateSettings(ctx context.Context, groupID int, update models.GroupSettingsUpdate) (models.Group, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// CreateGroup creates the owning chat, the group row, the creator admin and
// the initial roster atomically.
func (r *GroupRepo) CreateGroup(ctx context.Context, group models.Group, creator models.Participant, members []models.Participant) (models.Group, error) {
	if len(members)+1 > models.MaxGroupMembers {
		return models.Group{}, ErrGroupFull
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chatID int
	if err = tx.QueryRowxContext(ctx, `INSERT INTO chats (type) VALUES ('group') RETURNING id`).Scan(&chatID); err != nil {
		return models.Group{}, err
	}

	roster := append([]models.Participant{creator}, members...)
	inserted := 0
	for _, p := range roster {
		photo := p.ProfilePhoto
		if photo == "" {
			photo = group.Photo
		}
		var res sql.Result
		res, err = tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, user_name, profile_photo) VALUES ($1, $2, $3, $4)
            ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, p.UserID, p.UserName, photo)
		if err != nil {
			return models.Group{}, err
		}
		count, _ := res.RowsAffected()
		inserted += int(count)
	}

	var stored models.Group
	if err = tx.QueryRowxContext(ctx, `INSERT INTO groups (chat_id, name, description, photo, only_admin_can_message, invite_token, member_count)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, chat_id, name, description, photo, only_admin_can_message, invite_token, member_count, created_at`,
		chatID, group.Name, group.Description, group.Photo, group.OnlyAdminCanMessage, group.InviteToken, inserted).
		StructScan(&stored); err != nil {
		return models.Group{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO group_admins (group_id, user_id) VALUES ($1, $2)`, stored.ID, creator.UserID); err != nil {
		return models.Group{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}

	stored.Admins = []int{creator.UserID}
	return stored, nil
}

// GetGroup fetches a group with its admin set.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	return r.getGroupBy(ctx, `id=$1`, groupID)
}

// GetGroupByChatID resolves the group owning a chat.
func (r *GroupRepo) GetGroupByChatID(ctx context.Context, chatID int) (models.Group, error) {
	return r.getGroupBy(ctx, `chat_id=$1`, chatID)
}

// GetGroupByInviteToken resolves a group from an opaque invite token.
func (r *GroupRepo) GetGroupByInviteToken(ctx context.Context, token string) (models.Group, error) {
	return r.getGroupBy(ctx, `invite_token=$1`, token)
}

func (r *GroupRepo) getGroupBy(ctx context.Context, where string, arg interface{}) (models.Group, error) {
	var group models.Group
	query := fmt.Sprintf(`SELECT id, chat_id, name, description, photo, only_admin_can_message, invite_token, member_count, created_at FROM groups WHERE %s`, where)
	err := r.db.GetContext(ctx, &group, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}

	if err := r.db.SelectContext(ctx, &group.Admins, `SELECT user_id FROM group_admins WHERE group_id=$1 ORDER BY user_id`, group.ID); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// AddParticipants appends new members to the roster. The roster is keyed by
// user id, so re-adding an existing member updates their record instead of
// duplicating it and does not count against the cap. Fails without side
// effects when the result would exceed MaxGroupMembers.
func (r *GroupRepo) AddParticipants(ctx context.Context, groupID int, participants []models.Participant) (models.Group, []models.Participant, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.QueryRowxContext(ctx, `SELECT id, chat_id, name, description, photo, only_admin_can_message, invite_token, member_count, created_at
        FROM groups WHERE id=$1 FOR UPDATE`, groupID).StructScan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrGroupNotFound
		return models.Group{}, nil, err
	}
	if err != nil {
		return models.Group{}, nil, err
	}

	added := make([]models.Participant, 0, len(participants))
	var newCount int
	for _, p := range participants {
		photo := p.ProfilePhoto
		if photo == "" {
			photo = group.Photo
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, user_name, profile_photo) VALUES ($1, $2, $3, $4)
            ON CONFLICT (chat_id, user_id) DO UPDATE SET user_name = EXCLUDED.user_name`, group.ChatID, p.UserID, p.UserName, photo); err != nil {
			return models.Group{}, nil, err
		}
		added = append(added, models.Participant{ChatID: group.ChatID, UserID: p.UserID, UserName: p.UserName, ProfilePhoto: photo})
	}

	if err = tx.GetContext(ctx, &newCount, `SELECT COUNT(*) FROM chat_participants WHERE chat_id=$1`, group.ChatID); err != nil {
		return models.Group{}, nil, err
	}
	if newCount > models.MaxGroupMembers {
		err = ErrGroupFull
		return models.Group{}, nil, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE groups SET member_count=$2 WHERE id=$1`, groupID, newCount); err != nil {
		return models.Group{}, nil, err
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, nil, err
	}

	group.MemberCount = newCount
	if err := r.db.SelectContext(ctx, &group.Admins, `SELECT user_id FROM group_admins WHERE group_id=$1 ORDER BY user_id`, group.ID); err != nil {
		return models.Group{}, nil, err
	}
	return group, added, nil
}

// UpdateSettings applies a partial update of mutable group settings.
func (r *GroupRepo) UpdateSettings(ctx context.Context, groupID int, update models.GroupSettingsUpdate) (models.Group, error) {
	var group models.Group
	err := r.db.QueryRowxContext(ctx, `UPDATE groups SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            only_admin_can_message = COALESCE($4, only_admin_can_message)
        WHERE id=$1
        RETURNING id, chat_id, name, description, photo, only_admin_can_message, invite_token, member_count, created_at`,
		groupID, update.Name, update.Description, update.OnlyAdminCanMessage).StructScan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}

	if err := r.db.SelectContext(ctx, &group.Admins, `SELECT user_id FROM group_admins WHERE group_id=$1 ORDER BY user_id`, group.ID); err != nil {
		return models.Group{}, err
	}
	return group, nil
}
