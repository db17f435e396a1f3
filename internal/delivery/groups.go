package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// GroupInput carries a group creation request.
type GroupInput struct {
	Name        string
	Description string
	Photo       string
	Members     []models.Participant
}

// CreateGroup creates a group chat with the creator as first admin and
// announces it to every member who is currently connected.
func (e *Engine) CreateGroup(ctx context.Context, creator models.Participant, in GroupInput) (models.Group, error) {
	if in.Name == "" {
		return models.Group{}, fmt.Errorf("%w: group name is required", ErrBadRequest)
	}
	members := dedupeParticipants(in.Members, creator.UserID)
	if len(members)+1 > models.MaxGroupMembers {
		return models.Group{}, fmt.Errorf("%w: group capacity is %d members", ErrBadRequest, models.MaxGroupMembers)
	}

	group := models.Group{
		Name:        in.Name,
		Description: in.Description,
		Photo:       in.Photo,
		InviteToken: uuid.NewString(),
	}
	created, err := e.groups.CreateGroup(ctx, group, creator, members)
	if err != nil {
		return models.Group{}, err
	}

	e.registry.JoinRoom(creator.UserID, created.ChatID)
	for _, m := range members {
		e.registry.JoinRoom(m.UserID, created.ChatID)
		e.registry.Send(m.UserID, models.EventGroupNew, created)
	}
	return created, nil
}

// GetGroup loads one group.
func (e *Engine) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	group, err := e.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return models.Group{}, fmt.Errorf("%w: group %d", ErrNotFound, groupID)
		}
		return models.Group{}, err
	}
	return group, nil
}

// AddParticipants adds members on behalf of an admin. Re-adding an
// existing member refreshes their profile fields instead of duplicating
// the roster entry. The 400-member cap is enforced atomically.
func (e *Engine) AddParticipants(ctx context.Context, groupID, actorID int, participants []models.Participant) (models.Group, error) {
	group, err := e.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !group.IsAdmin(actorID) {
		return models.Group{}, fmt.Errorf("%w: only admins may add participants", ErrForbidden)
	}

	cleaned := make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.UserID == 0 || p.UserName == "" {
			return models.Group{}, fmt.Errorf("%w: participants need userId and userName", ErrBadRequest)
		}
		if p.ProfilePhoto == "" {
			p.ProfilePhoto = group.Photo
		}
		cleaned = append(cleaned, p)
	}
	if len(cleaned) == 0 {
		return models.Group{}, fmt.Errorf("%w: no participants given", ErrBadRequest)
	}

	updated, added, err := e.groups.AddParticipants(ctx, groupID, cleaned)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupFull) {
			return models.Group{}, fmt.Errorf("%w: group capacity is %d members", ErrBadRequest, models.MaxGroupMembers)
		}
		return models.Group{}, err
	}

	for _, p := range added {
		e.registry.JoinRoom(p.UserID, updated.ChatID)
		e.registry.Send(p.UserID, models.EventGroupAdded, updated)
	}
	e.registry.BroadcastToRoom(updated.ChatID, 0, models.EventGroupParticipants, updated)
	return updated, nil
}

// JoinViaInvite adds the caller to the group behind an invite token.
func (e *Engine) JoinViaInvite(ctx context.Context, token string, joiner models.Participant) (models.Group, error) {
	group, err := e.groups.GetGroupByInviteToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return models.Group{}, fmt.Errorf("%w: invalid invite", ErrNotFound)
		}
		return models.Group{}, err
	}

	member, err := e.chats.IsParticipant(ctx, group.ChatID, joiner.UserID)
	if err != nil {
		return models.Group{}, err
	}
	if member {
		return models.Group{}, fmt.Errorf("%w: already a member", ErrBadRequest)
	}
	if group.MemberCount >= models.MaxGroupMembers {
		return models.Group{}, fmt.Errorf("%w: group is full", ErrBadRequest)
	}

	if joiner.ProfilePhoto == "" {
		joiner.ProfilePhoto = group.Photo
	}
	updated, _, err := e.groups.AddParticipants(ctx, group.ID, []models.Participant{joiner})
	if err != nil {
		if errors.Is(err, repositories.ErrGroupFull) {
			return models.Group{}, fmt.Errorf("%w: group is full", ErrBadRequest)
		}
		return models.Group{}, err
	}

	e.registry.JoinRoom(joiner.UserID, updated.ChatID)
	e.registry.BroadcastToRoom(updated.ChatID, joiner.UserID, models.EventGroupParticipants, updated)
	return updated, nil
}

// UpdateGroupSettings applies a partial settings change for an admin.
func (e *Engine) UpdateGroupSettings(ctx context.Context, groupID, actorID int, update models.GroupSettingsUpdate) (models.Group, error) {
	group, err := e.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !group.IsAdmin(actorID) {
		return models.Group{}, fmt.Errorf("%w: only admins may change settings", ErrForbidden)
	}

	updated, err := e.groups.UpdateSettings(ctx, groupID, update)
	if err != nil {
		return models.Group{}, err
	}
	e.registry.BroadcastToRoom(updated.ChatID, 0, models.EventGroupParticipants, updated)
	return updated, nil
}

func dedupeParticipants(participants []models.Participant, excludeUserID int) []models.Participant {
	seen := map[int]bool{excludeUserID: true}
	out := make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.UserID == 0 || seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		out = append(out, p)
	}
	return out
}
