package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func TestCreateGroupAnnouncesToMembers(t *testing.T) {
	engine, _, _, groups, registry, _ := newTestEngine(false)

	creator := models.Participant{UserID: 1, UserName: "alice"}
	members := []models.Participant{{UserID: 2, UserName: "bob"}}

	groups.On("CreateGroup", mock.Anything, mock.MatchedBy(func(g models.Group) bool {
		return g.Name == "team" && g.InviteToken != ""
	}), creator, members).Return(models.Group{ID: 5, ChatID: 9, Name: "team", MemberCount: 2}, nil).Once()
	registry.On("JoinRoom", 1, 9).Once()
	registry.On("JoinRoom", 2, 9).Once()
	registry.On("Send", 2, models.EventGroupNew, mock.Anything).Return(true).Once()

	group, err := engine.CreateGroup(context.Background(), creator, GroupInput{Name: "team", Members: members})
	require.NoError(t, err)
	assert.Equal(t, 5, group.ID)
	registry.AssertExpectations(t)
}

func TestCreateGroupDeduplicatesCreator(t *testing.T) {
	engine, _, _, groups, registry, _ := newTestEngine(false)

	creator := models.Participant{UserID: 1, UserName: "alice"}

	groups.On("CreateGroup", mock.Anything, mock.Anything, creator, []models.Participant{}).
		Return(models.Group{ID: 5, ChatID: 9, MemberCount: 1}, nil).Once()
	registry.On("JoinRoom", 1, 9).Once()

	_, err := engine.CreateGroup(context.Background(), creator, GroupInput{
		Name:    "solo",
		Members: []models.Participant{{UserID: 1, UserName: "alice"}},
	})
	require.NoError(t, err)
	groups.AssertExpectations(t)
}

func TestAddParticipantsRequiresAdmin(t *testing.T) {
	engine, _, _, groups, _, _ := newTestEngine(false)

	groups.On("GetGroup", mock.Anything, 5).
		Return(models.Group{ID: 5, ChatID: 9, Admins: []int{1}}, nil).Once()

	_, err := engine.AddParticipants(context.Background(), 5, 2, []models.Participant{{UserID: 3, UserName: "carol"}})
	assert.ErrorIs(t, err, ErrForbidden)
	groups.AssertNotCalled(t, "AddParticipants", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddParticipantsOverCapacity(t *testing.T) {
	engine, _, _, groups, _, _ := newTestEngine(false)

	groups.On("GetGroup", mock.Anything, 5).
		Return(models.Group{ID: 5, ChatID: 9, Admins: []int{1}, MemberCount: models.MaxGroupMembers}, nil).Once()
	groups.On("AddParticipants", mock.Anything, 5, mock.Anything).
		Return(models.Group{}, nil, repositories.ErrGroupFull).Once()

	_, err := engine.AddParticipants(context.Background(), 5, 1, []models.Participant{{UserID: 401, UserName: "late"}})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestAddParticipantsDefaultsPhotoToGroup(t *testing.T) {
	engine, _, _, groups, registry, _ := newTestEngine(false)

	groups.On("GetGroup", mock.Anything, 5).
		Return(models.Group{ID: 5, ChatID: 9, Photo: "group.png", Admins: []int{1}}, nil).Once()
	groups.On("AddParticipants", mock.Anything, 5,
		[]models.Participant{{UserID: 3, UserName: "carol", ProfilePhoto: "group.png"}}).
		Return(models.Group{ID: 5, ChatID: 9, MemberCount: 3},
			[]models.Participant{{UserID: 3, UserName: "carol", ProfilePhoto: "group.png"}}, nil).Once()
	registry.On("JoinRoom", 3, 9).Once()
	registry.On("Send", 3, models.EventGroupAdded, mock.Anything).Return(false).Once()
	registry.On("BroadcastToRoom", 9, 0, models.EventGroupParticipants, mock.Anything).Once()

	_, err := engine.AddParticipants(context.Background(), 5, 1, []models.Participant{{UserID: 3, UserName: "carol"}})
	require.NoError(t, err)
	groups.AssertExpectations(t)
}

func TestJoinViaInviteRejectsExistingMember(t *testing.T) {
	engine, chats, _, groups, _, _ := newTestEngine(false)

	groups.On("GetGroupByInviteToken", mock.Anything, "tok").
		Return(models.Group{ID: 5, ChatID: 9, MemberCount: 3}, nil).Once()
	chats.On("IsParticipant", mock.Anything, 9, 2).Return(true, nil).Once()

	_, err := engine.JoinViaInvite(context.Background(), "tok", models.Participant{UserID: 2, UserName: "bob"})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestJoinViaInviteUnknownToken(t *testing.T) {
	engine, _, _, groups, _, _ := newTestEngine(false)

	groups.On("GetGroupByInviteToken", mock.Anything, "nope").
		Return(models.Group{}, repositories.ErrGroupNotFound).Once()

	_, err := engine.JoinViaInvite(context.Background(), "nope", models.Participant{UserID: 2, UserName: "bob"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinViaInviteFullGroup(t *testing.T) {
	engine, chats, _, groups, _, _ := newTestEngine(false)

	groups.On("GetGroupByInviteToken", mock.Anything, "tok").
		Return(models.Group{ID: 5, ChatID: 9, MemberCount: models.MaxGroupMembers}, nil).Once()
	chats.On("IsParticipant", mock.Anything, 9, 2).Return(false, nil).Once()

	_, err := engine.JoinViaInvite(context.Background(), "tok", models.Participant{UserID: 2, UserName: "bob"})
	assert.ErrorIs(t, err, ErrBadRequest)
	groups.AssertNotCalled(t, "AddParticipants", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateGroupSettingsRequiresAdmin(t *testing.T) {
	engine, _, _, groups, registry, _ := newTestEngine(false)

	groups.On("GetGroup", mock.Anything, 5).
		Return(models.Group{ID: 5, ChatID: 9, Admins: []int{1}}, nil).Twice()

	_, err := engine.UpdateGroupSettings(context.Background(), 5, 2, models.GroupSettingsUpdate{})
	assert.ErrorIs(t, err, ErrForbidden)

	name := "renamed"
	groups.On("UpdateSettings", mock.Anything, 5, models.GroupSettingsUpdate{Name: &name}).
		Return(models.Group{ID: 5, ChatID: 9, Name: name}, nil).Once()
	registry.On("BroadcastToRoom", 9, 0, models.EventGroupParticipants, mock.Anything).Once()

	updated, err := engine.UpdateGroupSettings(context.Background(), 5, 1, models.GroupSettingsUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
}
