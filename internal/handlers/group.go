package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/delivery"
	"messaging-service/internal/models"
)

// GroupHandler exposes group lifecycle endpoints.
type GroupHandler struct {
	engine *delivery.Engine
}

// NewGroupHandler builds a GroupHandler.
func NewGroupHandler(engine *delivery.Engine) *GroupHandler {
	return &GroupHandler{engine: engine}
}

type participantRequest struct {
	UserID       int    `json:"user_id" binding:"required"`
	UserName     string `json:"user_name" binding:"required"`
	ProfilePhoto string `json:"profile_photo"`
}

func toParticipants(reqs []participantRequest) []models.Participant {
	out := make([]models.Participant, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, models.Participant{
			UserID:       r.UserID,
			UserName:     r.UserName,
			ProfilePhoto: r.ProfilePhoto,
		})
	}
	return out
}

// CreateGroup creates a group chat with the caller as first admin.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name         string               `json:"name" binding:"required"`
		Description  string               `json:"description"`
		Photo        string               `json:"photo"`
		CreatorName  string               `json:"creator_name" binding:"required"`
		CreatorPhoto string               `json:"creator_photo"`
		Members      []participantRequest `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	creator := models.Participant{UserID: userID, UserName: req.CreatorName, ProfilePhoto: req.CreatorPhoto}
	group, err := h.engine.CreateGroup(c.Request.Context(), creator, delivery.GroupInput{
		Name:        req.Name,
		Description: req.Description,
		Photo:       req.Photo,
		Members:     toParticipants(req.Members),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// GetGroup returns one group.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	group, err := h.engine.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// AddParticipants adds members to a group on behalf of an admin.
func (h *GroupHandler) AddParticipants(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req struct {
		Participants []participantRequest `json:"participants" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	group, err := h.engine.AddParticipants(c.Request.Context(), groupID, userID, toParticipants(req.Participants))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// JoinViaInvite joins the caller to the group behind an invite token.
func (h *GroupHandler) JoinViaInvite(c *gin.Context) {
	token := c.Param("token")

	var req struct {
		UserName     string `json:"user_name" binding:"required"`
		ProfilePhoto string `json:"profile_photo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	group, err := h.engine.JoinViaInvite(c.Request.Context(), token, models.Participant{
		UserID:       userID,
		UserName:     req.UserName,
		ProfilePhoto: req.ProfilePhoto,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// UpdateSettings applies a partial settings change.
func (h *GroupHandler) UpdateSettings(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var update models.GroupSettingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	group, err := h.engine.UpdateGroupSettings(c.Request.Context(), groupID, userID, update)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}
