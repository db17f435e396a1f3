package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/notification"
	"messaging-service/internal/repositories"
)

// NotificationHandler exposes notification and preference endpoints.
type NotificationHandler struct {
	service *notification.Service
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(service *notification.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type notificationRequest struct {
	UserID       int                         `json:"user_id" binding:"required"`
	Type         models.NotificationChannel  `json:"type"`
	Title        string                      `json:"title"`
	Body         string                      `json:"body"`
	Data         models.NotificationData     `json:"data"`
	Priority     models.NotificationPriority `json:"priority"`
	Category     string                      `json:"category"`
	ScheduledFor *time.Time                  `json:"scheduled_for"`
}

func (r notificationRequest) toInput() notification.CreateInput {
	return notification.CreateInput{
		UserID:       r.UserID,
		Type:         r.Type,
		Title:        r.Title,
		Body:         r.Body,
		Data:         r.Data,
		Priority:     r.Priority,
		Category:     r.Category,
		ScheduledFor: r.ScheduledFor,
	}
}

// Create persists one notification and queues it for dispatch.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.Create(c.Request.Context(), req.toInput())
	if err != nil {
		if errors.Is(err, notification.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create notification"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"notification": created})
}

// CreateBulk persists a set of notifications and queues them as batches.
func (h *NotificationHandler) CreateBulk(c *gin.Context) {
	var req struct {
		Notifications []notificationRequest `json:"notifications" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inputs := make([]notification.CreateInput, 0, len(req.Notifications))
	for _, n := range req.Notifications {
		inputs = append(inputs, n.toInput())
	}

	created, err := h.service.CreateBulk(c.Request.Context(), inputs)
	if err != nil {
		if errors.Is(err, notification.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create notifications"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"notifications": created, "count": len(created)})
}

// List returns a page of the caller's notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	limit, offset := pagination(c)

	list, err := h.service.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkSeen stamps the caller's notification as seen.
func (h *NotificationHandler) MarkSeen(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("notification_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	userID := currentUserID(c)
	if err := h.service.MarkSeen(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"seen": true})
}

// GetPreferences returns the caller's notification preferences.
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID := currentUserID(c)

	prefs, err := h.service.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreferences applies a partial preference change.
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var update models.PreferencesUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	prefs, err := h.service.UpdatePreferences(c.Request.Context(), userID, update)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}
