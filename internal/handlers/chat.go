package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/delivery"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// ChatHandler exposes the chat and message endpoints.
type ChatHandler struct {
	engine *delivery.Engine
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(engine *delivery.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

// StartChat creates or returns the direct chat with a friend.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		UserName    string `json:"user_name" binding:"required"`
		UserPhoto   string `json:"user_photo"`
		FriendID    int    `json:"friend_id" binding:"required"`
		FriendName  string `json:"friend_name" binding:"required"`
		FriendPhoto string `json:"friend_photo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	chat, err := h.engine.CreateDirectChat(c.Request.Context(),
		models.Participant{UserID: userID, UserName: req.UserName, ProfilePhoto: req.UserPhoto},
		models.Participant{UserID: req.FriendID, UserName: req.FriendName, ProfilePhoto: req.FriendPhoto})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

// ListChats returns a paginated chat overview for the user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := currentUserID(c)
	limit, offset := pagination(c)

	chats, err := h.engine.ListChats(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChatMessages returns a chronological page and marks the chat read.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := currentUserID(c)
	limit, offset := pagination(c)

	messages, err := h.engine.GetChatMessages(c.Request.Context(), chatID, userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PostChatMessage sends a message into a chat.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var req struct {
		Content       string               `json:"content"`
		SenderName    string               `json:"sender_name" binding:"required"`
		SenderPhoto   string               `json:"sender_photo"`
		MediaType     models.MediaType     `json:"media_type"`
		MediaURL      string               `json:"media_url"`
		MediaMetadata models.MediaMetadata `json:"media_metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	msg, err := h.engine.Send(c.Request.Context(), delivery.SendInput{
		ChatID:        chatID,
		SenderID:      userID,
		SenderName:    req.SenderName,
		SenderPhoto:   req.SenderPhoto,
		Content:       req.Content,
		MediaType:     req.MediaType,
		MediaURL:      req.MediaURL,
		MediaMetadata: req.MediaMetadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	_ = observability.PublishEvent(c.Request.Context(), "chat_events.messages",
		observability.NewEnvelope("chat_events", "message_sent", map[string]interface{}{
			"message_id": msg.ID,
			"chat_id":    chatID,
			"sender_id":  userID,
		}),
		observability.BuildHeaders(requestIDFromContext(c), ""))

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkMessageRead records a read receipt for one message.
func (h *ChatHandler) MarkMessageRead(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := currentUserID(c)
	msg, err := h.engine.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkChatMessagesRead records read receipts for a set of messages.
func (h *ChatHandler) MarkChatMessagesRead(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var req struct {
		MessageIDs []int `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	count, err := h.engine.MarkManyRead(c.Request.Context(), chatID, req.MessageIDs, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked_read": count})
}

// DeleteMessage soft-deletes the sender's own message.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := currentUserID(c)
	if err := h.engine.Delete(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
