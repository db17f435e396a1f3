package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// Handler upgrades websocket connections and keeps them registered for
// the lifetime of the socket.
type Handler struct {
	registry  Registry
	chatRepo  repositories.ChatRepository
	userRepo  repositories.UserRepository
	jwtSecret string
}

// NewHandler constructs a websocket Handler.
func NewHandler(registry Registry, chatRepo repositories.ChatRepository, userRepo repositories.UserRepository, jwtSecret string) *Handler {
	return &Handler{registry: registry, chatRepo: chatRepo, userRepo: userRepo, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientEvent is the envelope read from the socket. Only typing updates
// are accepted from clients; everything else arrives via REST.
type clientEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Handle authenticates the request, upgrades it and joins the user to
// all of their chat rooms.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := middleware.ParseUserID(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	rooms, err := h.chatRepo.ChatIDsForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	meta := observability.ClientMetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)
	h.registry.Register(ctx, client, rooms)

	if err := h.userRepo.SetPresence(ctx, userID, true, time.Now()); err != nil {
		c.Error(err)
	}
	for _, chatID := range rooms {
		h.registry.BroadcastToRoom(chatID, userID, models.EventUserStatus,
			models.StatusPayload{UserID: userID, Online: true})
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.connections",
		observability.NewEnvelope("ws_events", "ws_connect", map[string]interface{}{
			"conn_id":   info.ConnID,
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		}),
		observability.BuildHeaders(meta.RequestID, traceID))

	go h.readLoop(client, rooms)
}

func (h *Handler) readLoop(client *Client, rooms []int) {
	ctx := context.Background()
	var closeReason string

	defer h.teardown(ctx, client, rooms, &closeReason)

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		h.handleClientEvent(ctx, client.Info, data)
	}
}

// teardown runs when a read loop exits. The user may have reconnected
// already, in which case this connection was replaced and the user is
// still online: presence stays intact and no offline status goes out.
func (h *Handler) teardown(ctx context.Context, client *Client, rooms []int, closeReason *string) {
	info := client.Info
	h.registry.Unregister(ctx, client)
	if !h.registry.IsOnline(info.UserID) {
		lastSeen := time.Now()
		if err := h.userRepo.SetPresence(ctx, info.UserID, false, lastSeen); err != nil {
			log.Printf("presence update error: %v", err)
		}
		for _, chatID := range rooms {
			h.registry.BroadcastToRoom(chatID, info.UserID, models.EventUserStatus,
				models.StatusPayload{UserID: info.UserID, Online: false, LastSeen: &lastSeen})
		}
	}
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	_ = observability.PublishEvent(ctx, "ws_events.connections",
		observability.NewEnvelope("ws_events", "ws_disconnect", map[string]interface{}{
			"conn_id":     info.ConnID,
			"user_id":     info.UserID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      *closeReason,
		}),
		observability.BuildHeaders(info.RequestID, info.TraceID))
	if client.Conn != nil {
		client.Conn.Close()
	}
}

// handleClientEvent relays typing updates to the rest of the room. The
// chat id comes from the client, so membership is checked before the
// relay; everything else arriving on the socket is ignored.
func (h *Handler) handleClientEvent(ctx context.Context, info ConnInfo, data []byte) {
	var event clientEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return
	}
	if event.Event != models.EventTypingUpdate {
		return
	}
	var typing models.TypingPayload
	if err := json.Unmarshal(event.Payload, &typing); err != nil {
		return
	}
	member, err := h.chatRepo.IsParticipant(ctx, typing.ChatID, info.UserID)
	if err != nil || !member {
		return
	}
	typing.UserID = info.UserID
	h.registry.BroadcastToRoom(typing.ChatID, info.UserID, models.EventTypingUpdate, typing)
	observability.IncWSEvent(models.EventTypingUpdate)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
