package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fanoutChannel  = "ws:fanout"
	presencePrefix = "presence:online:"
	presenceTTL    = 24 * time.Hour
)

// fanoutMessage crosses instances over redis pub/sub. Origin lets the
// publishing instance skip its own copy; local delivery already happened.
type fanoutMessage struct {
	Origin  string          `json:"origin"`
	Kind    string          `json:"kind"` // "user" or "room"
	UserID  int             `json:"userId,omitempty"`
	ChatID  int             `json:"chatId,omitempty"`
	Except  int             `json:"except,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRegistry extends the in-memory Hub with redis pub/sub so events
// reach users connected to other instances, and keeps an online flag in
// redis so IsOnline works cluster-wide.
type RedisRegistry struct {
	hub        *Hub
	rdb        *redis.Client
	instanceID string
}

// NewRedisRegistry wraps a hub with cross-instance fanout.
func NewRedisRegistry(hub *Hub, rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{hub: hub, rdb: rdb, instanceID: newConnID()}
}

// Run subscribes to the fanout channel and delivers remote events to
// local connections until ctx is cancelled.
func (r *RedisRegistry) Run(ctx context.Context) {
	sub := r.rdb.Subscribe(ctx, fanoutChannel)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Channel():
			if !ok {
				return
			}
			var msg fanoutMessage
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				log.Printf("presence fanout decode error: %v", err)
				continue
			}
			if msg.Origin == r.instanceID {
				continue
			}
			switch msg.Kind {
			case "user":
				r.hub.Send(msg.UserID, msg.Event, msg.Payload)
			case "room":
				r.hub.BroadcastToRoom(msg.ChatID, msg.Except, msg.Event, msg.Payload)
			}
		}
	}
}

func (r *RedisRegistry) Register(ctx context.Context, client *Client, rooms []int) {
	r.hub.Register(ctx, client, rooms)
	key := fmt.Sprintf("%s%d", presencePrefix, client.Info.UserID)
	if err := r.rdb.Set(ctx, key, r.instanceID, presenceTTL).Err(); err != nil {
		log.Printf("presence set error: %v", err)
	}
}

func (r *RedisRegistry) Unregister(ctx context.Context, client *Client) {
	r.hub.Unregister(ctx, client)
	if r.hub.IsOnline(client.Info.UserID) {
		return
	}
	key := fmt.Sprintf("%s%d", presencePrefix, client.Info.UserID)
	owner, err := r.rdb.Get(ctx, key).Result()
	if err == nil && owner == r.instanceID {
		if err := r.rdb.Del(ctx, key).Err(); err != nil {
			log.Printf("presence del error: %v", err)
		}
	}
}

func (r *RedisRegistry) Send(userID int, event string, payload interface{}) bool {
	if r.hub.Send(userID, event, payload) {
		return true
	}
	ctx := context.Background()
	key := fmt.Sprintf("%s%d", presencePrefix, userID)
	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return false
	}
	return r.publish(ctx, fanoutMessage{Kind: "user", UserID: userID, Event: event}, payload) == nil
}

func (r *RedisRegistry) BroadcastToRoom(chatID int, exceptUserID int, event string, payload interface{}) {
	r.hub.BroadcastToRoom(chatID, exceptUserID, event, payload)
	msg := fanoutMessage{Kind: "room", ChatID: chatID, Except: exceptUserID, Event: event}
	if err := r.publish(context.Background(), msg, payload); err != nil {
		log.Printf("presence fanout publish error: %v", err)
	}
}

func (r *RedisRegistry) JoinRoom(userID, chatID int) {
	r.hub.JoinRoom(userID, chatID)
}

func (r *RedisRegistry) IsOnline(userID int) bool {
	if r.hub.IsOnline(userID) {
		return true
	}
	key := fmt.Sprintf("%s%d", presencePrefix, userID)
	exists, err := r.rdb.Exists(context.Background(), key).Result()
	return err == nil && exists > 0
}

func (r *RedisRegistry) publish(ctx context.Context, msg fanoutMessage, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg.Origin = r.instanceID
	msg.Payload = data
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, fanoutChannel, body).Err()
}
