package ws

import "context"

// Registry tracks live socket connections and routes realtime events to
// them. The in-memory Hub covers a single instance; RedisRegistry layers
// pub/sub on top so events reach users connected to other instances.
type Registry interface {
	// Register binds a connection to a user and subscribes it to the
	// given chat rooms. A second connection for the same user replaces
	// the first.
	Register(ctx context.Context, client *Client, rooms []int)
	// Unregister drops the connection. It is a no-op if the user has
	// since reconnected with a newer connection.
	Unregister(ctx context.Context, client *Client)
	// Send delivers an event to a single user. Returns true only if the
	// user had a live connection that accepted the write.
	Send(userID int, event string, payload interface{}) bool
	// BroadcastToRoom sends an event to every connected member of a chat,
	// optionally excluding one user (pass 0 to exclude nobody).
	BroadcastToRoom(chatID int, exceptUserID int, event string, payload interface{})
	// JoinRoom subscribes an already-connected user to a chat room,
	// used when a user is added to a chat while online.
	JoinRoom(userID, chatID int)
	IsOnline(userID int) bool
}
