package contract

// Wire event names, shared by the bus implementation and its consumers.
const (
	// client -> server
	EventJoin           = "join"
	EventChatMessage    = "chat message"
	EventTyping         = "typing"
	EventStopTyping     = "stop typing"
	EventToggleReaction = "toggle reaction"

	// server -> client
	EventHistory         = "history"
	EventOnlineUsers     = "online users"
	EventReactionUpdated = "reaction updated"
	EventAuthError       = "auth_error"
)
