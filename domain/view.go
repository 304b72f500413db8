package domain

import "time"

// MessageView is the wire representation of a message, sent both in the
// history backlog and in live broadcasts. A zero ID is omitted from the
// payload: it marks a message that was delivered live but failed to persist.
type MessageView struct {
	ID        int64          `json:"id,omitempty"`
	Sender    string         `json:"sender"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	ReplyTo   *ReplySnapshot `json:"replyTo"`
	Reactions []Reaction     `json:"reactions"`
}

// ViewOf reshapes a stored message into its wire representation.
// Reactions always serialize as a sequence, never null.
func ViewOf(m Message) MessageView {
	reactions := m.Reactions
	if reactions == nil {
		reactions = []Reaction{}
	}
	return MessageView{
		ID:        m.ID,
		Sender:    m.Sender.String(),
		Message:   m.Body,
		Timestamp: m.CreatedAt,
		ReplyTo:   m.ReplyTo,
		Reactions: reactions,
	}
}

// ReactionUpdate is broadcast to all connections after a reaction toggle.
type ReactionUpdate struct {
	MessageID int64      `json:"messageId"`
	Reactions []Reaction `json:"reactions"`
}

// TypingNotice is relayed to every connection except the sender's.
// It is transient: never persisted and never part of history.
type TypingNotice struct {
	Sender string `json:"sender"`
}
