// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are immutable once stored, except for their reaction set.
package domain

import "time"

// Reaction is a single (user, emoji) pair attached to a message.
// A pair appears at most once per message.
type Reaction struct {
	User  string `json:"user"`
	Emoji string `json:"emoji"`
}

// ReplySnapshot is an immutable copy of the referenced message, captured at
// the moment the reply is created. Later edits or deletions of the original
// are never reflected here; this trades staleness for the absence of
// dangling references.
type ReplySnapshot struct {
	ID     int64  `json:"id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Valid reports whether the snapshot carries the full id/sender/text triple
// required for it to be persisted alongside a reply.
func (r ReplySnapshot) Valid() bool {
	return r.ID > 0 && r.Sender != "" && r.Text != ""
}

// Message is the durable chat entity. ID and CreatedAt are store-assigned
// and authoritative; client-supplied values are never trusted.
type Message struct {
	ID        int64
	Sender    Identity
	Body      string
	CreatedAt time.Time
	ReplyTo   *ReplySnapshot
	Reactions []Reaction
}
