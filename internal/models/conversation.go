package models

import "time"

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single turn in a conversation. Messages are immutable once
// appended; ordering within a conversation is append order.
type Message struct {
	Sender    Sender    `bson:"sender" json:"sender"`
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Conversation holds the full chat history for one user. Each user owns at
// most one conversation document; the messages array is append-only.
type Conversation struct {
	ID        string    `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID    string    `bson:"user_id" json:"userId"`
	Messages  []Message `bson:"messages" json:"messages"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// TouchUpdatedAt refreshes the bookkeeping timestamp. Called explicitly by
// the store on every save.
func (c *Conversation) TouchUpdatedAt(now time.Time) {
	c.UpdatedAt = now.UTC()
}
