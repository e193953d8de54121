package domain

import "time"

// Conversation is the durable thread between exactly two users.
// Messages are not carried here; they are read through the history operations.
type Conversation struct {
	ID           string
	Participants Pair
	LastMessage  *LastMessage
	LastActivity time.Time
	CreatedAt    time.Time
	MessageCount int
}

func NewConversation(pair Pair, now time.Time) Conversation {
	return Conversation{
		ID:           NewID(),
		Participants: pair,
		LastActivity: now,
		CreatedAt:    now,
	}
}

// Record updates the denormalized summary after m was appended.
// It is the only place where LastMessage and LastActivity change.
func (c *Conversation) Record(m Message) {
	c.LastMessage = &LastMessage{
		Sender:    m.Sender,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
	c.LastActivity = m.Timestamp
	c.MessageCount++
}

// Unread reports whether m should be flagged when reader opens the conversation.
func Unread(m Message, reader string) bool {
	return !m.IsRead && m.Sender != reader
}
