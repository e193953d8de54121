// Package domain contains core concepts of the chat system.
// This file defines Message values and the rules for creating them.
// A message is immutable once recorded, except for its read flag.
package domain

import (
	"direct-chat/errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is a single entry of a conversation history.
type Message struct {
	ID             string
	ConversationID string
	Sender         string
	Text           string
	Timestamp      time.Time
	IsRead         bool
}

// LastMessage is the denormalized copy of a conversation tail kept for list views.
type LastMessage struct {
	Sender    string
	Text      string
	Timestamp time.Time
}

// NewID returns a fresh identifier in the same format used for users,
// conversations and messages.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID reports whether id is a well-formed identifier.
func IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// Now is the clock used for message timestamps.
// Millisecond precision matches what the stores can persist.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewMessage validates a message against the conversation it is posted to.
// The timestamp never goes backwards relative to the conversation activity,
// which keeps history ordered by insertion.
func NewMessage(c Conversation, sender, text string, now time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("%w: message text must not be empty", errors.ErrValidation)
	}
	if !c.Participants.Has(sender) {
		return Message{}, fmt.Errorf("%w: sender %s is not a participant", errors.ErrValidation, sender)
	}
	if now.Before(c.LastActivity) {
		now = c.LastActivity
	}
	return Message{
		ID:             NewID(),
		ConversationID: c.ID,
		Sender:         sender,
		Text:           text,
		Timestamp:      now,
	}, nil
}
