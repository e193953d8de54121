//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_store.go -package=mocks
package repositories

import (
	"context"
	"direct-chat/domain"
	"time"

	"github.com/samber/lo"
)

// IConversationStore is the durable home of two-party conversations.
// Implementations must never create two conversations for the same pair,
// even when FindOrCreate races with itself.
type IConversationStore interface {
	FindOrCreate(ctx context.Context, userA, userB string) (domain.Conversation, error)
	Append(ctx context.Context, conversationID, senderID, text string) (domain.Message, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	History(ctx context.Context, userA, userB string) ([]domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int, error)
	Get(ctx context.Context, conversationID string) (domain.Conversation, error)
}

// DiskConversation is the stored form of a conversation summary.
// Messages is only filled by the Mongo backend, which embeds them.
type DiskConversation struct {
	ID           string           `bson:"_id"`
	PairKey      string           `bson:"pairKey"`
	Participants []string         `bson:"participants"`
	Messages     []DiskMessage    `bson:"messages,omitempty"`
	LastMessage  *DiskLastMessage `bson:"lastMessage,omitempty"`
	LastActivity time.Time        `bson:"lastActivity"`
	CreatedAt    time.Time        `bson:"createdAt"`
	MessageCount int              `bson:"messageCount"`
}

type DiskLastMessage struct {
	Sender    string    `bson:"sender"`
	Message   string    `bson:"message"`
	Timestamp time.Time `bson:"timestamp"`
}

type DiskMessage struct {
	ID        string    `bson:"_id"`
	Sender    string    `bson:"sender"`
	Message   string    `bson:"message"`
	Timestamp time.Time `bson:"timestamp"`
	IsRead    bool      `bson:"isRead"`
}

func fromConversation(c domain.Conversation) DiskConversation {
	dc := DiskConversation{
		ID:           c.ID,
		PairKey:      c.Participants.Key(),
		Participants: c.Participants.Slice(),
		LastActivity: c.LastActivity,
		CreatedAt:    c.CreatedAt,
		MessageCount: c.MessageCount,
	}
	if c.LastMessage != nil {
		dc.LastMessage = &DiskLastMessage{
			Sender:    c.LastMessage.Sender,
			Message:   c.LastMessage.Text,
			Timestamp: c.LastMessage.Timestamp,
		}
	}
	return dc
}

func toConversation(dc DiskConversation) domain.Conversation {
	c := domain.Conversation{
		ID:           dc.ID,
		LastActivity: dc.LastActivity.UTC(),
		CreatedAt:    dc.CreatedAt.UTC(),
		MessageCount: dc.MessageCount,
	}
	if len(dc.Participants) == 2 {
		c.Participants, _ = domain.NewPair(dc.Participants[0], dc.Participants[1])
	}
	if dc.LastMessage != nil {
		c.LastMessage = &domain.LastMessage{
			Sender:    dc.LastMessage.Sender,
			Text:      dc.LastMessage.Message,
			Timestamp: dc.LastMessage.Timestamp.UTC(),
		}
	}
	return c
}

func fromMessage(m domain.Message) DiskMessage {
	return DiskMessage{
		ID:        m.ID,
		Sender:    m.Sender,
		Message:   m.Text,
		Timestamp: m.Timestamp,
		IsRead:    m.IsRead,
	}
}

func toMessage(conversationID string, dm DiskMessage) domain.Message {
	return domain.Message{
		ID:             dm.ID,
		ConversationID: conversationID,
		Sender:         dm.Sender,
		Text:           dm.Message,
		Timestamp:      dm.Timestamp.UTC(),
		IsRead:         dm.IsRead,
	}
}

func toMessages(conversationID string, dms []DiskMessage) []domain.Message {
	return lo.Map(dms, func(dm DiskMessage, _ int) domain.Message {
		return toMessage(conversationID, dm)
	})
}
