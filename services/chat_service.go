//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"direct-chat/auth"
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/moderation"
	"direct-chat/repositories"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

type IChatService interface {
	SendMessage(ctx context.Context, senderID, receiverID, text string) (domain.Message, error)
	ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error)
	History(ctx context.Context, callerID, userA, userB string) ([]domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int, error)
	Search(ctx context.Context, callerID, conversationID, query string, offset int) (SearchResult, error)
	Users(ctx context.Context, callerID string) ([]domain.DisplayInfo, error)
}

// ConversationSummary is a conversation with the display info of both participants.
type ConversationSummary struct {
	Conversation domain.Conversation
	Participants []domain.DisplayInfo
}

type SearchResult struct {
	Messages []domain.Message
	Total    uint64
}

type sendMessageRequest struct {
	Sender   string `validate:"required,mongodb"`
	Receiver string `validate:"required,mongodb,nefield=Sender"`
	Message  string `validate:"required"`
}

type pairRequest struct {
	UserA string `validate:"required,mongodb"`
	UserB string `validate:"required,mongodb"`
}

type ChatService struct {
	store            repositories.IConversationStore
	users            repositories.IUserRepository
	index            repositories.IMessageIndex
	moderator        *moderation.Moderator
	presence         contract.IPresenceRegistry
	log              *slog.Logger
	maxMessageLength int
}

// NewChatService wires the chat use cases. users, index, moderator and
// presence are optional: a nil value disables the feature they back.
func NewChatService(
	store repositories.IConversationStore,
	users repositories.IUserRepository,
	index repositories.IMessageIndex,
	moderator *moderation.Moderator,
	presence contract.IPresenceRegistry,
	log *slog.Logger,
	maxMessageLength int,
) *ChatService {
	return &ChatService{
		store:            store,
		users:            users,
		index:            index,
		moderator:        moderator,
		presence:         presence,
		log:              log,
		maxMessageLength: maxMessageLength,
	}
}

// SendMessage stores text from senderID to receiverID, creating their
// conversation on first contact. Indexing for search is best effort.
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	err := auth.Validate(sendMessageRequest{Sender: senderID, Receiver: receiverID, Message: text})
	if err != nil {
		return domain.Message{}, err
	}
	if s.maxMessageLength > 0 && utf8.RuneCountInString(text) > s.maxMessageLength {
		return domain.Message{}, fmt.Errorf("%w: message longer than %d characters", errors.ErrValidation, s.maxMessageLength)
	}
	if censored, matches := s.moderator.Censor(text); matches > 0 {
		s.log.Debug("Censored words masked", "sender", senderID, "matches", matches)
		text = censored
	}

	conversation, err := s.store.FindOrCreate(ctx, senderID, receiverID)
	if err != nil {
		return domain.Message{}, err
	}
	message, err := s.store.Append(ctx, conversation.ID, senderID, text)
	if err != nil {
		return domain.Message{}, err
	}

	if s.index != nil {
		if err = s.index.Index(ctx, message); err != nil {
			s.log.Warn("Failed to index message", "message_id", message.ID, "error", err)
		}
	}
	return message, nil
}

// ListConversations returns the conversations of userID, most recent first,
// with participant display info when the directory knows them.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	conversations, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]domain.DisplayInfo)
	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		participants := lo.Map(conversation.Participants.Slice(), func(id string, _ int) domain.DisplayInfo {
			if info, ok := known[id]; ok {
				return info
			}
			info := s.displayInfo(ctx, id)
			known[id] = info
			return info
		})
		summaries = append(summaries, ConversationSummary{Conversation: conversation, Participants: participants})
	}
	return summaries, nil
}

// History is only readable by one of the two participants.
func (s *ChatService) History(ctx context.Context, callerID, userA, userB string) ([]domain.Message, error) {
	if err := auth.Validate(pairRequest{UserA: userA, UserB: userB}); err != nil {
		return nil, err
	}
	if callerID != userA && callerID != userB {
		return nil, fmt.Errorf("%w: not a participant of this conversation", errors.ErrForbidden)
	}
	return s.store.History(ctx, userA, userB)
}

func (s *ChatService) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	updated, err := s.store.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	s.log.Debug("Messages marked as read", "conversation_id", conversationID, "reader", readerID, "updated", updated)
	return updated, nil
}

// Search looks up query in one conversation of the caller.
// Outsiders get ErrNotFound, as for MarkRead.
func (s *ChatService) Search(ctx context.Context, callerID, conversationID, query string, offset int) (SearchResult, error) {
	if s.index == nil {
		return SearchResult{}, fmt.Errorf("%w: search is disabled", errors.ErrNotFound)
	}
	conversation, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return SearchResult{}, err
	}
	if !conversation.Participants.Has(callerID) {
		return SearchResult{}, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, conversationID)
	}
	messages, total, err := s.index.Search(ctx, conversationID, query, offset)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Messages: messages, Total: total}, nil
}

// Users lists every account except the caller, flagged online when connected.
func (s *ChatService) Users(ctx context.Context, callerID string) ([]domain.DisplayInfo, error) {
	if s.users == nil {
		return []domain.DisplayInfo{}, nil
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	others := lo.Filter(users, func(user domain.User, _ int) bool {
		return user.ID != callerID
	})
	return lo.Map(others, func(user domain.User, _ int) domain.DisplayInfo {
		return user.DisplayInfo(s.status(user.ID))
	}), nil
}

func (s *ChatService) displayInfo(ctx context.Context, userID string) domain.DisplayInfo {
	fallback := domain.DisplayInfo{ID: userID, Status: s.status(userID)}
	if s.users == nil {
		return fallback
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if !stderrors.Is(err, errors.ErrNotFound) {
			s.log.Warn("Failed to resolve participant", "user_id", userID, "error", err)
		}
		return fallback
	}
	return user.DisplayInfo(s.status(userID))
}

func (s *ChatService) status(userID string) string {
	if s.presence == nil {
		return domain.StatusOffline
	}
	if _, online := s.presence.Lookup(userID); online {
		return domain.StatusOnline
	}
	return domain.StatusOffline
}
