package services_test

import (
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/mocks"
	"direct-chat/moderation"
	"direct-chat/services"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type chatFixture struct {
	store    *mocks.MockIConversationStore
	users    *mocks.MockIUserRepository
	index    *mocks.MockIMessageIndex
	presence *mocks.MockIPresenceRegistry
	service  *services.ChatService
}

func newChatFixture(t *testing.T, moderator *moderation.Moderator) chatFixture {
	ctrl := gomock.NewController(t)
	f := chatFixture{
		store:    mocks.NewMockIConversationStore(ctrl),
		users:    mocks.NewMockIUserRepository(ctrl),
		index:    mocks.NewMockIMessageIndex(ctrl),
		presence: mocks.NewMockIPresenceRegistry(ctrl),
	}
	log := logs.GetLoggerFromLevel(slog.LevelError)
	f.service = services.NewChatService(f.store, f.users, f.index, moderator, f.presence, log, 20)
	return f
}

func conversationOf(t *testing.T, a, b string) domain.Conversation {
	pair, err := domain.NewPair(a, b)
	require.NoError(t, err)
	return domain.NewConversation(pair, domain.Now())
}

func TestChatService_SendMessage(t *testing.T) {
	ctx := context.Background()
	alice, bob := domain.NewID(), domain.NewID()

	t.Run("should find or create the conversation then append and index", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t, nil)
		conversation := conversationOf(t, alice, bob)
		stored := domain.Message{ID: domain.NewID(), ConversationID: conversation.ID, Sender: alice, Text: "hello", Timestamp: domain.Now()}

		gomock.InOrder(
			f.store.EXPECT().FindOrCreate(ctx, alice, bob).Return(conversation, nil),
			f.store.EXPECT().Append(ctx, conversation.ID, alice, "hello").Return(stored, nil),
			f.index.EXPECT().Index(ctx, stored).Return(nil),
		)

		message, err := f.service.SendMessage(ctx, alice, bob, "  hello ")
		req.NoError(err)
		req.Equal(stored, message)
	})

	t.Run("should keep the message when indexing fails", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t, nil)
		conversation := conversationOf(t, alice, bob)
		stored := domain.Message{ID: domain.NewID(), ConversationID: conversation.ID, Sender: alice, Text: "hello"}

		f.store.EXPECT().FindOrCreate(ctx, alice, bob).Return(conversation, nil)
		f.store.EXPECT().Append(ctx, conversation.ID, alice, "hello").Return(stored, nil)
		f.index.EXPECT().Index(ctx, stored).Return(fmt.Errorf("%w: disk full", errors.ErrInfrastructure))

		message, err := f.service.SendMessage(ctx, alice, bob, "hello")
		req.NoError(err)
		req.Equal(stored.ID, message.ID)
	})

	t.Run("should reject invalid input before touching the store", func(t *testing.T) {
		f := newChatFixture(t, nil)
		f.store.EXPECT().FindOrCreate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		tests := []struct {
			name             string
			sender, receiver string
			text             string
		}{
			{"empty text", alice, bob, "   "},
			{"self message", alice, alice, "hi"},
			{"malformed receiver", alice, "bob", "hi"},
			{"missing sender", "", bob, "hi"},
			{"too long", alice, bob, strings.Repeat("a", 21)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.service.SendMessage(ctx, tt.sender, tt.receiver, tt.text)
				require.ErrorIs(t, err, errors.ErrValidation)
			})
		}
	})

	t.Run("should propagate store failures", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t, nil)
		f.store.EXPECT().FindOrCreate(ctx, alice, bob).Return(domain.Conversation{}, errors.Infra("find", fmt.Errorf("boom")))

		_, err := f.service.SendMessage(ctx, alice, bob, "hello")
		req.ErrorIs(err, errors.ErrInfrastructure)
		req.Equal("Failed to send message", errors.PublicMessage(err, "Failed to send message"))
	})

	t.Run("should mask censored words before storing", func(t *testing.T) {
		req := require.New(t)
		moderator, err := moderation.NewModerator([]string{"badger"}, '*', logs.GetLoggerFromLevel(slog.LevelError))
		req.NoError(err)
		f := newChatFixture(t, moderator)
		conversation := conversationOf(t, alice, bob)

		f.store.EXPECT().FindOrCreate(ctx, alice, bob).Return(conversation, nil)
		f.store.EXPECT().Append(ctx, conversation.ID, alice, "a ****** here").Return(domain.Message{Text: "a ****** here"}, nil)
		f.index.EXPECT().Index(ctx, gomock.Any()).Return(nil)

		message, err := f.service.SendMessage(ctx, alice, bob, "a badger here")
		req.NoError(err)
		req.Equal("a ****** here", message.Text)
	})
}

func TestChatService_History(t *testing.T) {
	ctx := context.Background()
	alice, bob, carol := domain.NewID(), domain.NewID(), domain.NewID()

	t.Run("should return the history to a participant", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t, nil)
		history := []domain.Message{{ID: domain.NewID(), Sender: bob, Text: "hey"}}
		f.store.EXPECT().History(ctx, alice, bob).Return(history, nil)

		got, err := f.service.History(ctx, alice, alice, bob)
		req.NoError(err)
		req.Equal(history, got)
	})

	t.Run("should forbid outsiders", func(t *testing.T) {
		f := newChatFixture(t, nil)
		_, err := f.service.History(ctx, carol, alice, bob)
		require.ErrorIs(t, err, errors.ErrForbidden)
	})

	t.Run("should reject malformed ids", func(t *testing.T) {
		f := newChatFixture(t, nil)
		_, err := f.service.History(ctx, alice, alice, "not-an-id")
		require.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestChatService_ListConversations_Enriches_Participants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newChatFixture(t, nil)
	alice, bob, carol := domain.NewID(), domain.NewID(), domain.NewID()
	withBob, withCarol := conversationOf(t, alice, bob), conversationOf(t, alice, carol)

	f.store.EXPECT().ListForUser(ctx, alice).Return([]domain.Conversation{withBob, withCarol}, nil)
	f.users.EXPECT().GetUserByID(ctx, alice).Return(domain.User{ID: alice, Username: "alice"}, nil).Times(1)
	f.users.EXPECT().GetUserByID(ctx, bob).Return(domain.User{ID: bob, Username: "bob"}, nil)
	f.users.EXPECT().GetUserByID(ctx, carol).Return(domain.User{}, fmt.Errorf("%w: user", errors.ErrNotFound))
	f.presence.EXPECT().Lookup(gomock.Any()).Return(nil, false).AnyTimes()

	summaries, err := f.service.ListConversations(ctx, alice)
	req.NoError(err)
	req.Len(summaries, 2)
	for _, summary := range summaries {
		req.Len(summary.Participants, 2)
		for _, participant := range summary.Participants {
			req.True(summary.Conversation.Participants.Has(participant.ID))
			req.Equal(domain.StatusOffline, participant.Status)
		}
	}
	names := map[string]string{}
	for _, participant := range append(summaries[0].Participants, summaries[1].Participants...) {
		names[participant.ID] = participant.Username
	}
	req.Equal("alice", names[alice])
	req.Equal("bob", names[bob])
	req.Empty(names[carol])
}

func TestChatService_Search(t *testing.T) {
	ctx := context.Background()
	alice, bob, carol := domain.NewID(), domain.NewID(), domain.NewID()

	t.Run("should search a conversation of the caller", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t, nil)
		conversation := conversationOf(t, alice, bob)
		hits := []domain.Message{{ID: domain.NewID(), Text: "lunch?"}}
		f.store.EXPECT().Get(ctx, conversation.ID).Return(conversation, nil)
		f.index.EXPECT().Search(ctx, conversation.ID, "lunch", 0).Return(hits, uint64(1), nil)

		result, err := f.service.Search(ctx, bob, conversation.ID, "lunch", 0)
		req.NoError(err)
		req.Equal(uint64(1), result.Total)
		req.Equal(hits, result.Messages)
	})

	t.Run("should hide conversations from outsiders", func(t *testing.T) {
		f := newChatFixture(t, nil)
		conversation := conversationOf(t, alice, bob)
		f.store.EXPECT().Get(ctx, conversation.ID).Return(conversation, nil)

		_, err := f.service.Search(ctx, carol, conversation.ID, "lunch", 0)
		require.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestChatService_Users_Excludes_Caller(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newChatFixture(t, nil)
	alice, bob := domain.NewID(), domain.NewID()

	f.users.EXPECT().ListUsers(ctx).Return([]domain.User{
		{ID: alice, Username: "alice"},
		{ID: bob, Username: "bob"},
	}, nil)
	f.presence.EXPECT().Lookup(bob).Return(nil, true)

	users, err := f.service.Users(ctx, alice)
	req.NoError(err)
	req.Len(users, 1)
	req.Equal(bob, users[0].ID)
	req.Equal(domain.StatusOnline, users[0].Status)
}
