package repositories

import (
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// storeBehaviour holds the checks every IConversationStore must pass.
// Each backend test feeds it a fresh store.
func storeBehaviour(t *testing.T, newStore func(t *testing.T) IConversationStore) {
	t.Run("FindOrCreate is symmetric and idempotent", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)
		ctx := context.Background()
		alice, bob := domain.NewID(), domain.NewID()

		first, err := store.FindOrCreate(ctx, alice, bob)
		req.NoError(err)
		second, err := store.FindOrCreate(ctx, bob, alice)
		req.NoError(err)

		req.Equal(first.ID, second.ID)
		req.Nil(first.LastMessage)
		req.Zero(first.MessageCount)
	})

	t.Run("FindOrCreate rejects invalid pairs", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)
		ctx := context.Background()
		alice := domain.NewID()

		_, err := store.FindOrCreate(ctx, alice, alice)
		req.ErrorIs(err, errors.ErrValidation)
		_, err = store.FindOrCreate(ctx, alice, "not-an-id")
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("Concurrent first contact yields one conversation", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)
		ctx := context.Background()
		alice, bob := domain.NewID(), domain.NewID()

		const workers = 16
		ids := make([]string, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, b := alice, bob
				if i%2 == 1 {
					a, b = bob, alice
				}
				conversation, err := store.FindOrCreate(ctx, a, b)
				ids[i], errs[i] = conversation.ID, err
			}(i)
		}
		wg.Wait()

		for i := range workers {
			req.NoError(errs[i])
			req.Equal(ids[0], ids[i])
		}
		conversations, err := store.ListForUser(ctx, alice)
		req.NoError(err)
		req.Len(conversations, 1)
	})

	t.Run("Append keeps order and updates summary", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)
		ctx := context.Background()
		alice, bob := domain.NewID(), domain.NewID()
		conversation, err := store.FindOrCreate(ctx, alice, bob)
		req.NoError(err)

		texts := []string{"hi bob", "hi alice", "how are you?"}
		senders := []string{alice, bob, alice}
		for i, text := range texts {
			_, err = store.Append(ctx, conversation.ID, senders[i], text)
			req.NoError(err)
		}

		history, err := store.History(ctx, bob, alice)
		req.NoError(err)
		req.Len(history, len(texts))
		for i, message := range history {
			req.Equal(texts[i], message.Text)
			req.Equal(senders[i], message.Sender)
			req.False(message.IsRead)
			req.Equal(conversation.ID, message.ConversationID)
			if i > 0 {
				req.False(message.Timestamp.Before(history[i-1].Timestamp))
			}
		}

		got, err := store.Get(ctx, conversation.ID)
		req.NoError(err)
		req.NotNil(got.LastMessage)
		req.Equal("how are you?", got.LastMessage.Text)
		req.Equal(alice, got.LastMessage.Sender)
		req.True(got.LastActivity.Equal(history[2].Timestamp))
		req.Equal(3, got.MessageCount)
	})

	t.Run("Append validates input", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)
		ctx := context.Background()
		alice, bob, carol := domain.NewID(), domain.NewID(), domain.NewID()
		conversation, err := store.FindOrCreate(ctx, alice, bob)
		req.NoError(err)

		_, err = store.Append(ctx, conversation.ID, alice, "   ")
		req.ErrorIs(err, errors.ErrValidation)
		_, err = store.Append(ctx, conversation.ID, carol, "hello")
		req.ErrorIs(err, errors.ErrValidation)
		_, err = store.Append(ctx, domain.NewID(), alice, "hello")
		req.ErrorIs(err, errors.ErrNotFound)
		_, err = store.Append(ctx, "garbage", alice, "hello")
		req.ErrorIs(err, errors.ErrValidation)

		history, err := store.History(ctx, alice, bob)
		req.NoError(err)
		req.Empty(history)
	})

	t.Run("Concurrent appends are all kept", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)
		ctx := context.Background()
		alice, bob := domain.NewID(), domain.NewID()
		conversation, err := store.FindOrCreate(ctx, alice, bob)
		req.NoError(err)

		const messages = 10
		var wg sync.WaitGroup
		errs := make(chan error, messages)
		for i := range messages {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sender := alice
				if i%2 == 1 {
					sender = bob
				}
				_, err := store.Append(ctx, conversation.ID, sender, "ping")
				if err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)

		failed := 0
		for err := range errs {
			req.ErrorIs(err, errors.ErrConflict)
			failed++
		}
		history, err := store.History(ctx, alice, bob)
		req.NoError(err)
		req.Len(history, messages-failed)
		got, err := store.Get(ctx, conversation.ID)
		req.NoError(err)
		req.Equal(messages-failed, got.MessageCount)
	})

	t.Run("History of strangers is empty", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)

		history, err := store.History(context.Background(), domain.NewID(), domain.NewID())
		req.NoError(err)
		req.NotNil(history)
		req.Empty(history)
	})

	t.Run("ListForUser orders by last activity", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)
		ctx := context.Background()
		alice, bob, carol := domain.NewID(), domain.NewID(), domain.NewID()

		withBob, err := store.FindOrCreate(ctx, alice, bob)
		req.NoError(err)
		withCarol, err := store.FindOrCreate(ctx, alice, carol)
		req.NoError(err)

		_, err = store.Append(ctx, withCarol.ID, carol, "first")
		req.NoError(err)
		time.Sleep(5 * time.Millisecond)
		_, err = store.Append(ctx, withBob.ID, bob, "second")
		req.NoError(err)

		conversations, err := store.ListForUser(ctx, alice)
		req.NoError(err)
		req.Len(conversations, 2)
		req.Equal(withBob.ID, conversations[0].ID)
		req.Equal(withCarol.ID, conversations[1].ID)

		conversations, err = store.ListForUser(ctx, carol)
		req.NoError(err)
		req.Len(conversations, 1)

		conversations, err = store.ListForUser(ctx, domain.NewID())
		req.NoError(err)
		req.Empty(conversations)
	})

	t.Run("MarkRead flags only the other side and is idempotent", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)
		ctx := context.Background()
		alice, bob := domain.NewID(), domain.NewID()
		conversation, err := store.FindOrCreate(ctx, alice, bob)
		req.NoError(err)

		for _, sender := range []string{alice, alice, bob} {
			_, err = store.Append(ctx, conversation.ID, sender, "hello")
			req.NoError(err)
		}

		updated, err := store.MarkRead(ctx, conversation.ID, bob)
		req.NoError(err)
		req.Equal(2, updated)

		updated, err = store.MarkRead(ctx, conversation.ID, bob)
		req.NoError(err)
		req.Zero(updated)

		history, err := store.History(ctx, alice, bob)
		req.NoError(err)
		req.True(history[0].IsRead)
		req.True(history[1].IsRead)
		req.False(history[2].IsRead)
	})

	t.Run("MarkRead hides conversations from outsiders", func(t *testing.T) {
		req := require.New(t)
		store := newStore(t)
		ctx := context.Background()
		alice, bob := domain.NewID(), domain.NewID()
		conversation, err := store.FindOrCreate(ctx, alice, bob)
		req.NoError(err)

		_, err = store.MarkRead(ctx, conversation.ID, domain.NewID())
		req.ErrorIs(err, errors.ErrNotFound)
		_, err = store.MarkRead(ctx, domain.NewID(), alice)
		req.ErrorIs(err, errors.ErrNotFound)
		_, err = store.MarkRead(ctx, "nope", alice)
		req.ErrorIs(err, errors.ErrValidation)
	})
}
