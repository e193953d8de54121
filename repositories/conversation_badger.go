package repositories

import (
	"cmp"
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"
)

// Badger key layout:
//
//	conv:{id}                    -> DiskConversation (bson)
//	pair:{first}:{second}        -> conversation id
//	member:{user}:{conversation} -> empty, lists the conversations of a user
//	msg:{conversation}:{seq}     -> DiskMessage (bson)
const (
	convPrefix   = "conv:"
	pairPrefix   = "pair:"
	memberPrefix = "member:"
)

// BadgerConversationStore is the embedded store.
// Writes touching the same pair or the same conversation are serialized
// in-process, badger transactions catch anything that slips through.
type BadgerConversationStore struct {
	db    *badger.DB
	log   *slog.Logger
	locks *keyedMutex
	now   func() time.Time
}

func NewBadgerConversationStore(db *badger.DB, log *slog.Logger) *BadgerConversationStore {
	return &BadgerConversationStore{
		db:    db,
		log:   log,
		locks: newKeyedMutex(),
		now:   domain.Now,
	}
}

func (s *BadgerConversationStore) FindOrCreate(_ context.Context, userA, userB string) (domain.Conversation, error) {
	pair, err := validPair(userA, userB)
	if err != nil {
		return domain.Conversation{}, err
	}
	unlock := s.locks.Lock(pairPrefix + pair.Key())
	defer unlock()

	var conversation domain.Conversation
	err = s.update("find or create conversation", func(txn *badger.Txn) error {
		found, err := s.conversationForPair(txn, pair)
		switch {
		case err == nil:
			conversation = found
			return nil
		case !stderrors.Is(err, errors.ErrNotFound):
			return err
		}
		conversation = domain.NewConversation(pair, s.now())
		if err = putConversation(txn, conversation); err != nil {
			return err
		}
		if err = txn.Set(pairKey(pair), []byte(conversation.ID)); err != nil {
			return err
		}
		for _, user := range pair.Slice() {
			if err = txn.Set(memberKey(user, conversation.ID), nil); err != nil {
				return err
			}
		}
		s.log.Debug("Conversation created", "conversation_id", conversation.ID, "pair", pair.Key())
		return nil
	})
	return conversation, err
}

func (s *BadgerConversationStore) Append(_ context.Context, conversationID, senderID, text string) (domain.Message, error) {
	if !domain.IsValidID(conversationID) {
		return domain.Message{}, fmt.Errorf("%w: malformed conversation id", errors.ErrValidation)
	}
	unlock := s.locks.Lock(convPrefix + conversationID)
	defer unlock()

	var message domain.Message
	err := s.update("append message", func(txn *badger.Txn) error {
		conversation, err := getConversation(txn, conversationID)
		if err != nil {
			return err
		}
		message, err = domain.NewMessage(conversation, senderID, text, s.now())
		if err != nil {
			return err
		}
		seq := conversation.MessageCount
		conversation.Record(message)
		if err = putMessage(txn, conversationID, seq, fromMessage(message)); err != nil {
			return err
		}
		return putConversation(txn, conversation)
	})
	return message, err
}

// ListForUser returns the conversations of userID, most recent activity first.
func (s *BadgerConversationStore) ListForUser(_ context.Context, userID string) ([]domain.Conversation, error) {
	if !domain.IsValidID(userID) {
		return nil, fmt.Errorf("%w: malformed user id", errors.ErrValidation)
	}
	conversations := make([]domain.Conversation, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(memberPrefix + userID + ":")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			conversationID := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			conversation, err := getConversation(txn, conversationID)
			if err != nil {
				return err
			}
			conversations = append(conversations, conversation)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Infra("list conversations", err)
	}
	SortByActivity(conversations)
	return conversations, nil
}

// History returns the messages between userA and userB in insertion order.
// A pair that never talked has an empty history, not an error.
func (s *BadgerConversationStore) History(_ context.Context, userA, userB string) ([]domain.Message, error) {
	pair, err := validPair(userA, userB)
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0)
	err = s.db.View(func(txn *badger.Txn) error {
		conversation, err := s.conversationForPair(txn, pair)
		if err != nil {
			return err
		}
		return scanMessages(txn, conversation.ID, func(_ []byte, message DiskMessage) error {
			messages = append(messages, toMessage(conversation.ID, message))
			return nil
		})
	})
	switch {
	case err == nil:
		return messages, nil
	case stderrors.Is(err, errors.ErrNotFound):
		return messages, nil
	default:
		return nil, errors.Infra("read history", err)
	}
}

// MarkRead flags every message not sent by readerID as read and returns how
// many changed. Calling it twice returns 0 the second time.
func (s *BadgerConversationStore) MarkRead(_ context.Context, conversationID, readerID string) (int, error) {
	if !domain.IsValidID(conversationID) || !domain.IsValidID(readerID) {
		return 0, fmt.Errorf("%w: malformed id", errors.ErrValidation)
	}
	unlock := s.locks.Lock(convPrefix + conversationID)
	defer unlock()

	var updated int
	err := s.update("mark read", func(txn *badger.Txn) error {
		updated = 0
		conversation, err := getConversation(txn, conversationID)
		if err != nil {
			return err
		}
		if !conversation.Participants.Has(readerID) {
			return fmt.Errorf("%w: conversation %s", errors.ErrNotFound, conversationID)
		}
		type pending struct {
			key     []byte
			message DiskMessage
		}
		var changes []pending
		err = scanMessages(txn, conversationID, func(key []byte, message DiskMessage) error {
			if domain.Unread(toMessage(conversationID, message), readerID) {
				message.IsRead = true
				changes = append(changes, pending{key: key, message: message})
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, change := range changes {
			bytes, err := bson.Marshal(change.message)
			if err != nil {
				return err
			}
			if err = txn.Set(change.key, bytes); err != nil {
				return err
			}
		}
		updated = len(changes)
		return nil
	})
	return updated, err
}

func (s *BadgerConversationStore) Get(_ context.Context, conversationID string) (domain.Conversation, error) {
	if !domain.IsValidID(conversationID) {
		return domain.Conversation{}, fmt.Errorf("%w: malformed conversation id", errors.ErrValidation)
	}
	var conversation domain.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		conversation, err = getConversation(txn, conversationID)
		return err
	})
	if err != nil && !isDomainError(err) {
		return domain.Conversation{}, errors.Infra("get conversation", err)
	}
	return conversation, err
}

// update runs fn in a read-write transaction, retrying once when badger
// reports a conflicting concurrent commit.
func (s *BadgerConversationStore) update(op string, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			break
		}
		s.log.Debug("Transaction conflict, retrying", "op", op, "attempt", attempt+1)
	}
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %s", errors.ErrConflict, op)
	case isDomainError(err):
		return err
	default:
		return errors.Infra(op, err)
	}
}

func (s *BadgerConversationStore) conversationForPair(txn *badger.Txn, pair domain.Pair) (domain.Conversation, error) {
	item, err := txn.Get(pairKey(pair))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, fmt.Errorf("%w: no conversation for pair", errors.ErrNotFound)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Conversation{}, err
	}
	return getConversation(txn, string(id))
}

func getConversation(txn *badger.Txn, conversationID string) (domain.Conversation, error) {
	item, err := txn.Get([]byte(convPrefix + conversationID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, conversationID)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	var dc DiskConversation
	err = item.Value(func(value []byte) error {
		return bson.Unmarshal(value, &dc)
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(dc), nil
}

func putConversation(txn *badger.Txn, conversation domain.Conversation) error {
	bytes, err := bson.Marshal(fromConversation(conversation))
	if err != nil {
		return err
	}
	return txn.Set([]byte(convPrefix+conversation.ID), bytes)
}

func pairKey(pair domain.Pair) []byte {
	return []byte(pairPrefix + pair.Key())
}

func memberKey(userID, conversationID string) []byte {
	return []byte(memberPrefix + userID + ":" + conversationID)
}

func validPair(userA, userB string) (domain.Pair, error) {
	if !domain.IsValidID(userA) || !domain.IsValidID(userB) {
		return domain.Pair{}, fmt.Errorf("%w: malformed user id", errors.ErrValidation)
	}
	return domain.NewPair(userA, userB)
}

func isDomainError(err error) bool {
	return stderrors.Is(err, errors.ErrValidation) ||
		stderrors.Is(err, errors.ErrNotFound) ||
		stderrors.Is(err, errors.ErrConflict)
}

// SortByActivity orders conversations by last activity, newest first.
// Ties fall back to the id so the order is stable across calls.
func SortByActivity(conversations []domain.Conversation) {
	slices.SortStableFunc(conversations, func(a, b domain.Conversation) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
