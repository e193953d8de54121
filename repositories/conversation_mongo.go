package repositories

import (
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConversationStore keeps one document per conversation with its
// messages embedded. Creation races are settled by the unique pairKey index,
// appends by a conditional update on messageCount.
type MongoConversationStore struct {
	coll *mongo.Collection
	log  *slog.Logger
	now  func() time.Time
}

func NewMongoConversationStore(db *mongo.Database, log *slog.Logger) *MongoConversationStore {
	return &MongoConversationStore{
		coll: db.Collection(conversationCollection),
		log:  log,
		now:  domain.Now,
	}
}

var withoutMessages = bson.D{{Key: "messages", Value: 0}}

func (s *MongoConversationStore) FindOrCreate(ctx context.Context, userA, userB string) (domain.Conversation, error) {
	pair, err := validPair(userA, userB)
	if err != nil {
		return domain.Conversation{}, err
	}
	conversation, err := s.findByPair(ctx, pair, withoutMessages)
	switch {
	case err == nil:
		return toConversation(conversation), nil
	case !stderrors.Is(err, errors.ErrNotFound):
		return domain.Conversation{}, err
	}

	created := domain.NewConversation(pair, s.now())
	_, err = s.coll.InsertOne(ctx, fromConversation(created))
	switch {
	case err == nil:
		s.log.Debug("Conversation created", "conversation_id", created.ID, "pair", pair.Key())
		return created, nil
	case mongo.IsDuplicateKeyError(err):
		// Lost the race, the winner's document is the conversation.
		conversation, err = s.findByPair(ctx, pair, withoutMessages)
		if err != nil {
			return domain.Conversation{}, err
		}
		return toConversation(conversation), nil
	default:
		return domain.Conversation{}, errors.Infra("create conversation", err)
	}
}

func (s *MongoConversationStore) Append(ctx context.Context, conversationID, senderID, text string) (domain.Message, error) {
	if !domain.IsValidID(conversationID) {
		return domain.Message{}, fmt.Errorf("%w: malformed conversation id", errors.ErrValidation)
	}
	for attempt := 0; attempt < 2; attempt++ {
		dc, err := s.findByID(ctx, conversationID, withoutMessages)
		if err != nil {
			return domain.Message{}, err
		}
		conversation := toConversation(dc)
		message, err := domain.NewMessage(conversation, senderID, text, s.now())
		if err != nil {
			return domain.Message{}, err
		}
		conversation.Record(message)
		summary := fromConversation(conversation)

		filter := bson.D{{Key: "_id", Value: conversationID}, {Key: "messageCount", Value: dc.MessageCount}}
		update := bson.D{
			{Key: "$push", Value: bson.D{{Key: "messages", Value: fromMessage(message)}}},
			{Key: "$set", Value: bson.D{
				{Key: "lastMessage", Value: summary.LastMessage},
				{Key: "lastActivity", Value: summary.LastActivity},
			}},
			{Key: "$inc", Value: bson.D{{Key: "messageCount", Value: 1}}},
		}
		res, err := s.coll.UpdateOne(ctx, filter, update)
		if err != nil {
			return domain.Message{}, errors.Infra("append message", err)
		}
		if res.MatchedCount == 1 {
			return message, nil
		}
		s.log.Debug("Concurrent append, retrying", "conversation_id", conversationID, "attempt", attempt+1)
	}
	return domain.Message{}, fmt.Errorf("%w: append message", errors.ErrConflict)
}

func (s *MongoConversationStore) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	if !domain.IsValidID(userID) {
		return nil, fmt.Errorf("%w: malformed user id", errors.ErrValidation)
	}
	opts := options.Find().
		SetProjection(withoutMessages).
		SetSort(bson.D{{Key: "lastActivity", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.D{{Key: "participants", Value: userID}}, opts)
	if err != nil {
		return nil, errors.Infra("list conversations", err)
	}
	var docs []DiskConversation
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, errors.Infra("list conversations", err)
	}
	conversations := lo.Map(docs, func(dc DiskConversation, _ int) domain.Conversation {
		return toConversation(dc)
	})
	SortByActivity(conversations)
	return conversations, nil
}

func (s *MongoConversationStore) History(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	pair, err := validPair(userA, userB)
	if err != nil {
		return nil, err
	}
	dc, err := s.findByPair(ctx, pair, bson.D{{Key: "messages", Value: 1}})
	switch {
	case err == nil:
		return toMessages(dc.ID, dc.Messages), nil
	case stderrors.Is(err, errors.ErrNotFound):
		return []domain.Message{}, nil
	default:
		return nil, err
	}
}

func (s *MongoConversationStore) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	if !domain.IsValidID(conversationID) || !domain.IsValidID(readerID) {
		return 0, fmt.Errorf("%w: malformed id", errors.ErrValidation)
	}
	dc, err := s.findByID(ctx, conversationID, bson.D{{Key: "participants", Value: 1}, {Key: "messages", Value: 1}})
	if err != nil {
		return 0, err
	}
	if !lo.Contains(dc.Participants, readerID) {
		return 0, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, conversationID)
	}
	ids := lo.FilterMap(dc.Messages, func(dm DiskMessage, _ int) (string, bool) {
		return dm.ID, domain.Unread(toMessage(dc.ID, dm), readerID)
	})
	if len(ids) == 0 {
		return 0, nil
	}

	update := bson.D{{Key: "$set", Value: bson.D{{Key: "messages.$[m].isRead", Value: true}}}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []any{bson.D{
			{Key: "m._id", Value: bson.D{{Key: "$in", Value: ids}}},
			{Key: "m.isRead", Value: false},
		}},
	})
	if _, err = s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: conversationID}}, update, opts); err != nil {
		return 0, errors.Infra("mark read", err)
	}
	return len(ids), nil
}

func (s *MongoConversationStore) Get(ctx context.Context, conversationID string) (domain.Conversation, error) {
	if !domain.IsValidID(conversationID) {
		return domain.Conversation{}, fmt.Errorf("%w: malformed conversation id", errors.ErrValidation)
	}
	dc, err := s.findByID(ctx, conversationID, withoutMessages)
	if err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(dc), nil
}

func (s *MongoConversationStore) findByPair(ctx context.Context, pair domain.Pair, projection bson.D) (DiskConversation, error) {
	return s.findOne(ctx, bson.D{{Key: "pairKey", Value: pair.Key()}}, projection)
}

func (s *MongoConversationStore) findByID(ctx context.Context, conversationID string, projection bson.D) (DiskConversation, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: conversationID}}, projection)
}

func (s *MongoConversationStore) findOne(ctx context.Context, filter, projection bson.D) (DiskConversation, error) {
	var dc DiskConversation
	err := s.coll.FindOne(ctx, filter, options.FindOne().SetProjection(projection)).Decode(&dc)
	switch {
	case err == nil:
		return dc, nil
	case stderrors.Is(err, mongo.ErrNoDocuments):
		return DiskConversation{}, fmt.Errorf("%w: conversation", errors.ErrNotFound)
	default:
		return DiskConversation{}, errors.Infra("find conversation", err)
	}
}
