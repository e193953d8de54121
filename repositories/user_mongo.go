package repositories

import (
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoUserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(userCollection), now: domain.Now}
}

func (u *MongoUserRepository) CreateUser(ctx context.Context, username, email, hashedPassword string) (domain.User, error) {
	user := domain.User{
		ID:           domain.NewID(),
		Username:     username,
		Email:        normalizeEmail(email),
		PasswordHash: hashedPassword,
		CreatedAt:    u.now(),
	}
	_, err := u.coll.InsertOne(ctx, fromUser(user))
	switch {
	case err == nil:
		return user, nil
	case mongo.IsDuplicateKeyError(err):
		return domain.User{}, errors.ErrUserAlreadyExists
	default:
		return domain.User{}, errors.Infra("create user", err)
	}
}

func (u *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return u.findOne(ctx, bson.D{{Key: "email", Value: normalizeEmail(email)}})
}

func (u *MongoUserRepository) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return u.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (u *MongoUserRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	cursor, err := u.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, errors.Infra("list users", err)
	}
	var docs []DiskUser
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, errors.Infra("list users", err)
	}
	return lo.Map(docs, func(du DiskUser, _ int) domain.User { return toUser(du) }), nil
}

func (u *MongoUserRepository) findOne(ctx context.Context, filter bson.D) (domain.User, error) {
	var du DiskUser
	err := u.coll.FindOne(ctx, filter).Decode(&du)
	switch {
	case err == nil:
		return toUser(du), nil
	case stderrors.Is(err, mongo.ErrNoDocuments):
		return domain.User{}, fmt.Errorf("%w: user", errors.ErrNotFound)
	default:
		return domain.User{}, errors.Infra("get user", err)
	}
}
