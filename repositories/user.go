//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"
)

// IUserRepository is the account directory.
// It also serves display information to the realtime layer.
type IUserRepository interface {
	CreateUser(ctx context.Context, username, email, hashedPassword string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// DiskUser is the stored form of an account.
type DiskUser struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type UserRepository struct {
	db  *badger.DB
	now func() time.Time
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db, now: domain.Now}
}

// CreateUser persists a new account under "user:{id}" and reserves its
// email under "email:{email}". A taken email fails with ErrUserAlreadyExists.
func (u *UserRepository) CreateUser(_ context.Context, username, email, hashedPassword string) (domain.User, error) {
	user := domain.User{
		ID:           domain.NewID(),
		Username:     username,
		Email:        normalizeEmail(email),
		PasswordHash: hashedPassword,
		CreatedAt:    u.now(),
	}
	data, err := bson.Marshal(fromUser(user))
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte("email:" + user.Email)
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey, []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set([]byte("user:"+user.ID), data)
	})
	switch {
	case err == nil:
		return user, nil
	case stderrors.Is(err, errors.ErrUserAlreadyExists), stderrors.Is(err, badger.ErrConflict):
		return domain.User{}, errors.ErrUserAlreadyExists
	default:
		return domain.User{}, errors.Infra("create user", err)
	}
}

func (u *UserRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var id []byte
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("email:" + normalizeEmail(email)))
		if err != nil {
			return err
		}
		id, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: user", errors.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, errors.Infra("get user", err)
	}
	return u.GetUserByID(ctx, string(id))
}

func (u *UserRepository) GetUserByID(_ context.Context, id string) (domain.User, error) {
	var du DiskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return bson.Unmarshal(val, &du)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return domain.User{}, errors.Infra("get user", err)
	}
	return toUser(du), nil
}

func (u *UserRepository) ListUsers(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0)
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var du DiskUser
			err := it.Item().Value(func(val []byte) error {
				return bson.Unmarshal(val, &du)
			})
			if err != nil {
				return err
			}
			users = append(users, toUser(du))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Infra("list users", err)
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func fromUser(user domain.User) DiskUser {
	return DiskUser{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}
}

func toUser(du DiskUser) domain.User {
	return domain.User{
		ID:           du.ID,
		Username:     du.Username,
		Email:        du.Email,
		PasswordHash: du.PasswordHash,
		CreatedAt:    du.CreatedAt.UTC(),
	}
}
