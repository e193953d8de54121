package services_test

import (
	"context"
	"direct-chat/auth"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/mocks"
	"direct-chat/services"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newAuthService(t *testing.T) (*services.AuthService, *mocks.MockIUserRepository, *auth.TokenManager) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("a-test-key", 15*time.Minute)
	return services.NewAuthService(repo, tokens, logs.GetLoggerFromLevel(slog.LevelError)), repo, tokens
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		svc, repo, tokens := newAuthService(t)
		user := domain.User{ID: domain.NewID(), Username: "alice", Email: "alice@example.com"}

		// The repository receives a hash, never the plain password
		repo.EXPECT().
			CreateUser(ctx, "alice", "alice@example.com", gomock.Not("secret")).
			Return(user, nil).
			Times(1)

		session, err := svc.Register(ctx, auth.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret"})
		req.NoError(err)
		req.Equal(user, session.User)

		userID, err := tokens.Validate(session.Token)
		req.NoError(err)
		req.Equal(user.ID, userID)
	})

	t.Run("should fail validation without touching the repository", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newAuthService(t)
		repo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register(ctx, auth.RegisterRequest{Username: "al", Email: "alice@example.com", Password: "secret"})
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should fail when user already exists", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newAuthService(t)
		repo.EXPECT().
			CreateUser(ctx, "alice", "alice@example.com", gomock.Any()).
			Return(domain.User{}, errors.ErrUserAlreadyExists)

		_, err := svc.Register(ctx, auth.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret"})
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	stored := domain.User{ID: domain.NewID(), Username: "alice", Email: "alice@example.com", PasswordHash: hash}

	t.Run("should login with correct credentials", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newAuthService(t)
		repo.EXPECT().GetUserByEmail(ctx, "alice@example.com").Return(stored, nil)

		session, err := svc.Login(ctx, auth.LoginRequest{Email: "alice@example.com", Password: "secret"})
		req.NoError(err)
		req.NotEmpty(session.Token)
		req.Equal(stored.ID, session.User.ID)
	})

	t.Run("should return invalid credentials on a wrong password", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newAuthService(t)
		repo.EXPECT().GetUserByEmail(ctx, "alice@example.com").Return(stored, nil)

		_, err := svc.Login(ctx, auth.LoginRequest{Email: "alice@example.com", Password: "wrong!"})
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials for an unknown email", func(t *testing.T) {
		req := require.New(t)
		svc, repo, _ := newAuthService(t)
		repo.EXPECT().GetUserByEmail(ctx, "ghost@example.com").Return(domain.User{}, fmt.Errorf("%w: user", errors.ErrNotFound))

		_, err := svc.Login(ctx, auth.LoginRequest{Email: "ghost@example.com", Password: "secret"})
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_Verify(t *testing.T) {
	ctx := context.Background()
	user := domain.User{ID: domain.NewID(), Username: "alice"}

	t.Run("should re-issue a token for a known user", func(t *testing.T) {
		req := require.New(t)
		svc, repo, tokens := newAuthService(t)
		token, err := tokens.Generate(user.ID)
		req.NoError(err)
		repo.EXPECT().GetUserByID(ctx, user.ID).Return(user, nil)

		session, err := svc.Verify(ctx, token)
		req.NoError(err)
		req.Equal(user.ID, session.User.ID)
		req.NotEmpty(session.Token)
	})

	t.Run("should reject a token of a deleted user", func(t *testing.T) {
		req := require.New(t)
		svc, repo, tokens := newAuthService(t)
		token, err := tokens.Generate(user.ID)
		req.NoError(err)
		repo.EXPECT().GetUserByID(ctx, user.ID).Return(domain.User{}, fmt.Errorf("%w: user", errors.ErrNotFound))

		_, err = svc.Verify(ctx, token)
		req.ErrorIs(err, errors.ErrUnauthorized)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		svc, _, _ := newAuthService(t)
		_, err := svc.Verify(ctx, "garbage")
		require.ErrorIs(t, err, errors.ErrUnauthorized)
	})
}
