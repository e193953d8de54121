//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"context"
	"direct-chat/auth"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/repositories"
	stderrors "errors"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (Session, error)
	Verify(ctx context.Context, token string) (Session, error)
}

// Session is what a successful authentication hands back to the client.
type Session struct {
	Token string
	User  domain.User
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
	log            *slog.Logger
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenManager, log *slog.Logger) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens, log: log}
}

func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (Session, error) {
	// Validation runs before the expensive hash.
	if err := auth.ValidateRegister(req); err != nil {
		return Session{}, err
	}
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}
	user, err := s.userRepository.CreateUser(ctx, req.Username, req.Email, hashedPassword)
	if err != nil {
		return Session{}, err
	}
	s.log.Info("Account created", "user_id", user.ID)
	return s.issue(user)
}

// Login answers ErrInvalidCredentials for an unknown email and for a wrong
// password alike, so accounts cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (Session, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return Session{}, err
	}
	user, err := s.userRepository.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if !stderrors.Is(err, errors.ErrNotFound) {
			return Session{}, err
		}
		return Session{}, errors.ErrInvalidCredentials
	}
	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}
	return s.issue(user)
}

// Verify checks an existing token and issues a fresh one for the same user.
func (s *AuthService) Verify(ctx context.Context, token string) (Session, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return Session{}, fmt.Errorf("%w: unknown user", errors.ErrUnauthorized)
		}
		return Session{}, err
	}
	return s.issue(user)
}

func (s *AuthService) issue(user domain.User) (Session, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}
