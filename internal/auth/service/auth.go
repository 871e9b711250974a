package service

import (
	"context"
	"errors"
	"time"

	userserrors "reservo/internal/users/errors"
	"reservo/internal/users/repository"
	"reservo/internal/users/validator"
	"reservo/pkg/config"
	apperrors "reservo/pkg/errors"
	"reservo/pkg/model"
	"reservo/pkg/sanitizer"

	"golang.org/x/crypto/bcrypt"
)

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

type AuthService interface {
	Login(ctx context.Context, creds *model.Credentials) (*LoginResult, error)
}

type authService struct {
	users     repository.UserRepository
	tokens    *TokenService
	validator *validator.UserValidator
	cfg       *config.Config
}

func NewAuthService(
	users repository.UserRepository,
	tokens *TokenService,
	validator *validator.UserValidator,
	cfg *config.Config,
) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *authService) Login(ctx context.Context, creds *model.Credentials) (*LoginResult, error) {
	creds.Username = sanitizer.NormalizeUsername(creds.Username)

	if err := s.validator.ValidateCredentials(creds); err != nil {
		return nil, apperrors.Validation("Invalid credentials payload", map[string]any{"error": err.Error()})
	}

	user, err := s.users.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			// Same response as a wrong password so usernames cannot be probed.
			return nil, apperrors.Unauthorized("Invalid username or password")
		}
		s.cfg.Log.Error("Failed to look up user during login", "username", creds.Username, "error", err)
		return nil, apperrors.Internal("Failed to authenticate", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.cfg.Log.Warn("Login attempt with wrong password", "username", creds.Username)
		return nil, apperrors.Unauthorized("Invalid username or password")
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token", err)
	}

	s.cfg.Log.Info("User logged in", "id", user.ID, "username", user.Username)

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}
