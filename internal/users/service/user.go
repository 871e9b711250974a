package service

import (
	"context"
	"errors"

	userserrors "reservo/internal/users/errors"
	"reservo/internal/users/repository"
	"reservo/internal/users/validator"
	"reservo/pkg/config"
	apperrors "reservo/pkg/errors"
	"reservo/pkg/model"
	"reservo/pkg/sanitizer"

	"golang.org/x/crypto/bcrypt"
)

type UserService interface {
	Register(ctx context.Context, reg *model.UserRegistration) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, update *model.ProfileUpdate) (*model.User, error)
	ChangePassword(ctx context.Context, id string, change *model.PasswordChange) error
	Delete(ctx context.Context, id string) error
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.UserValidator
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	validator *validator.UserValidator,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *userService) Register(ctx context.Context, reg *model.UserRegistration) (*model.User, error) {
	reg.Username = sanitizer.NormalizeUsername(reg.Username)
	reg.Email = sanitizer.NormalizeEmail(reg.Email)

	if err := s.validator.ValidateRegistration(reg); err != nil {
		s.cfg.Log.Warn("User registration validation failed", "error", err)
		return nil, apperrors.Validation("Registration validation failed", map[string]any{"error": err.Error()})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := &model.User{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, userserrors.ErrDuplicateUsername) {
			return nil, apperrors.Conflict("Username already taken")
		}
		if errors.Is(err, userserrors.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("Email already registered")
		}
		s.cfg.Log.Error("Failed to register user", "username", reg.Username, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	s.cfg.Log.Info("User registered successfully", "id", user.ID, "username", user.Username)
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id string, update *model.ProfileUpdate) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	update.Username = sanitizer.NormalizeUsername(update.Username)
	update.Email = sanitizer.NormalizeEmail(update.Email)

	if err := s.validator.ValidateProfileUpdate(update); err != nil {
		s.cfg.Log.Warn("Profile update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid profile update", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	username := existing.Username
	if update.Username != "" {
		username = update.Username
	}
	email := existing.Email
	if update.Email != "" {
		email = update.Email
	}

	if err := s.repo.UpdateProfile(ctx, id, username, email); err != nil {
		if errors.Is(err, userserrors.ErrDuplicateUsername) {
			return nil, apperrors.Conflict("Username already taken")
		}
		if errors.Is(err, userserrors.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("Email already registered")
		}
		return nil, s.mapLookupError(err, id)
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	s.cfg.Log.Info("User profile updated", "id", id)
	return updated, nil
}

func (s *userService) ChangePassword(ctx context.Context, id string, change *model.PasswordChange) error {
	if id == "" {
		return apperrors.InvalidInput("User ID cannot be empty")
	}

	if err := s.validator.ValidatePasswordChange(change); err != nil {
		return apperrors.Validation("Invalid password change", map[string]any{"error": err.Error()})
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapLookupError(err, id)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(change.CurrentPassword)); err != nil {
		return apperrors.Unauthorized("Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(change.NewPassword), s.cfg.BcryptCost)
	if err != nil {
		return apperrors.Internal("Failed to hash password", err)
	}

	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return s.mapLookupError(err, id)
	}

	s.cfg.Log.Info("User password changed", "id", id)
	return nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("User ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapLookupError(err, id)
	}

	s.cfg.Log.Info("User deleted", "id", id)
	return nil
}

func (s *userService) mapLookupError(err error, id string) error {
	if errors.Is(err, userserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("User", id)
	}
	if errors.Is(err, userserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid user ID format")
	}
	return apperrors.Internal("Failed to retrieve user", err)
}
