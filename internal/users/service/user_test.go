package service

import (
	"context"
	"testing"

	userserrors "reservo/internal/users/errors"
	"reservo/internal/users/validator"
	"reservo/pkg/config"
	apperrors "reservo/pkg/errors"
	"reservo/pkg/logger"
	"reservo/pkg/model"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepository struct {
	createFunc         func(ctx context.Context, user *model.User) error
	findByIDFunc       func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFunc func(ctx context.Context, username string) (*model.User, error)
	updateProfileFunc  func(ctx context.Context, id string, username, email string) error
	updatePasswordFunc func(ctx context.Context, id string, passwordHash string) error
	deleteFunc         func(ctx context.Context, id string) error
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	user.ID = "64a000000000000000000002"
	return nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, userserrors.ErrNotFound
}

func (m *mockUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFunc != nil {
		return m.findByUsernameFunc(ctx, username)
	}
	return nil, userserrors.ErrNotFound
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, userserrors.ErrNotFound
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, id string, username, email string) error {
	if m.updateProfileFunc != nil {
		return m.updateProfileFunc(ctx, id, username, email)
	}
	return nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	if m.updatePasswordFunc != nil {
		return m.updatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func newTestUserService(repo *mockUserRepository) UserService {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{
		Log:        log,
		BcryptCost: bcrypt.MinCost,
	}
	return NewUserService(repo, validator.NewUserValidator(log), cfg)
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, appErr.Code, err)
	}
}

func TestRegister_HashesPasswordAndDefaultsRole(t *testing.T) {
	var stored *model.User
	repo := &mockUserRepository{
		createFunc: func(ctx context.Context, user *model.User) error {
			stored = user
			user.ID = "64a000000000000000000002"
			return nil
		},
	}
	svc := newTestUserService(repo)

	user, err := svc.Register(context.Background(), &model.UserRegistration{
		Username: "  Alice ",
		Email:    " Alice@Example.COM ",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stored.Username != "alice" {
		t.Errorf("expected normalized username, got %q", stored.Username)
	}
	if stored.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", stored.Email)
	}
	if user.Role != model.RoleUser {
		t.Errorf("expected default role %s, got %s", model.RoleUser, user.Role)
	}
	if stored.PasswordHash == "correct horse battery" || stored.PasswordHash == "" {
		t.Error("expected password to be stored as a bcrypt hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse battery")); err != nil {
		t.Errorf("stored hash does not verify the original password: %v", err)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	repo := &mockUserRepository{
		createFunc: func(ctx context.Context, user *model.User) error {
			return userserrors.ErrDuplicateUsername
		},
	}
	svc := newTestUserService(repo)

	_, err := svc.Register(context.Background(), &model.UserRegistration{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	expectCode(t, err, apperrors.CodeConflict)
}

func TestRegister_ShortPassword(t *testing.T) {
	svc := newTestUserService(&mockUserRepository{})

	_, err := svc.Register(context.Background(), &model.UserRegistration{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "short",
	})
	expectCode(t, err, apperrors.CodeValidation)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("the-real-password"), bcrypt.MinCost)
	repo := &mockUserRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PasswordHash: string(hash)}, nil
		},
	}
	svc := newTestUserService(repo)

	err := svc.ChangePassword(context.Background(), "64a000000000000000000002", &model.PasswordChange{
		CurrentPassword: "not-the-password",
		NewPassword:     "a brand new password",
	})
	expectCode(t, err, apperrors.CodeUnauthorized)
}

func TestChangePassword_Success(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("the-real-password"), bcrypt.MinCost)
	var newHash string
	repo := &mockUserRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PasswordHash: string(hash)}, nil
		},
		updatePasswordFunc: func(ctx context.Context, id string, passwordHash string) error {
			newHash = passwordHash
			return nil
		},
	}
	svc := newTestUserService(repo)

	err := svc.ChangePassword(context.Background(), "64a000000000000000000002", &model.PasswordChange{
		CurrentPassword: "the-real-password",
		NewPassword:     "a brand new password",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(newHash), []byte("a brand new password")); err != nil {
		t.Errorf("new hash does not verify the new password: %v", err)
	}
}

func TestUpdateProfile_PartialUpdateKeepsExistingFields(t *testing.T) {
	existing := &model.User{
		ID:       "64a000000000000000000002",
		Username: "alice",
		Email:    "alice@example.com",
	}
	var gotUsername, gotEmail string
	repo := &mockUserRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return existing, nil
		},
		updateProfileFunc: func(ctx context.Context, id string, username, email string) error {
			gotUsername, gotEmail = username, email
			return nil
		},
	}
	svc := newTestUserService(repo)

	_, err := svc.UpdateProfile(context.Background(), existing.ID, &model.ProfileUpdate{
		Email: "new@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUsername != "alice" {
		t.Errorf("expected username preserved, got %q", gotUsername)
	}
	if gotEmail != "new@example.com" {
		t.Errorf("expected updated email, got %q", gotEmail)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc := newTestUserService(&mockUserRepository{})

	_, err := svc.GetByID(context.Background(), "64a000000000000000000002")
	expectCode(t, err, apperrors.CodeNotFound)
}
