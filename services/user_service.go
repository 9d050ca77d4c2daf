package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/models"
	"storefront/repository"
)

// AdminCheck decides whether an email address belongs to an administrator.
type AdminCheck func(email string) bool

// UserService keeps local user records in step with the identity provider.
type UserService struct {
	users   repository.UserRepository
	isAdmin AdminCheck
	now     func() time.Time
}

func NewUserService(users repository.UserRepository, isAdmin AdminCheck) *UserService {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &UserService{users: users, isAdmin: isAdmin, now: func() time.Time { return time.Now().UTC() }}
}

// Sync records a user the first time they sign in. An existing record for the
// same identity is returned unchanged.
func (s *UserService) Sync(ctx context.Context, req models.SyncUserRequest) (*models.User, bool, error) {
	clerkID := strings.TrimSpace(req.ClerkID)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if clerkID == "" || email == "" {
		return nil, false, validationf("clerkId and email are required")
	}

	existing, err := s.users.FindByClerkID(ctx, clerkID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	u := &models.User{
		ID:        uuid.NewString(),
		ClerkID:   clerkID,
		Email:     email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		IsAdmin:   s.isAdmin(email),
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, false, err
	}
	slog.Info("User synced", "user_id", u.ID, "admin", u.IsAdmin)
	return u, true, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("user %s", id)
	}
	return u, err
}

func (s *UserService) GetByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	u, err := s.users.FindByClerkID(ctx, clerkID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundf("user with identity %s", clerkID)
	}
	return u, err
}
