package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/models"
	"storefront/repository"
)

const userColumns = "id, clerk_id, email, first_name, last_name, is_admin, created_at"

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a UserRepository backed by MySQL.
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) find(ctx context.Context, column, value string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value).
		Scan(&u.ID, &u.ClerkID, &u.Email, &u.FirstName, &u.LastName, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(ctx, "id", id)
}

func (r *userRepository) FindByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	return r.find(ctx, "clerk_id", clerkID)
}

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.ClerkID, u.Email, u.FirstName, u.LastName, u.IsAdmin, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
