// user_repository.go implements UserRepository, providing database queries for
// user lookup during login and user provisioning from SSO.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/compai/comp-api/internal/db/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, name, password_hash, sso_subject, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.SSOSubject,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID. Returns (nil, nil) when not found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, name, password_hash, sso_subject, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := r.db.GetContext(ctx, user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email. Returns (nil, nil) when not found.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, name, password_hash, sso_subject, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	user := &models.User{}
	err := r.db.GetContext(ctx, user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// UpsertSSOUser provisions or refreshes a user from an SSO assertion, matching
// on the provider subject first and falling back to email for users who
// existed before SSO was enabled.
func (r *UserRepository) UpsertSSOUser(ctx context.Context, subject, email, name string) (*models.User, error) {
	query := `
		SELECT id, email, name, password_hash, sso_subject, created_at, updated_at
		FROM users
		WHERE sso_subject = $1 OR email = $2
		ORDER BY (sso_subject = $1) DESC
		LIMIT 1
	`

	user := &models.User{}
	err := r.db.GetContext(ctx, user, query, subject, email)
	if err == sql.ErrNoRows {
		user = &models.User{Email: email, Name: name, SSOSubject: &subject}
		if err := r.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sso user: %w", err)
	}

	update := `
		UPDATE users
		SET sso_subject = $2, name = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, update, user.ID, subject, name); err != nil {
		return nil, fmt.Errorf("failed to update sso user: %w", err)
	}
	user.SSOSubject = &subject
	user.Name = name
	return user, nil
}
