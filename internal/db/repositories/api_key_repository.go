// api_key_repository.go implements APIKeyRepository, providing database queries for API key
// creation, the active-key scan used by authentication, expiry management, and
// last-used timestamp updates.
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

// APIKeyRepository handles API key database operations
type APIKeyRepository struct {
	db *sqlx.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create inserts a new API key row. The caller is responsible for hashing the
// plaintext key before populating KeyHash; the plaintext never reaches this
// layer.
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	key.ID = uuid.New().String()
	key.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO api_keys (id, organization_id, name, key_hash, salt, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		key.ID,
		key.OrganizationID,
		key.Name,
		key.KeyHash,
		key.Salt,
		key.IsActive,
		key.ExpiresAt,
		key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// ListActive returns every key with is_active = true, across all
// organizations. This backs credential validation, which compares the
// candidate against each row because the hash is salted per key and cannot be
// used as a lookup index.
func (r *APIKeyRepository) ListActive(ctx context.Context) ([]models.APIKey, error) {
	query := `
		SELECT id, organization_id, name, key_hash, salt, is_active, expires_at, last_used_at, expiry_notification_sent_at, created_at
		FROM api_keys
		WHERE is_active = TRUE
	`

	var keys []models.APIKey
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("failed to list active api keys: %w", err)
	}
	return keys, nil
}

// GetByID retrieves a key by ID within an organization. Returns (nil, nil)
// when no such key exists.
func (r *APIKeyRepository) GetByID(ctx context.Context, orgID, id string) (*models.APIKey, error) {
	query := `
		SELECT id, organization_id, name, key_hash, salt, is_active, expires_at, last_used_at, expiry_notification_sent_at, created_at
		FROM api_keys
		WHERE id = $1 AND organization_id = $2
	`

	key := &models.APIKey{}
	err := r.db.GetContext(ctx, key, query, id, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return key, nil
}

// ListByOrganization returns all keys (active and revoked) for an organization,
// newest first.
func (r *APIKeyRepository) ListByOrganization(ctx context.Context, orgID string) ([]models.APIKey, error) {
	query := `
		SELECT id, organization_id, name, key_hash, salt, is_active, expires_at, last_used_at, expiry_notification_sent_at, created_at
		FROM api_keys
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	var keys []models.APIKey
	if err := r.db.SelectContext(ctx, &keys, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// UpdateLastUsed sets last_used_at for a key. Called synchronously on every
// successful validation so the timestamp is durable before the request
// proceeds.
func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, usedAt); err != nil {
		return fmt.Errorf("failed to update api key last_used_at: %w", err)
	}
	return nil
}

// Revoke deactivates a key. Revoked keys are kept for the audit trail and stop
// matching immediately because validation only scans active rows.
func (r *APIKeyRepository) Revoke(ctx context.Context, orgID, id string) error {
	query := `UPDATE api_keys SET is_active = FALSE WHERE id = $1 AND organization_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindExpiringKeys returns active keys that expire within the given window and
// have not yet had an expiry warning sent.
func (r *APIKeyRepository) FindExpiringKeys(ctx context.Context, within time.Duration) ([]models.APIKey, error) {
	query := `
		SELECT id, organization_id, name, key_hash, salt, is_active, expires_at, last_used_at, expiry_notification_sent_at, created_at
		FROM api_keys
		WHERE is_active = TRUE
		  AND expires_at IS NOT NULL
		  AND expires_at > NOW()
		  AND expires_at <= NOW() + $1::interval
		  AND expiry_notification_sent_at IS NULL
	`

	interval := fmt.Sprintf("%d seconds", int(within.Seconds()))
	var keys []models.APIKey
	if err := r.db.SelectContext(ctx, &keys, query, interval); err != nil {
		return nil, fmt.Errorf("failed to find expiring api keys: %w", err)
	}
	return keys, nil
}

// MarkExpiryNotificationSent records that an expiry warning email went out for
// a key so the notifier job does not send it twice.
func (r *APIKeyRepository) MarkExpiryNotificationSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `UPDATE api_keys SET expiry_notification_sent_at = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, sentAt); err != nil {
		return fmt.Errorf("failed to mark expiry notification sent: %w", err)
	}
	return nil
}
