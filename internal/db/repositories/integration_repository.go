// integration_repository.go implements IntegrationRepository, providing
// database queries for external provider connections and their periodic
// connectivity check results.
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

// IntegrationRepository handles integration database operations
type IntegrationRepository struct {
	db *sqlx.DB
}

// NewIntegrationRepository creates a new IntegrationRepository
func NewIntegrationRepository(db *sqlx.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// Create inserts a new integration. EncryptedCredentials must already be
// sealed by the credential cipher.
func (r *IntegrationRepository) Create(ctx context.Context, integration *models.Integration) error {
	integration.ID = uuid.New().String()
	now := time.Now().UTC()
	integration.CreatedAt = now
	integration.UpdatedAt = now

	query := `
		INSERT INTO integrations (id, organization_id, provider, name, encrypted_credentials, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		integration.ID,
		integration.OrganizationID,
		integration.Provider,
		integration.Name,
		integration.EncryptedCredentials,
		integration.IsActive,
		integration.CreatedAt,
		integration.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create integration: %w", err)
	}
	return nil
}

// GetByID retrieves an integration within an organization. Returns (nil, nil)
// when not found.
func (r *IntegrationRepository) GetByID(ctx context.Context, orgID, id string) (*models.Integration, error) {
	query := `
		SELECT id, organization_id, provider, name, encrypted_credentials, is_active, last_check_at, last_check_status, created_at, updated_at
		FROM integrations
		WHERE id = $1 AND organization_id = $2
	`

	integration := &models.Integration{}
	err := r.db.GetContext(ctx, integration, query, id, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

// ListByOrganization returns all integrations for an organization.
func (r *IntegrationRepository) ListByOrganization(ctx context.Context, orgID string) ([]models.Integration, error) {
	query := `
		SELECT id, organization_id, provider, name, encrypted_credentials, is_active, last_check_at, last_check_status, created_at, updated_at
		FROM integrations
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	var integrations []models.Integration
	if err := r.db.SelectContext(ctx, &integrations, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return integrations, nil
}

// ListActive returns active integrations across all organizations. Used by the
// periodic connectivity check job.
func (r *IntegrationRepository) ListActive(ctx context.Context) ([]models.Integration, error) {
	query := `
		SELECT id, organization_id, provider, name, encrypted_credentials, is_active, last_check_at, last_check_status, created_at, updated_at
		FROM integrations
		WHERE is_active = TRUE
	`

	var integrations []models.Integration
	if err := r.db.SelectContext(ctx, &integrations, query); err != nil {
		return nil, fmt.Errorf("failed to list active integrations: %w", err)
	}
	return integrations, nil
}

// UpdateCheckResult records the outcome of a connectivity check.
func (r *IntegrationRepository) UpdateCheckResult(ctx context.Context, id, status string, checkedAt time.Time) error {
	query := `
		UPDATE integrations
		SET last_check_at = $2, last_check_status = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, checkedAt, status); err != nil {
		return fmt.Errorf("failed to update integration check result: %w", err)
	}
	return nil
}

// Delete removes an integration and its sealed credentials.
func (r *IntegrationRepository) Delete(ctx context.Context, orgID, id string) error {
	query := `DELETE FROM integrations WHERE id = $1 AND organization_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
