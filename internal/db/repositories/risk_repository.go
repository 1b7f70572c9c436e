// risk_repository.go implements RiskRepository, providing database queries for
// the risk register. All queries are scoped by organization ID.
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

// RiskRepository handles risk register database operations
type RiskRepository struct {
	db *sqlx.DB
}

// NewRiskRepository creates a new RiskRepository
func NewRiskRepository(db *sqlx.DB) *RiskRepository {
	return &RiskRepository{db: db}
}

// Create inserts a new risk.
func (r *RiskRepository) Create(ctx context.Context, risk *models.Risk) error {
	risk.ID = uuid.New().String()
	now := time.Now().UTC()
	risk.CreatedAt = now
	risk.UpdatedAt = now

	query := `
		INSERT INTO risks (id, organization_id, title, description, category, status, likelihood, impact, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		risk.ID,
		risk.OrganizationID,
		risk.Title,
		risk.Description,
		risk.Category,
		risk.Status,
		risk.Likelihood,
		risk.Impact,
		risk.OwnerID,
		risk.CreatedAt,
		risk.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create risk: %w", err)
	}
	return nil
}

// GetByID retrieves a risk within an organization. Returns (nil, nil) when not
// found.
func (r *RiskRepository) GetByID(ctx context.Context, orgID, id string) (*models.Risk, error) {
	query := `
		SELECT id, organization_id, title, description, category, status, likelihood, impact, owner_id, created_at, updated_at
		FROM risks
		WHERE id = $1 AND organization_id = $2
	`

	risk := &models.Risk{}
	err := r.db.GetContext(ctx, risk, query, id, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get risk: %w", err)
	}
	return risk, nil
}

// ListByOrganization returns all risks for an organization, newest first.
func (r *RiskRepository) ListByOrganization(ctx context.Context, orgID string) ([]models.Risk, error) {
	query := `
		SELECT id, organization_id, title, description, category, status, likelihood, impact, owner_id, created_at, updated_at
		FROM risks
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	var risks []models.Risk
	if err := r.db.SelectContext(ctx, &risks, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list risks: %w", err)
	}
	return risks, nil
}

// Update applies changes to a risk.
func (r *RiskRepository) Update(ctx context.Context, risk *models.Risk) error {
	query := `
		UPDATE risks
		SET title = $3, description = $4, category = $5, status = $6, likelihood = $7, impact = $8, owner_id = $9, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`

	res, err := r.db.ExecContext(ctx, query,
		risk.ID,
		risk.OrganizationID,
		risk.Title,
		risk.Description,
		risk.Category,
		risk.Status,
		risk.Likelihood,
		risk.Impact,
		risk.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update risk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update risk: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a risk.
func (r *RiskRepository) Delete(ctx context.Context, orgID, id string) error {
	query := `DELETE FROM risks WHERE id = $1 AND organization_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete risk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete risk: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
