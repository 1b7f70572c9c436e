// vendor_repository.go implements VendorRepository, providing database queries
// for vendor risk management. All queries are scoped by organization ID.
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

// VendorRepository handles vendor database operations
type VendorRepository struct {
	db *sqlx.DB
}

// NewVendorRepository creates a new VendorRepository
func NewVendorRepository(db *sqlx.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// Create inserts a new vendor.
func (r *VendorRepository) Create(ctx context.Context, vendor *models.Vendor) error {
	vendor.ID = uuid.New().String()
	now := time.Now().UTC()
	vendor.CreatedAt = now
	vendor.UpdatedAt = now

	query := `
		INSERT INTO vendors (id, organization_id, name, website, category, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		vendor.ID,
		vendor.OrganizationID,
		vendor.Name,
		vendor.Website,
		vendor.Category,
		vendor.Status,
		vendor.OwnerID,
		vendor.CreatedAt,
		vendor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

// GetByID retrieves a vendor within an organization. Returns (nil, nil) when
// not found.
func (r *VendorRepository) GetByID(ctx context.Context, orgID, id string) (*models.Vendor, error) {
	query := `
		SELECT id, organization_id, name, website, category, status, owner_id, created_at, updated_at
		FROM vendors
		WHERE id = $1 AND organization_id = $2
	`

	vendor := &models.Vendor{}
	err := r.db.GetContext(ctx, vendor, query, id, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return vendor, nil
}

// ListByOrganization returns all vendors for an organization, ordered by name.
func (r *VendorRepository) ListByOrganization(ctx context.Context, orgID string) ([]models.Vendor, error) {
	query := `
		SELECT id, organization_id, name, website, category, status, owner_id, created_at, updated_at
		FROM vendors
		WHERE organization_id = $1
		ORDER BY name
	`

	var vendors []models.Vendor
	if err := r.db.SelectContext(ctx, &vendors, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	return vendors, nil
}

// Update applies changes to a vendor.
func (r *VendorRepository) Update(ctx context.Context, vendor *models.Vendor) error {
	query := `
		UPDATE vendors
		SET name = $3, website = $4, category = $5, status = $6, owner_id = $7, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`

	res, err := r.db.ExecContext(ctx, query,
		vendor.ID,
		vendor.OrganizationID,
		vendor.Name,
		vendor.Website,
		vendor.Category,
		vendor.Status,
		vendor.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update vendor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update vendor: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a vendor.
func (r *VendorRepository) Delete(ctx context.Context, orgID, id string) error {
	query := `DELETE FROM vendors WHERE id = $1 AND organization_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete vendor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete vendor: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
