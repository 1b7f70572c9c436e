// audit_repository.go implements AuditRepository, providing append and query
// access to the audit trail. Audit rows are never updated or deleted.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/compai/comp-api/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an audit record.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()
	if len(entry.Metadata) == 0 {
		entry.Metadata = []byte("{}")
	}

	query := `
		INSERT INTO audit_logs (id, organization_id, actor_id, actor_type, action, entity_type, entity_id, request_id, ip_address, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.ActorID,
		entry.ActorType,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.RequestID,
		entry.IPAddress,
		[]byte(entry.Metadata),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListByOrganization returns up to limit audit entries for an organization,
// newest first.
func (r *AuditRepository) ListByOrganization(ctx context.Context, orgID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, organization_id, actor_id, actor_type, action, entity_type, entity_id, request_id, ip_address, metadata, created_at
		FROM audit_logs
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, query, orgID, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return entries, nil
}
