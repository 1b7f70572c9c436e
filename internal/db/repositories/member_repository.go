// member_repository.go implements MemberRepository, providing database queries for
// organization membership: the active-membership check used by authentication,
// plus member CRUD for the management API.
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

// MemberRepository handles organization membership database operations
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// HasActiveMembership reports whether the user holds an active membership in
// the organization. Deactivated rows are invisible here, so suspending a
// member immediately revokes their tenant access.
func (r *MemberRepository) HasActiveMembership(ctx context.Context, orgID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM organization_members
			WHERE organization_id = $1 AND user_id = $2 AND is_active = TRUE
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, orgID, userID); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// GetMember retrieves the membership row for a user in an organization.
// Returns (nil, nil) when the user is not a member.
func (r *MemberRepository) GetMember(ctx context.Context, orgID, userID string) (*models.Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, is_active, created_at, updated_at
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`

	member := &models.Member{}
	err := r.db.GetContext(ctx, member, query, orgID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// ListMembers returns all memberships for an organization, including inactive
// ones, ordered by creation time.
func (r *MemberRepository) ListMembers(ctx context.Context, orgID string) ([]models.Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, is_active, created_at, updated_at
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY created_at
	`

	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// AddMember inserts a membership row. Re-adding a previously deactivated user
// reactivates the existing row and applies the new role.
func (r *MemberRepository) AddMember(ctx context.Context, member *models.Member) error {
	member.ID = uuid.New().String()
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now
	member.IsActive = true

	query := `
		INSERT INTO organization_members (id, organization_id, user_id, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		ON CONFLICT (organization_id, user_id)
		DO UPDATE SET role = EXCLUDED.role, is_active = TRUE, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		member.ID,
		member.OrganizationID,
		member.UserID,
		member.Role,
		member.CreatedAt,
		member.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// UpdateRole changes a member's role.
func (r *MemberRepository) UpdateRole(ctx context.Context, orgID, userID, role string) error {
	query := `
		UPDATE organization_members
		SET role = $3, updated_at = NOW()
		WHERE organization_id = $1 AND user_id = $2
	`

	res, err := r.db.ExecContext(ctx, query, orgID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate suspends a membership without deleting it, preserving the row
// for the audit trail.
func (r *MemberRepository) Deactivate(ctx context.Context, orgID, userID string) error {
	query := `
		UPDATE organization_members
		SET is_active = FALSE, updated_at = NOW()
		WHERE organization_id = $1 AND user_id = $2
	`

	res, err := r.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate member: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
