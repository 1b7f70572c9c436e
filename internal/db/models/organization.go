package models

import "time"

// Organization is the tenancy boundary. Every compliance record (risk,
// vendor, task, comment, integration) belongs to exactly one organization,
// and every authenticated request resolves to exactly one organization.
type Organization struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Member roles, ordered by privilege. Owner and admin can manage members and
// API keys; auditor has read-only access to compliance records; employee can
// read and update records assigned to them.
const (
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
	RoleAuditor  = "auditor"
	RoleEmployee = "employee"
)

// Member links a user to an organization with a role. A membership row with
// is_active = false is treated as nonexistent by access checks; rows are
// deactivated rather than deleted so the audit trail keeps its referent.
type Member struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organizationId"`
	UserID         string    `db:"user_id" json:"userId"`
	Role           string    `db:"role" json:"role"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// ValidRole reports whether s is one of the defined member roles.
func ValidRole(s string) bool {
	switch s {
	case RoleOwner, RoleAdmin, RoleAuditor, RoleEmployee:
		return true
	}
	return false
}
