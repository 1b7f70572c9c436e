package models

import "time"

// Risk statuses.
const (
	RiskStatusOpen      = "open"
	RiskStatusMitigated = "mitigated"
	RiskStatusAccepted  = "accepted"
	RiskStatusClosed    = "closed"
)

// Risk is a compliance risk register entry. Likelihood and Impact are scored
// 1-5; Score is derived, never stored.
type Risk struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organizationId"`
	Title          string    `db:"title" json:"title"`
	Description    string    `db:"description" json:"description"`
	Category       string    `db:"category" json:"category"`
	Status         string    `db:"status" json:"status"`
	Likelihood     int       `db:"likelihood" json:"likelihood"`
	Impact         int       `db:"impact" json:"impact"`
	OwnerID        *string   `db:"owner_id" json:"ownerId,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Score returns the inherent risk score, likelihood times impact (1-25).
func (r *Risk) Score() int {
	return r.Likelihood * r.Impact
}
