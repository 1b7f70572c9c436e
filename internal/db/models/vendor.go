package models

import "time"

// Vendor assessment statuses.
const (
	VendorStatusNotAssessed = "not_assessed"
	VendorStatusInProgress  = "in_progress"
	VendorStatusAssessed    = "assessed"
	VendorStatusRejected    = "rejected"
)

// Vendor is a third party tracked for vendor risk management.
type Vendor struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organizationId"`
	Name           string    `db:"name" json:"name"`
	Website        string    `db:"website" json:"website"`
	Category       string    `db:"category" json:"category"`
	Status         string    `db:"status" json:"status"`
	OwnerID        *string   `db:"owner_id" json:"ownerId,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}
