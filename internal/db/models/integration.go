package models

import "time"

// Integration check statuses.
const (
	IntegrationCheckOK     = "ok"
	IntegrationCheckFailed = "failed"
)

// Integration is a connection to an external provider (cloud account, ticket
// tracker, HR system) used to collect compliance evidence. Credentials are
// stored AES-GCM encrypted; the plaintext never touches the database.
type Integration struct {
	ID                   string     `db:"id" json:"id"`
	OrganizationID       string     `db:"organization_id" json:"organizationId"`
	Provider             string     `db:"provider" json:"provider"`
	Name                 string     `db:"name" json:"name"`
	EncryptedCredentials string     `db:"encrypted_credentials" json:"-"`
	IsActive             bool       `db:"is_active" json:"isActive"`
	LastCheckAt          *time.Time `db:"last_check_at" json:"lastCheckAt,omitempty"`
	LastCheckStatus      *string    `db:"last_check_status" json:"lastCheckStatus,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
}
