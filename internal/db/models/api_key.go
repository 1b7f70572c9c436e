package models

import "time"

// APIKey is a long-lived machine credential scoped to a single organization.
//
// The plaintext key is shown exactly once at creation time; only KeyHash is
// stored. Keys created by current releases carry a per-key Salt and
// KeyHash = hex(sha256(plaintext + salt)). Keys created before salting was
// introduced have Salt = NULL and KeyHash = hex(sha256(plaintext)); they keep
// validating until rotated.
type APIKey struct {
	ID                       string     `db:"id" json:"id"`
	OrganizationID           string     `db:"organization_id" json:"organizationId"`
	Name                     string     `db:"name" json:"name"`
	KeyHash                  string     `db:"key_hash" json:"-"`
	Salt                     *string    `db:"salt" json:"-"`
	IsActive                 bool       `db:"is_active" json:"isActive"`
	ExpiresAt                *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	LastUsedAt               *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
	ExpiryNotificationSentAt *time.Time `db:"expiry_notification_sent_at" json:"-"`
	CreatedAt                time.Time  `db:"created_at" json:"createdAt"`
}

// Expired reports whether the key has an expiry in the past relative to now.
// Keys with no expiry never expire.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
