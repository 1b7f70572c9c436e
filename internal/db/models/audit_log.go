package models

import (
	"encoding/json"
	"time"
)

// Actor types recorded in the audit trail.
const (
	ActorTypeUser   = "user"
	ActorTypeAPIKey = "api_key"
	ActorTypeSystem = "system"
)

// AuditLog is an immutable record of a state-changing request. OrganizationID
// is nullable because some actions (failed logins, system jobs) happen outside
// any tenant context.
type AuditLog struct {
	ID             string          `db:"id" json:"id"`
	OrganizationID *string         `db:"organization_id" json:"organizationId,omitempty"`
	ActorID        string          `db:"actor_id" json:"actorId"`
	ActorType      string          `db:"actor_type" json:"actorType"`
	Action         string          `db:"action" json:"action"`
	EntityType     string          `db:"entity_type" json:"entityType"`
	EntityID       string          `db:"entity_id" json:"entityId"`
	RequestID      string          `db:"request_id" json:"requestId"`
	IPAddress      string          `db:"ip_address" json:"ipAddress"`
	Metadata       json.RawMessage `db:"metadata" json:"metadata"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}
