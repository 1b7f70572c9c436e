package models

import "time"

// Comment is a discussion entry attached to a risk, vendor, or task.
type Comment struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organizationId"`
	AuthorID       string    `db:"author_id" json:"authorId"`
	EntityType     string    `db:"entity_type" json:"entityType"`
	EntityID       string    `db:"entity_id" json:"entityId"`
	Body           string    `db:"body" json:"body"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}
