package models

import "time"

// Task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Entity types that tasks and comments may attach to.
const (
	EntityTypeRisk   = "risk"
	EntityTypeVendor = "vendor"
	EntityTypeTask   = "task"
)

// Task is a unit of compliance work, optionally attached to a risk or vendor
// via EntityType/EntityID.
type Task struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organizationId"`
	Title          string     `db:"title" json:"title"`
	Description    string     `db:"description" json:"description"`
	Status         string     `db:"status" json:"status"`
	EntityType     *string    `db:"entity_type" json:"entityType,omitempty"`
	EntityID       *string    `db:"entity_id" json:"entityId,omitempty"`
	AssigneeID     *string    `db:"assignee_id" json:"assigneeId,omitempty"`
	DueAt          *time.Time `db:"due_at" json:"dueAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}
