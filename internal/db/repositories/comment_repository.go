// comment_repository.go implements CommentRepository, providing database
// queries for discussion threads attached to risks, vendors, and tasks.
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

// CommentRepository handles comment database operations
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a new comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	comment.ID = uuid.New().String()
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	query := `
		INSERT INTO comments (id, organization_id, author_id, entity_type, entity_id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.OrganizationID,
		comment.AuthorID,
		comment.EntityType,
		comment.EntityID,
		comment.Body,
		comment.CreatedAt,
		comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListByEntity returns the comments attached to an entity, oldest first so the
// thread reads top to bottom.
func (r *CommentRepository) ListByEntity(ctx context.Context, orgID, entityType, entityID string) ([]models.Comment, error) {
	query := `
		SELECT id, organization_id, author_id, entity_type, entity_id, body, created_at, updated_at
		FROM comments
		WHERE organization_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at
	`

	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, orgID, entityType, entityID); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// Delete removes a comment. Only the author may delete; the handler enforces
// that by passing authorID.
func (r *CommentRepository) Delete(ctx context.Context, orgID, id, authorID string) error {
	query := `DELETE FROM comments WHERE id = $1 AND organization_id = $2 AND author_id = $3`

	res, err := r.db.ExecContext(ctx, query, id, orgID, authorID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
