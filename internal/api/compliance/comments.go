// comments.go implements handlers for discussion comments attached to risks,
// vendors, and tasks. Comments always carry a human author, so API-key
// callers cannot create or delete them.
package compliance

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
)

// CommentHandlers handles comment endpoints
type CommentHandlers struct {
	commentRepo *repositories.CommentRepository
}

// NewCommentHandlers creates a new CommentHandlers instance
func NewCommentHandlers(commentRepo *repositories.CommentRepository) *CommentHandlers {
	return &CommentHandlers{commentRepo: commentRepo}
}

// @Summary      List comments
// @Description  List comments attached to one entity, oldest first.
// @Tags         Comments
// @Security     Bearer
// @Produce      json
// @Param        entity_type  query  string  true  "Entity type (risk, vendor, task)"
// @Param        entity_id    query  string  true  "Entity ID"
// @Success      200  {object}  map[string]interface{}  "comments: []models.Comment"
// @Failure      400  {object}  map[string]interface{}  "Missing or invalid entity filter"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/comments [get]
// ListCommentsHandler lists comments for an entity
// GET /api/v1/comments?entity_type=risk&entity_id=...
func (h *CommentHandlers) ListCommentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")
		entityType := c.Query("entity_type")
		entityID := c.Query("entity_id")

		if entityID == "" || !validEntityType(entityType) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "entity_type and entity_id query parameters are required",
			})
			return
		}

		comments, err := h.commentRepo.ListByEntity(c.Request.Context(), orgID, entityType, entityID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list comments",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"comments": comments,
		})
	}
}

// CreateCommentRequest represents the request to create a comment
type CreateCommentRequest struct {
	EntityType string `json:"entityType" binding:"required"`
	EntityID   string `json:"entityId" binding:"required"`
	Body       string `json:"body" binding:"required"`
}

// @Summary      Create comment
// @Description  Attach a comment to a risk, vendor, or task. The author is the authenticated user; API keys cannot comment.
// @Tags         Comments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateCommentRequest  true  "Entity reference and comment body"
// @Success      201  {object}  map[string]interface{}  "comment: models.Comment"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or entity type"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Caller has no user identity"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/comments [post]
// CreateCommentHandler creates a comment authored by the caller
// POST /api/v1/comments
func (h *CommentHandlers) CreateCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")
		userID := c.GetString("user_id")

		if userID == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Comments require a user identity",
			})
			return
		}

		var req CreateCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if !validEntityType(req.EntityType) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid entity type",
			})
			return
		}

		comment := &models.Comment{
			OrganizationID: orgID,
			AuthorID:       userID,
			EntityType:     req.EntityType,
			EntityID:       req.EntityID,
			Body:           req.Body,
		}
		if err := h.commentRepo.Create(c.Request.Context(), comment); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create comment",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"comment": comment,
		})
	}
}

// @Summary      Delete comment
// @Description  Delete a comment. Only its author may delete it.
// @Tags         Comments
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Comment ID"
// @Success      200  {object}  map[string]interface{}  "message: Comment deleted"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Caller has no user identity"
// @Failure      404  {object}  map[string]interface{}  "Comment not found or not authored by caller"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/comments/{id} [delete]
// DeleteCommentHandler deletes the caller's own comment
// DELETE /api/v1/comments/:id
func (h *CommentHandlers) DeleteCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")
		userID := c.GetString("user_id")

		if userID == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Comments require a user identity",
			})
			return
		}

		// The delete is scoped to the author, so a comment owned by someone
		// else looks identical to one that never existed.
		if err := h.commentRepo.Delete(c.Request.Context(), orgID, c.Param("id"), userID); err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Comment not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete comment",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Comment deleted",
		})
	}
}
