// tasks.go implements handlers for compliance tasks, optionally attached to a
// risk or vendor via entity_type/entity_id.
package compliance

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
)

func validTaskStatus(s string) bool {
	switch s {
	case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone:
		return true
	}
	return false
}

func validEntityType(s string) bool {
	switch s {
	case models.EntityTypeRisk, models.EntityTypeVendor, models.EntityTypeTask:
		return true
	}
	return false
}

// TaskHandlers handles task endpoints
type TaskHandlers struct {
	taskRepo *repositories.TaskRepository
}

// NewTaskHandlers creates a new TaskHandlers instance
func NewTaskHandlers(taskRepo *repositories.TaskRepository) *TaskHandlers {
	return &TaskHandlers{taskRepo: taskRepo}
}

// @Summary      List tasks
// @Description  List tasks in the scoped organization, optionally filtered to those attached to one entity.
// @Tags         Tasks
// @Security     Bearer
// @Produce      json
// @Param        entity_type  query  string  false  "Filter: entity type (risk, vendor, task)"
// @Param        entity_id    query  string  false  "Filter: entity ID; required with entity_type"
// @Success      200  {object}  map[string]interface{}  "tasks: []models.Task"
// @Failure      400  {object}  map[string]interface{}  "Invalid entity filter"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/tasks [get]
// ListTasksHandler lists tasks, optionally by attached entity
// GET /api/v1/tasks?entity_type=risk&entity_id=...
func (h *TaskHandlers) ListTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")
		entityType := c.Query("entity_type")
		entityID := c.Query("entity_id")

		var (
			tasks []models.Task
			err   error
		)
		switch {
		case entityType == "" && entityID == "":
			tasks, err = h.taskRepo.ListByOrganization(c.Request.Context(), orgID)
		case entityType != "" && entityID != "" && validEntityType(entityType):
			tasks, err = h.taskRepo.ListByEntity(c.Request.Context(), orgID, entityType, entityID)
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "entity_type and entity_id must be supplied together, with a valid entity type",
			})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list tasks",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"tasks": tasks,
		})
	}
}

// @Summary      Get task
// @Tags         Tasks
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Task ID"
// @Success      200  {object}  map[string]interface{}  "task: models.Task"
// @Failure      404  {object}  map[string]interface{}  "Task not found"
// @Router       /api/v1/tasks/{id} [get]
// GetTaskHandler retrieves a single task
// GET /api/v1/tasks/:id
func (h *TaskHandlers) GetTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		task, err := h.taskRepo.GetByID(c.Request.Context(), orgID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve task",
			})
			return
		}
		if task == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Task not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"task": task,
		})
	}
}

// CreateTaskRequest represents the request to create a task
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	EntityType  *string    `json:"entityType"`
	EntityID    *string    `json:"entityId"`
	AssigneeID  *string    `json:"assigneeId"`
	DueAt       *time.Time `json:"dueAt"`
}

// @Summary      Create task
// @Description  Create a compliance task, optionally attached to a risk or vendor. New tasks start todo.
// @Tags         Tasks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateTaskRequest  true  "Task fields"
// @Success      201  {object}  map[string]interface{}  "task: models.Task"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or entity attachment"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/tasks [post]
// CreateTaskHandler creates a task
// POST /api/v1/tasks
func (h *TaskHandlers) CreateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		var req CreateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		// Attachment is all or nothing.
		if (req.EntityType == nil) != (req.EntityID == nil) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "entityType and entityId must be supplied together",
			})
			return
		}
		if req.EntityType != nil && !validEntityType(*req.EntityType) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid entity type",
			})
			return
		}

		task := &models.Task{
			OrganizationID: orgID,
			Title:          req.Title,
			Description:    req.Description,
			Status:         models.TaskStatusTodo,
			EntityType:     req.EntityType,
			EntityID:       req.EntityID,
			AssigneeID:     req.AssigneeID,
			DueAt:          req.DueAt,
		}
		if err := h.taskRepo.Create(c.Request.Context(), task); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create task",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"task": task,
		})
	}
}

// UpdateTaskRequest represents a partial task update
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	AssigneeID  *string    `json:"assigneeId"`
	DueAt       *time.Time `json:"dueAt"`
}

// @Summary      Update task
// @Description  Update fields of an existing task. Omitted fields are unchanged.
// @Tags         Tasks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Task ID"
// @Param        body  body  UpdateTaskRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}  "task: models.Task"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or status"
// @Failure      404  {object}  map[string]interface{}  "Task not found"
// @Router       /api/v1/tasks/{id} [put]
// UpdateTaskHandler updates a task
// PUT /api/v1/tasks/:id
func (h *TaskHandlers) UpdateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		var req UpdateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		task, err := h.taskRepo.GetByID(c.Request.Context(), orgID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve task",
			})
			return
		}
		if task == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Task not found",
			})
			return
		}

		if req.Title != nil {
			task.Title = *req.Title
		}
		if req.Description != nil {
			task.Description = *req.Description
		}
		if req.Status != nil {
			if !validTaskStatus(*req.Status) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid task status",
				})
				return
			}
			task.Status = *req.Status
		}
		if req.AssigneeID != nil {
			task.AssigneeID = req.AssigneeID
		}
		if req.DueAt != nil {
			task.DueAt = req.DueAt
		}

		if err := h.taskRepo.Update(c.Request.Context(), task); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update task",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"task": task,
		})
	}
}

// @Summary      Delete task
// @Tags         Tasks
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Task ID"
// @Success      200  {object}  map[string]interface{}  "message: Task deleted"
// @Failure      404  {object}  map[string]interface{}  "Task not found"
// @Router       /api/v1/tasks/{id} [delete]
// DeleteTaskHandler deletes a task
// DELETE /api/v1/tasks/:id
func (h *TaskHandlers) DeleteTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		if err := h.taskRepo.Delete(c.Request.Context(), orgID, c.Param("id")); err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Task not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete task",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Task deleted",
		})
	}
}
