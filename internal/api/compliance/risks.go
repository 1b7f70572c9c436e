// Package compliance implements handlers for the tenant-scoped compliance
// records: risks, vendors, tasks, and comments. Every route in this package
// runs behind the hybrid guard, so the organization scope is already resolved
// and stored on the request context by the time a handler executes.
package compliance

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
)

// isNotFound reports whether a repository error means no row was affected.
func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// validScore reports whether n is a valid likelihood or impact score.
func validScore(n int) bool {
	return n >= 1 && n <= 5
}

func validRiskStatus(s string) bool {
	switch s {
	case models.RiskStatusOpen, models.RiskStatusMitigated, models.RiskStatusAccepted, models.RiskStatusClosed:
		return true
	}
	return false
}

// RiskHandlers handles risk register endpoints
type RiskHandlers struct {
	riskRepo *repositories.RiskRepository
}

// NewRiskHandlers creates a new RiskHandlers instance
func NewRiskHandlers(riskRepo *repositories.RiskRepository) *RiskHandlers {
	return &RiskHandlers{riskRepo: riskRepo}
}

// @Summary      List risks
// @Description  List all risks in the scoped organization.
// @Tags         Risks
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "risks: []models.Risk"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/risks [get]
// ListRisksHandler lists the organization's risks
// GET /api/v1/risks
func (h *RiskHandlers) ListRisksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		risks, err := h.riskRepo.ListByOrganization(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list risks",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"risks": risks,
		})
	}
}

// @Summary      Get risk
// @Description  Retrieve a risk by ID, including its derived score.
// @Tags         Risks
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Risk ID"
// @Success      200  {object}  map[string]interface{}  "risk: models.Risk, score: int"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Risk not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/risks/{id} [get]
// GetRiskHandler retrieves a single risk
// GET /api/v1/risks/:id
func (h *RiskHandlers) GetRiskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		risk, err := h.riskRepo.GetByID(c.Request.Context(), orgID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve risk",
			})
			return
		}
		if risk == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Risk not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"risk":  risk,
			"score": risk.Score(),
		})
	}
}

// CreateRiskRequest represents the request to create a risk
type CreateRiskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Likelihood  int     `json:"likelihood" binding:"required"`
	Impact      int     `json:"impact" binding:"required"`
	OwnerID     *string `json:"ownerId"`
}

// @Summary      Create risk
// @Description  Add a risk to the organization's risk register. New risks start open.
// @Tags         Risks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateRiskRequest  true  "Risk fields; likelihood and impact are scored 1-5"
// @Success      201  {object}  map[string]interface{}  "risk: models.Risk"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or score"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/risks [post]
// CreateRiskHandler creates a risk
// POST /api/v1/risks
func (h *RiskHandlers) CreateRiskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		var req CreateRiskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if !validScore(req.Likelihood) || !validScore(req.Impact) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Likelihood and impact must be between 1 and 5",
			})
			return
		}

		risk := &models.Risk{
			OrganizationID: orgID,
			Title:          req.Title,
			Description:    req.Description,
			Category:       req.Category,
			Status:         models.RiskStatusOpen,
			Likelihood:     req.Likelihood,
			Impact:         req.Impact,
			OwnerID:        req.OwnerID,
		}
		if err := h.riskRepo.Create(c.Request.Context(), risk); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create risk",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"risk": risk,
		})
	}
}

// UpdateRiskRequest represents a partial risk update
type UpdateRiskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Status      *string `json:"status"`
	Likelihood  *int    `json:"likelihood"`
	Impact      *int    `json:"impact"`
	OwnerID     *string `json:"ownerId"`
}

// @Summary      Update risk
// @Description  Update fields of an existing risk. Omitted fields are unchanged.
// @Tags         Risks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Risk ID"
// @Param        body  body  UpdateRiskRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}  "risk: models.Risk"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body, status, or score"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Risk not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/risks/{id} [put]
// UpdateRiskHandler updates a risk
// PUT /api/v1/risks/:id
func (h *RiskHandlers) UpdateRiskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		var req UpdateRiskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		risk, err := h.riskRepo.GetByID(c.Request.Context(), orgID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve risk",
			})
			return
		}
		if risk == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Risk not found",
			})
			return
		}

		if req.Title != nil {
			risk.Title = *req.Title
		}
		if req.Description != nil {
			risk.Description = *req.Description
		}
		if req.Category != nil {
			risk.Category = *req.Category
		}
		if req.Status != nil {
			if !validRiskStatus(*req.Status) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid risk status",
				})
				return
			}
			risk.Status = *req.Status
		}
		if req.Likelihood != nil {
			if !validScore(*req.Likelihood) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Likelihood must be between 1 and 5",
				})
				return
			}
			risk.Likelihood = *req.Likelihood
		}
		if req.Impact != nil {
			if !validScore(*req.Impact) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Impact must be between 1 and 5",
				})
				return
			}
			risk.Impact = *req.Impact
		}
		if req.OwnerID != nil {
			risk.OwnerID = req.OwnerID
		}

		if err := h.riskRepo.Update(c.Request.Context(), risk); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update risk",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"risk": risk,
		})
	}
}

// @Summary      Delete risk
// @Description  Remove a risk from the register.
// @Tags         Risks
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Risk ID"
// @Success      200  {object}  map[string]interface{}  "message: Risk deleted"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Risk not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/risks/{id} [delete]
// DeleteRiskHandler deletes a risk
// DELETE /api/v1/risks/:id
func (h *RiskHandlers) DeleteRiskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		if err := h.riskRepo.Delete(c.Request.Context(), orgID, c.Param("id")); err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Risk not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete risk",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Risk deleted",
		})
	}
}
