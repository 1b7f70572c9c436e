// Package admin implements handlers for organization administration: the
// scoped organization's profile, members, API keys, integrations, and audit
// trail. Routes here run behind the hybrid guard plus a role check, so
// handlers can assume the organization scope is set and the caller is
// authorized.
package admin

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/db/repositories"
)

// isNotFound reports whether a repository error means no row was affected.
func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// OrganizationHandlers handles the scoped organization's profile endpoints
type OrganizationHandlers struct {
	orgRepo    *repositories.OrganizationRepository
	memberRepo *repositories.MemberRepository
}

// NewOrganizationHandlers creates a new OrganizationHandlers instance
func NewOrganizationHandlers(orgRepo *repositories.OrganizationRepository, memberRepo *repositories.MemberRepository) *OrganizationHandlers {
	return &OrganizationHandlers{
		orgRepo:    orgRepo,
		memberRepo: memberRepo,
	}
}

// @Summary      Get current organization
// @Description  Retrieve the scoped organization's profile and member list.
// @Tags         Organization
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "organization: models.Organization, members: []models.Member"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/organization [get]
// GetOrganizationHandler retrieves the scoped organization
// GET /api/v1/organization
func (h *OrganizationHandlers) GetOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		org, err := h.orgRepo.GetByID(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve organization",
			})
			return
		}
		if org == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Organization not found",
			})
			return
		}

		members, err := h.memberRepo.ListMembers(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve organization members",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"organization": org,
			"members":      members,
		})
	}
}

// UpdateOrganizationRequest represents the request to update the organization
type UpdateOrganizationRequest struct {
	Name *string `json:"name"`
}

// @Summary      Update current organization
// @Description  Update the scoped organization's display name. The slug is immutable.
// @Tags         Organization
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  UpdateOrganizationRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}  "organization: models.Organization"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/organization [put]
// UpdateOrganizationHandler updates the scoped organization
// PUT /api/v1/organization
func (h *OrganizationHandlers) UpdateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		var req UpdateOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		org, err := h.orgRepo.GetByID(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve organization",
			})
			return
		}
		if org == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Organization not found",
			})
			return
		}

		if req.Name != nil {
			org.Name = *req.Name
		}

		if err := h.orgRepo.Update(c.Request.Context(), org); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update organization",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"organization": org,
		})
	}
}
