// organizations.go implements handlers for listing and creating organizations.
// Organization detail and membership management live in the admin package and
// run under the tenant-scoped guard.
package accounts

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// OrganizationHandlers handles user-scoped organization endpoints
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

// @Summary      List organizations
// @Description  List the organizations the calling user is an active member of.
// @Tags         Organizations
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "organizations: []models.Organization"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/organizations [get]
// ListOrganizationsHandler lists the caller's organizations
// GET /api/v1/organizations
func (h *OrganizationHandlers) ListOrganizationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")

		orgs, err := h.orgRepo.ListForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list organizations",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"organizations": orgs,
		})
	}
}

// CreateOrganizationRequest represents the request to create a new organization
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// @Summary      Create organization
// @Description  Create a new organization. The calling user becomes its owner.
// @Tags         Organizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateOrganizationRequest  true  "Organization name and URL slug"
// @Success      201  {object}  map[string]interface{}  "organization: models.Organization"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or slug"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      409  {object}  map[string]interface{}  "Slug already taken"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/organizations [post]
// CreateOrganizationHandler creates an organization owned by the caller
// POST /api/v1/organizations
func (h *OrganizationHandlers) CreateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")

		var req CreateOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if !slugPattern.MatchString(req.Slug) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Slug must be lowercase letters, digits, and hyphens",
			})
			return
		}

		existing, err := h.orgRepo.GetBySlug(c.Request.Context(), req.Slug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check existing organization",
			})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error": "An organization with this slug already exists",
			})
			return
		}

		org := &models.Organization{
			Name: req.Name,
			Slug: req.Slug,
		}
		if err := h.orgRepo.Create(c.Request.Context(), org); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create organization",
			})
			return
		}

		member := &models.Member{
			OrganizationID: org.ID,
			UserID:         userID,
			Role:           models.RoleOwner,
			IsActive:       true,
		}
		if err := h.memberRepo.AddMember(c.Request.Context(), member); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to add owner membership",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"organization": org,
		})
	}
}
