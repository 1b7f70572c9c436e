// members.go implements handlers for organization membership management.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
)

// MemberHandlers handles membership management endpoints
type MemberHandlers struct {
	memberRepo *repositories.MemberRepository
	userRepo   *repositories.UserRepository
}

// NewMemberHandlers creates a new MemberHandlers instance
func NewMemberHandlers(memberRepo *repositories.MemberRepository, userRepo *repositories.UserRepository) *MemberHandlers {
	return &MemberHandlers{
		memberRepo: memberRepo,
		userRepo:   userRepo,
	}
}

// @Summary      List members
// @Description  List all members of the scoped organization, including deactivated ones.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "members: []models.Member"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/members [get]
// ListMembersHandler lists the organization's members
// GET /api/v1/members
func (h *MemberHandlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		members, err := h.memberRepo.ListMembers(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list members",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"members": members,
		})
	}
}

// AddMemberRequest represents the request to add a member
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// @Summary      Add member
// @Description  Add an existing user to the organization by email. Re-adding a deactivated member reactivates them with the given role.
// @Tags         Members
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  AddMemberRequest  true  "User email and role (owner, admin, auditor, employee)"
// @Success      201  {object}  map[string]interface{}  "member: models.Member"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or role"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "No user with that email"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/members [post]
// AddMemberHandler adds a user to the organization
// POST /api/v1/members
func (h *MemberHandlers) AddMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		var req AddMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if !models.ValidRole(req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid role",
			})
			return
		}

		user, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to look up user",
			})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No user with that email",
			})
			return
		}

		member := &models.Member{
			OrganizationID: orgID,
			UserID:         user.ID,
			Role:           req.Role,
			IsActive:       true,
		}
		if err := h.memberRepo.AddMember(c.Request.Context(), member); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to add member",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"member": member,
		})
	}
}

// UpdateMemberRequest represents the request to change a member's role
type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

// @Summary      Update member role
// @Description  Change a member's role. Takes effect on the member's next request.
// @Tags         Members
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        user_id  path  string               true  "User ID"
// @Param        body     body  UpdateMemberRequest  true  "New role"
// @Success      200  {object}  map[string]interface{}  "member: models.Member"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or role"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Member not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/members/{user_id} [put]
// UpdateMemberHandler changes a member's role
// PUT /api/v1/members/:user_id
func (h *MemberHandlers) UpdateMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")
		userID := c.Param("user_id")

		var req UpdateMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if !models.ValidRole(req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid role",
			})
			return
		}

		if err := h.memberRepo.UpdateRole(c.Request.Context(), orgID, userID, req.Role); err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Member not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update member role",
			})
			return
		}

		member, err := h.memberRepo.GetMember(c.Request.Context(), orgID, userID)
		if err != nil || member == nil {
			c.JSON(http.StatusOK, gin.H{
				"message": "Member role updated",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"member": member,
		})
	}
}

// @Summary      Remove member
// @Description  Deactivate a member. Their tenant access is revoked on the next request; the membership row is kept for the audit trail.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Param        user_id  path  string  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "message: Member removed"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Member not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/members/{user_id} [delete]
// RemoveMemberHandler deactivates a member
// DELETE /api/v1/members/:user_id
func (h *MemberHandlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")
		userID := c.Param("user_id")

		if err := h.memberRepo.Deactivate(c.Request.Context(), orgID, userID); err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Member not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to remove member",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Member removed",
		})
	}
}
