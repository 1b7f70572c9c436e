// rbac.go provides role-based access control on top of the authentication
// guards. Guards establish WHO is calling; RequireRole decides whether that
// caller's role in the organization permits the route.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/db/models"
)

// MemberGetter fetches a membership row for role resolution.
type MemberGetter interface {
	GetMember(ctx context.Context, orgID, userID string) (*models.Member, error)
}

// RequireRole returns middleware that allows the request only when the
// caller's role in the scoped organization is one of the given roles.
//
// API-key identities pass unconditionally: a key is an organization-level
// machine credential, not a member, so it carries no role to compare. Role
// checks for human callers run against the membership row, so a role change
// takes effect on the next request without re-issuing tokens.
//
// Must be registered after HybridAuth or JWTAuth; an unauthenticated request
// here is a routing bug and is rejected outright.
func RequireRole(store MemberGetter, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}

		if id.IsAPIKey {
			c.Next()
			return
		}

		if id.OrganizationID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Organization scope required"})
			return
		}

		member, err := store.GetMember(c.Request.Context(), id.OrganizationID, id.UserID)
		if err != nil || member == nil || !member.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Insufficient permissions"})
			return
		}

		if !allowed[member.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Insufficient permissions"})
			return
		}

		c.Set("member_role", member.Role)
		c.Next()
	}
}

// ManagerRoles are the roles allowed to administer an organization: members,
// API keys, integrations.
func ManagerRoles() []string {
	return []string{models.RoleOwner, models.RoleAdmin}
}

// WriterRoles are the roles allowed to create and update compliance records.
// Auditors are deliberately excluded; their access is read-only.
func WriterRoles() []string {
	return []string{models.RoleOwner, models.RoleAdmin, models.RoleEmployee}
}

// ReaderRoles are all roles with read access to compliance records.
func ReaderRoles() []string {
	return []string{models.RoleOwner, models.RoleAdmin, models.RoleAuditor, models.RoleEmployee}
}
