// audit_logs.go implements the audit trail read endpoint.
package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/db/repositories"
)

// AuditLogHandlers handles audit trail endpoints
type AuditLogHandlers struct {
	auditRepo *repositories.AuditRepository
}

// NewAuditLogHandlers creates a new AuditLogHandlers instance
func NewAuditLogHandlers(auditRepo *repositories.AuditRepository) *AuditLogHandlers {
	return &AuditLogHandlers{auditRepo: auditRepo}
}

// @Summary      List audit logs
// @Description  List the scoped organization's audit trail, newest first.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        limit  query  int  false  "Max entries, capped at 1000 (default 100)"
// @Success      200  {object}  map[string]interface{}  "audit_logs: []models.AuditLog"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/audit-logs [get]
// ListAuditLogsHandler lists the organization's audit trail
// GET /api/v1/audit-logs?limit=100
func (h *AuditLogHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

		entries, err := h.auditRepo.ListByOrganization(c.Request.Context(), orgID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list audit logs",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_logs": entries,
		})
	}
}
