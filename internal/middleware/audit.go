// audit.go provides Gin middleware that records authenticated requests to the
// audit trail, with optional shipping to an external collector.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/audit"
	"github.com/compai/comp-api/internal/config"
	"github.com/compai/comp-api/internal/db/models"
)

// AuditInserter is the slice of the audit repository the middleware needs.
type AuditInserter interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
}

// AuditMiddleware records requests to the audit_logs table and ships a copy
// to the configured external collector.
//
// By default only successful write operations (non-GET, status < 400) are
// recorded; cfg.LogReadOperations and cfg.LogFailedRequests widen that.
// Recording happens after the handler runs so the final status code is known.
// A failed insert is logged and never fails the request: the response has
// already been decided, and an audit outage must not take the API down with
// it.
func AuditMiddleware(repo AuditInserter, shipper audit.Shipper, cfg config.AuditConfig) gin.HandlerFunc {
	if shipper == nil {
		shipper = audit.NopShipper{}
	}

	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		isRead := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		if isRead && !cfg.LogReadOperations {
			return
		}
		if isFailed && !cfg.LogFailedRequests {
			return
		}

		entry := buildEntry(c)

		if err := repo.Insert(c.Request.Context(), entry); err != nil {
			slog.Error("failed to write audit log",
				"action", entry.Action,
				"request_id", entry.RequestID,
				"error", err)
		}

		wire := &audit.Entry{
			Timestamp:  entry.CreatedAt,
			Action:     entry.Action,
			ActorID:    entry.ActorID,
			ActorType:  entry.ActorType,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			RequestID:  entry.RequestID,
			IPAddress:  entry.IPAddress,
			StatusCode: c.Writer.Status(),
		}
		if entry.OrganizationID != nil {
			wire.OrganizationID = *entry.OrganizationID
		}
		// Ship failures are already logged by the shipper.
		_ = shipper.Ship(c.Request.Context(), wire)
	}
}

func buildEntry(c *gin.Context) *models.AuditLog {
	entry := &models.AuditLog{
		Action:    fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path),
		IPAddress: c.ClientIP(),
		RequestID: c.GetString(RequestIDKey),
		CreatedAt: time.Now().UTC(),
		Metadata:  []byte("{}"),
	}

	if id, ok := Identity(c); ok {
		if id.IsAPIKey {
			entry.ActorType = models.ActorTypeAPIKey
			entry.ActorID = id.OrganizationID
		} else {
			entry.ActorType = models.ActorTypeUser
			entry.ActorID = id.UserID
		}
		if id.OrganizationID != "" {
			org := id.OrganizationID
			entry.OrganizationID = &org
		}
	}

	// Route params identify the touched entity for detail routes.
	if rid := c.Param("id"); rid != "" {
		entry.EntityID = rid
	}
	switch {
	case pathContains(c, "risks"):
		entry.EntityType = models.EntityTypeRisk
	case pathContains(c, "vendors"):
		entry.EntityType = models.EntityTypeVendor
	case pathContains(c, "tasks"):
		entry.EntityType = models.EntityTypeTask
	}

	return entry
}

func pathContains(c *gin.Context, segment string) bool {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return strings.Contains(path, "/"+segment)
}
