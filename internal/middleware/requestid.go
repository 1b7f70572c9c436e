// requestid.go assigns every request an identifier that flows through the
// request logger and into audit-log rows, tying a trail entry back to the
// exact request that produced it.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header carrying the request identifier.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key the identifier is stored under.
	RequestIDKey = "request_id"

	// maxInboundRequestIDLength caps IDs taken from the inbound header. An
	// oversized value is replaced rather than truncated; a truncated ID would
	// correlate with nothing on the caller's side anyway.
	maxInboundRequestIDLength = 128
)

// RequestIDMiddleware ensures every request carries a request identifier.
//
// An inbound X-Request-ID set by a load balancer or API gateway is reused so
// the ID correlates across hops; absent or oversized values are replaced with
// a fresh UUID. The ID is stored under RequestIDKey for the logger and the
// audit recorder, and echoed in the response header for the caller.
//
// Mount it before any middleware that logs.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxInboundRequestIDLength {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
