// auth.go implements the request authentication guards.
//
// Two variants exist and the difference is deliberate. HybridAuth accepts an
// API key or a JWT and, on the JWT path, demands an explicit organization
// scope; it protects tenant-scoped resources. JWTAuth accepts only a JWT and
// treats the organization header as optional, checking membership just when
// the caller volunteers a scope; it protects user-scoped endpoints such as
// listing one's own organizations. HybridAuth being stricter about
// organization context than JWTAuth is per-endpoint policy, not an oversight.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/auth"
	"github.com/compai/comp-api/internal/telemetry"
)

// Request headers consumed by the guards.
const (
	HeaderAPIKey       = "X-API-Key"
	HeaderOrganization = "X-Organization-Id"
)

// IdentityKey is the gin.Context key under which the authenticated identity
// is stored.
const IdentityKey = "auth_identity"

// APIKeyValidator resolves a plaintext API key to an organization ID, or ""
// when it does not authenticate.
type APIKeyValidator interface {
	Validate(ctx context.Context, candidate string) string
}

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// AccessChecker reports whether a user may act within an organization.
type AccessChecker interface {
	HasAccess(ctx context.Context, userID, orgID string) bool
}

// GuardDeps bundles the collaborators both guard variants share.
type GuardDeps struct {
	APIKeys  APIKeyValidator
	Verifier TokenVerifier
	Access   AccessChecker
}

// Identity returns the authenticated identity attached by a guard, if any.
func Identity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// HybridAuth returns the guard for tenant-scoped endpoints.
//
// Header precedence, not negotiation: when X-API-Key is present the API-key
// path runs exclusively, even if a bearer token is also present. Only when no
// API-key header exists is the Authorization header examined. Neither header
// present rejects immediately.
//
// The JWT path additionally requires X-Organization-Id and an active
// membership linking the token's user to that organization.
func HybridAuth(deps GuardDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rawKey := c.GetHeader(HeaderAPIKey); rawKey != "" {
			apiKeyPath(c, deps, rawKey)
			return
		}

		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			telemetry.AuthAttemptsTotal.WithLabelValues("none", "missing").Inc()
			reject(c, auth.ErrAuthRequired())
			return
		}

		claims, err := deps.Verifier.Verify(c.Request.Context(), token)
		if err != nil {
			rejectJWT(c, err)
			return
		}

		orgID := c.GetHeader(HeaderOrganization)
		if orgID == "" {
			telemetry.AuthAttemptsTotal.WithLabelValues(auth.AuthTypeJWT, "missing_org").Inc()
			reject(c, auth.ErrOrgHeaderRequired())
			return
		}

		if !deps.Access.HasAccess(c.Request.Context(), claims.UserID, orgID) {
			telemetry.AuthAttemptsTotal.WithLabelValues(auth.AuthTypeJWT, "no_access").Inc()
			reject(c, auth.ErrOrgAccessDenied(orgID))
			return
		}

		attach(c, auth.Identity{
			OrganizationID: orgID,
			UserID:         claims.UserID,
			UserEmail:      claims.Email,
			AuthType:       auth.AuthTypeJWT,
		})
		telemetry.AuthAttemptsTotal.WithLabelValues(auth.AuthTypeJWT, "success").Inc()
		c.Next()
	}
}

// JWTAuth returns the guard for user-scoped endpoints. Only bearer tokens are
// accepted. X-Organization-Id is optional; when supplied, membership is
// checked and a failure rejects, but its absence is fine.
func JWTAuth(deps GuardDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			telemetry.AuthAttemptsTotal.WithLabelValues("none", "missing").Inc()
			reject(c, auth.ErrAuthRequired())
			return
		}

		claims, err := deps.Verifier.Verify(c.Request.Context(), token)
		if err != nil {
			rejectJWT(c, err)
			return
		}

		orgID := c.GetHeader(HeaderOrganization)
		if orgID != "" && !deps.Access.HasAccess(c.Request.Context(), claims.UserID, orgID) {
			telemetry.AuthAttemptsTotal.WithLabelValues(auth.AuthTypeJWT, "no_access").Inc()
			reject(c, auth.ErrOrgAccessDenied(orgID))
			return
		}

		attach(c, auth.Identity{
			OrganizationID: orgID,
			UserID:         claims.UserID,
			UserEmail:      claims.Email,
			AuthType:       auth.AuthTypeJWT,
		})
		telemetry.AuthAttemptsTotal.WithLabelValues(auth.AuthTypeJWT, "success").Inc()
		c.Next()
	}
}

func apiKeyPath(c *gin.Context, deps GuardDeps, rawKey string) {
	orgID := deps.APIKeys.Validate(c.Request.Context(), strings.TrimSpace(rawKey))
	if orgID == "" {
		telemetry.AuthAttemptsTotal.WithLabelValues(auth.AuthTypeAPIKey, "invalid").Inc()
		reject(c, auth.ErrInvalidAPIKey())
		return
	}

	attach(c, auth.Identity{
		OrganizationID: orgID,
		AuthType:       auth.AuthTypeAPIKey,
		IsAPIKey:       true,
	})
	telemetry.AuthAttemptsTotal.WithLabelValues(auth.AuthTypeAPIKey, "success").Inc()
	c.Next()
}

// extractBearer pulls the token out of an Authorization header. The prefix
// check is the literal "Bearer " with a single space, case sensitive, and the
// value must be longer than the prefix. No whitespace tolerance.
func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.HasPrefix(header, prefix) {
		return ""
	}
	return header[len(prefix):]
}

func attach(c *gin.Context, id auth.Identity) {
	c.Set(IdentityKey, id)
	// Flat keys for middleware that does not care about the full identity
	// (rate limiting, audit).
	if id.UserID != "" {
		c.Set("user_id", id.UserID)
	}
	if id.OrganizationID != "" {
		c.Set("organization_id", id.OrganizationID)
	}
}

func reject(c *gin.Context, err *auth.Error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Message})
}

// rejectJWT maps a verifier failure to its metric label and 401 response.
func rejectJWT(c *gin.Context, err error) {
	authErr, ok := err.(*auth.Error)
	if !ok {
		authErr = auth.ErrInvalidToken(err)
	}

	result := "invalid"
	switch authErr.Kind {
	case auth.KindConfiguration:
		result = "config"
	case auth.KindIdentityProviderUnreachable:
		result = "idp_unreachable"
	}
	telemetry.AuthAttemptsTotal.WithLabelValues(auth.AuthTypeJWT, result).Inc()
	reject(c, authErr)
}
