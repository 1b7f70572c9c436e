// security.go sets protective response headers on every request. The service
// is a JSON API consumed by the Comp frontend and by machine callers, so the
// policy is lockdown-by-default: nothing on this origin is scriptable,
// framable, or embeddable.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig controls which protective headers are emitted.
type SecurityHeadersConfig struct {
	// EnableHSTS emits Strict-Transport-Security. Leave off for plain-HTTP
	// development setups; browsers cache the directive.
	EnableHSTS bool
	// HSTSMaxAge is the HSTS max-age in seconds.
	HSTSMaxAge int
	// HSTSIncludeSubdomains extends the HSTS directive to subdomains.
	HSTSIncludeSubdomains bool
	// FrameOptions is the X-Frame-Options value; empty suppresses the header.
	FrameOptions string
	// ContentSecurityPolicy is the CSP value; empty suppresses the header.
	ContentSecurityPolicy string
	// ReferrerPolicy is the Referrer-Policy value; empty suppresses the header.
	ReferrerPolicy string
}

// APISecurityHeadersConfig returns the headers served on all API routes.
// Responses are JSON, never rendered, so the CSP denies every source and the
// referrer policy strips outbound referrers that could leak resource IDs in
// URLs to integration endpoints.
func APISecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		EnableHSTS:            true,
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,
		FrameOptions:          "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}
}

// SecurityHeadersMiddleware emits the configured headers on every response,
// before the handler runs so error responses carry them too.
func SecurityHeadersMiddleware(config SecurityHeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.EnableHSTS {
			hsts := "max-age=" + strconv.Itoa(config.HSTSMaxAge)
			if config.HSTSIncludeSubdomains {
				hsts += "; includeSubDomains"
			}
			c.Header("Strict-Transport-Security", hsts)
		}

		if config.FrameOptions != "" {
			c.Header("X-Frame-Options", config.FrameOptions)
		}
		if config.ContentSecurityPolicy != "" {
			c.Header("Content-Security-Policy", config.ContentSecurityPolicy)
		}
		if config.ReferrerPolicy != "" {
			c.Header("Referrer-Policy", config.ReferrerPolicy)
		}

		// Unconditional hardening: responses are JSON and must never be
		// sniffed into something renderable or embedded cross-origin.
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Cross-Origin-Opener-Policy", "same-origin")
		c.Header("Cross-Origin-Resource-Policy", "same-origin")

		c.Next()
	}
}
