// Package api wires together all HTTP routes for the Comp API.
//
// Route grouping philosophy:
//   - Public routes (/health, /ready, /version, /api/auth/jwks, and the
//     /api/v1/auth/* sign-in endpoints) require no credentials. The JWKS
//     document in particular must stay public so token verifiers can fetch
//     signing keys without a chicken-and-egg problem.
//   - User-scoped routes (/api/v1/me, /api/v1/organizations) accept only a
//     bearer token; the organization header is optional there because the
//     caller is acting as themselves, not inside a tenant.
//   - Tenant-scoped routes run behind the hybrid guard (API key or JWT plus
//     X-Organization-Id) followed by a role check and the audit recorder.
package api

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/compai/comp-api/internal/api/accounts"
	"github.com/compai/comp-api/internal/api/admin"
	"github.com/compai/comp-api/internal/api/compliance"
	"github.com/compai/comp-api/internal/audit"
	"github.com/compai/comp-api/internal/auth"
	"github.com/compai/comp-api/internal/auth/sso"
	"github.com/compai/comp-api/internal/config"
	"github.com/compai/comp-api/internal/crypto"
	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
	"github.com/compai/comp-api/internal/jobs"
	"github.com/compai/comp-api/internal/middleware"
	"github.com/compai/comp-api/internal/safego"
)

// BackgroundServices holds references to background jobs and resources that
// must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() when the process receives a termination
// signal.
type BackgroundServices struct {
	expiryNotifier     *jobs.APIKeyExpiryNotifier
	integrationChecker *jobs.IntegrationChecker
	auditShipper       audit.Shipper
	rateLimiters       []middleware.Limiter
	redisClient        *redis.Client
}

// Shutdown stops all background goroutines and flushes the audit shipper. It
// should be called after the HTTP server has been shut down so that in-flight
// requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.expiryNotifier != nil {
		bg.expiryNotifier.Stop()
	}
	if bg.integrationChecker != nil {
		bg.integrationChecker.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Error("failed to flush audit shipper", "error", err)
		}
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Error("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sqlx.DB) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	memberRepo := repositories.NewMemberRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)
	riskRepo := repositories.NewRiskRepository(db)
	vendorRepo := repositories.NewVendorRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	commentRepo := repositories.NewCommentRepository(db)
	integrationRepo := repositories.NewIntegrationRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Token issuance and verification. The service is its own identity
	// provider: the verifier fetches keys from the JWKS endpoint published by
	// the issuer below.
	signingKey, err := auth.LoadSigningKey(cfg.Auth.SigningKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	issuer := auth.NewIssuer(cfg.Auth.IssuerURL, signingKey, cfg.Auth.AccessTokenTTL)
	verifier := auth.NewVerifier(cfg.Auth.IssuerURL, auth.NewJWKSCache())

	guardDeps := middleware.GuardDeps{
		APIKeys:  auth.NewAPIKeyValidator(apiKeyRepo),
		Verifier: verifier,
		Access:   auth.NewAccessChecker(memberRepo),
	}

	// Optional SSO provider
	var ssoProvider *sso.Provider
	if cfg.Auth.SSO.Enabled {
		ssoProvider, err = sso.NewProvider(context.Background(), cfg.Auth.SSO)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SSO provider: %w", err)
		}
	}

	// Optional credential cipher for integration secrets
	cipher, err := newCredentialCipher(cfg.Integrations.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	if cipher == nil {
		slog.Warn("no encryption key configured; integrations are disabled")
	}

	// Audit shipper (NopShipper unless the webhook is configured)
	auditShipper := audit.NewShipper(cfg.Audit.Webhook)

	// Rate limiters: cluster-wide via Redis when an address is configured,
	// per-process token buckets otherwise.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	generalCfg := middleware.DefaultRateLimitConfig()
	if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
		generalCfg.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
	}
	if cfg.Security.RateLimiting.Burst > 0 {
		generalCfg.BurstSize = cfg.Security.RateLimiting.Burst
	}
	generalLimiter := newLimiter(redisClient, generalCfg)
	authLimiter := newLimiter(redisClient, middleware.AuthRateLimitConfig())

	// Background jobs
	expiryNotifier := jobs.NewAPIKeyExpiryNotifier(apiKeyRepo, memberRepo, userRepo, &cfg.Notifications)
	safego.Go("api key expiry notifier", func() {
		expiryNotifier.Start(context.Background())
	})
	integrationChecker := jobs.NewIntegrationChecker(integrationRepo, cipher, &cfg.Integrations)
	safego.Go("integration checker", func() {
		integrationChecker.Start(context.Background())
	})

	// Handlers
	authHandlers := accounts.NewAuthHandlers(cfg, userRepo, orgRepo, issuer, ssoProvider)
	userOrgHandlers := accounts.NewOrganizationHandlers(orgRepo, memberRepo)
	orgHandlers := admin.NewOrganizationHandlers(orgRepo, memberRepo)
	memberHandlers := admin.NewMemberHandlers(memberRepo, userRepo)
	apiKeyHandlers := admin.NewAPIKeyHandlers(&cfg.Auth.APIKeys, apiKeyRepo)
	integrationHandlers := admin.NewIntegrationHandlers(integrationRepo, cipher)
	auditLogHandlers := admin.NewAuditLogHandlers(auditRepo)
	riskHandlers := compliance.NewRiskHandlers(riskRepo)
	vendorHandlers := compliance.NewVendorHandlers(vendorRepo)
	taskHandlers := compliance.NewTaskHandlers(taskRepo)
	commentHandlers := compliance.NewCommentHandlers(commentRepo)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(db, redisClient))

	// API version
	router.GET("/version", versionHandler())

	// Public key set for token verification
	router.GET("/api/auth/jwks", authHandlers.JWKSHandler())

	rateLimited := cfg.Security.RateLimiting.Enabled

	// Sign-in endpoints: stricter rate limit, no credentials required
	authGroup := router.Group("/api/v1/auth")
	if rateLimited {
		authGroup.Use(middleware.RateLimitMiddleware(authLimiter))
	}
	{
		authGroup.POST("/login", authHandlers.LoginHandler())
		authGroup.POST("/register", authHandlers.RegisterHandler())
		authGroup.GET("/sso/start", authHandlers.SSOStartHandler())
		authGroup.GET("/sso/callback", authHandlers.SSOCallbackHandler())
	}

	// User-scoped endpoints: bearer token only, organization header optional
	userGroup := router.Group("/api/v1")
	userGroup.Use(middleware.JWTAuth(guardDeps))
	if rateLimited {
		userGroup.Use(middleware.RateLimitMiddleware(generalLimiter))
	}
	{
		userGroup.GET("/me", authHandlers.MeHandler())
		userGroup.GET("/organizations", userOrgHandlers.ListOrganizationsHandler())
		userGroup.POST("/organizations", userOrgHandlers.CreateOrganizationHandler())
	}

	// Tenant-scoped endpoints: hybrid guard, then role checks per route group
	tenantGroup := router.Group("/api/v1")
	tenantGroup.Use(middleware.HybridAuth(guardDeps))
	if rateLimited {
		tenantGroup.Use(middleware.RateLimitMiddleware(generalLimiter))
	}
	tenantGroup.Use(middleware.AuditMiddleware(auditRepo, auditShipper, cfg.Audit))

	readGroup := tenantGroup.Group("", middleware.RequireRole(memberRepo, middleware.ReaderRoles()...))
	{
		readGroup.GET("/organization", orgHandlers.GetOrganizationHandler())
		readGroup.GET("/risks", riskHandlers.ListRisksHandler())
		readGroup.GET("/risks/:id", riskHandlers.GetRiskHandler())
		readGroup.GET("/vendors", vendorHandlers.ListVendorsHandler())
		readGroup.GET("/vendors/:id", vendorHandlers.GetVendorHandler())
		readGroup.GET("/tasks", taskHandlers.ListTasksHandler())
		readGroup.GET("/tasks/:id", taskHandlers.GetTaskHandler())
		readGroup.GET("/comments", commentHandlers.ListCommentsHandler())
	}

	writeGroup := tenantGroup.Group("", middleware.RequireRole(memberRepo, middleware.WriterRoles()...))
	{
		writeGroup.POST("/risks", riskHandlers.CreateRiskHandler())
		writeGroup.PUT("/risks/:id", riskHandlers.UpdateRiskHandler())
		writeGroup.DELETE("/risks/:id", riskHandlers.DeleteRiskHandler())
		writeGroup.POST("/vendors", vendorHandlers.CreateVendorHandler())
		writeGroup.PUT("/vendors/:id", vendorHandlers.UpdateVendorHandler())
		writeGroup.DELETE("/vendors/:id", vendorHandlers.DeleteVendorHandler())
		writeGroup.POST("/tasks", taskHandlers.CreateTaskHandler())
		writeGroup.PUT("/tasks/:id", taskHandlers.UpdateTaskHandler())
		writeGroup.DELETE("/tasks/:id", taskHandlers.DeleteTaskHandler())
		writeGroup.POST("/comments", commentHandlers.CreateCommentHandler())
		writeGroup.DELETE("/comments/:id", commentHandlers.DeleteCommentHandler())
	}

	// Auditors can read the trail but not administer the organization.
	auditGroup := tenantGroup.Group("", middleware.RequireRole(memberRepo,
		append(middleware.ManagerRoles(), models.RoleAuditor)...))
	{
		auditGroup.GET("/audit-logs", auditLogHandlers.ListAuditLogsHandler())
	}

	manageGroup := tenantGroup.Group("", middleware.RequireRole(memberRepo, middleware.ManagerRoles()...))
	{
		manageGroup.PUT("/organization", orgHandlers.UpdateOrganizationHandler())
		manageGroup.GET("/members", memberHandlers.ListMembersHandler())
		manageGroup.POST("/members", memberHandlers.AddMemberHandler())
		manageGroup.PUT("/members/:user_id", memberHandlers.UpdateMemberHandler())
		manageGroup.DELETE("/members/:user_id", memberHandlers.RemoveMemberHandler())
		manageGroup.GET("/apikeys", apiKeyHandlers.ListAPIKeysHandler())
		manageGroup.POST("/apikeys", apiKeyHandlers.CreateAPIKeyHandler())
		manageGroup.DELETE("/apikeys/:id", apiKeyHandlers.RevokeAPIKeyHandler())
		manageGroup.GET("/integrations", integrationHandlers.ListIntegrationsHandler())
		manageGroup.POST("/integrations", integrationHandlers.CreateIntegrationHandler())
		manageGroup.GET("/integrations/:id", integrationHandlers.GetIntegrationHandler())
		manageGroup.DELETE("/integrations/:id", integrationHandlers.DeleteIntegrationHandler())
	}

	bg := &BackgroundServices{
		expiryNotifier:     expiryNotifier,
		integrationChecker: integrationChecker,
		auditShipper:       auditShipper,
		rateLimiters:       []middleware.Limiter{generalLimiter, authLimiter},
		redisClient:        redisClient,
	}
	return router, bg, nil
}

// newLimiter picks the Redis-backed limiter when a client is available and
// falls back to the per-process token bucket.
func newLimiter(rdb *redis.Client, cfg middleware.RateLimitConfig) middleware.Limiter {
	if rdb != nil {
		return middleware.NewRedisLimiter(rdb, cfg)
	}
	return middleware.NewLocalLimiter(cfg)
}

// newCredentialCipher builds the integration credential cipher from the
// configured master key. The key may be given raw (32 bytes) or hex encoded
// (64 characters). An empty key returns (nil, nil): integrations are then
// disabled rather than the server refusing to start.
func newCredentialCipher(key string) (*crypto.CredentialCipher, error) {
	if key == "" {
		return nil, nil
	}
	raw := []byte(key)
	if len(key) == 64 {
		decoded, err := hex.DecodeString(key)
		if err == nil {
			raw = decoded
		}
	}
	cipher, err := crypto.NewCredentialCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return cipher, nil
}

// @Summary      Health check
// @Description  Returns the health status of the service. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and, when configured, Redis.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks: per-dependency status"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks: per-dependency status"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. Redis is
// optional infrastructure (the rate limiter fails open without it), so an
// unreachable Redis is reported in the checks map but does not gate readiness.
func readinessHandler(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = "unhealthy"
			} else {
				checks["redis"] = "healthy"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging via slog. The output
// format follows the handler configured in telemetry.SetupLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID := c.GetString(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", requestID),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-API-Key, X-Organization-Id")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
