// auth.go implements HTTP handlers for password login, registration, SSO
// sign-in, and the published JWKS document.
package accounts

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/compai/comp-api/internal/auth"
	"github.com/compai/comp-api/internal/auth/sso"
	"github.com/compai/comp-api/internal/config"
	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
)

// ssoStateTTL bounds how long an OAuth state parameter stays valid.
const ssoStateTTL = 10 * time.Minute

// AuthHandlers handles authentication-related endpoints
type AuthHandlers struct {
	cfg      *config.Config
	userRepo *repositories.UserRepository
	orgRepo  *repositories.OrganizationRepository
	issuer   *auth.Issuer
	sso      *sso.Provider

	mu           sync.Mutex
	sessionStore map[string]*SessionState // In-memory; a multi-replica deployment needs Redis here
}

// SessionState represents OAuth state during the SSO authentication flow
type SessionState struct {
	State     string
	CreatedAt time.Time
}

// NewAuthHandlers creates a new AuthHandlers instance. ssoProvider may be nil
// when SSO is not configured; the SSO endpoints then answer 400.
func NewAuthHandlers(cfg *config.Config, userRepo *repositories.UserRepository, orgRepo *repositories.OrganizationRepository, issuer *auth.Issuer, ssoProvider *sso.Provider) *AuthHandlers {
	return &AuthHandlers{
		cfg:          cfg,
		userRepo:     userRepo,
		orgRepo:      orgRepo,
		issuer:       issuer,
		sso:          ssoProvider,
		sessionStore: make(map[string]*SessionState),
	}
}

// generateState generates a random state string for the OAuth flow
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// LoginRequest represents a password login attempt
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Password login
// @Description  Authenticate with email and password and receive a bearer token.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Email and password"
// @Success      200  {object}  map[string]interface{}  "token: signed JWT, user: models.User"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      401  {object}  map[string]interface{}  "Invalid email or password"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates a user by email and password
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		user, err := h.userRepo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to look up user",
			})
			return
		}

		// SSO-provisioned users have no password hash; the comparison below
		// fails for them the same way as for a wrong password, so the
		// response never reveals which accounts exist or how they sign in.
		if user == nil || user.PasswordHash == nil ||
			bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid email or password",
			})
			return
		}

		token, err := h.issuer.IssueToken(user.ID, user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to issue token",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// RegisterRequest represents a new account registration
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// @Summary      Register account
// @Description  Create a new user account with email and password.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  RegisterRequest  true  "Name, email, and password (min 8 chars)"
// @Success      201  {object}  map[string]interface{}  "token: signed JWT, user: models.User"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      409  {object}  map[string]interface{}  "Email already registered"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/register [post]
// RegisterHandler creates a new user account
// POST /api/v1/auth/register
func (h *AuthHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		existing, err := h.userRepo.GetByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check existing user",
			})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Email already registered",
			})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to hash password",
			})
			return
		}

		hashStr := string(hash)
		user := &models.User{
			Email:        email,
			Name:         req.Name,
			PasswordHash: &hashStr,
		}
		if err := h.userRepo.Create(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create user",
			})
			return
		}

		token, err := h.issuer.IssueToken(user.ID, user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to issue token",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// @Summary      JSON Web Key Set
// @Description  Public keys used to verify tokens issued by this service.
// @Tags         Authentication
// @Produce      json
// @Success      200  {object}  auth.JWKSDocument
// @Router       /api/auth/jwks [get]
// JWKSHandler serves the token verification keys
// GET /api/auth/jwks
func (h *AuthHandlers) JWKSHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.issuer.JWKS())
	}
}

// @Summary      Start SSO sign-in
// @Description  Redirect the browser to the configured identity provider.
// @Tags         Authentication
// @Produce      json
// @Success      302  {object}  string  "Redirects to the identity provider"
// @Failure      400  {object}  map[string]interface{}  "SSO is not configured"
// @Failure      500  {object}  map[string]interface{}  "Failed to generate state"
// @Router       /api/v1/auth/sso/start [get]
// SSOStartHandler begins the SSO login flow
// GET /api/v1/auth/sso/start
func (h *AuthHandlers) SSOStartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.sso == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "SSO is not configured",
			})
			return
		}

		state, err := generateState()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate state",
			})
			return
		}

		h.mu.Lock()
		h.sessionStore[state] = &SessionState{State: state, CreatedAt: time.Now()}
		h.mu.Unlock()

		c.Redirect(http.StatusFound, h.sso.AuthURL(state))
	}
}

// @Summary      SSO callback
// @Description  Exchanges the provider's authorization code for a Comp bearer token. Users are provisioned on first sign-in.
// @Tags         Authentication
// @Produce      json
// @Param        code   query  string  true  "Authorization code"
// @Param        state  query  string  true  "State parameter issued at sso/start"
// @Success      200  {object}  map[string]interface{}  "token: signed JWT, user: models.User"
// @Failure      400  {object}  map[string]interface{}  "Invalid or expired state"
// @Failure      401  {object}  map[string]interface{}  "Code exchange failed"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/sso/callback [get]
// SSOCallbackHandler completes the SSO login flow
// GET /api/v1/auth/sso/callback?code=...&state=...
func (h *AuthHandlers) SSOCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.sso == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "SSO is not configured",
			})
			return
		}

		state := c.Query("state")
		code := c.Query("code")
		if state == "" || code == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Missing code or state parameter",
			})
			return
		}

		h.mu.Lock()
		session, ok := h.sessionStore[state]
		if ok {
			delete(h.sessionStore, state)
		}
		h.pruneSessionsLocked()
		h.mu.Unlock()

		if !ok || time.Since(session.CreatedAt) > ssoStateTTL {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid or expired state",
			})
			return
		}

		info, err := h.sso.Exchange(c.Request.Context(), code)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Failed to exchange authorization code",
			})
			return
		}

		user, err := h.userRepo.UpsertSSOUser(c.Request.Context(), info.Subject, strings.ToLower(info.Email), info.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to provision user",
			})
			return
		}

		token, err := h.issuer.IssueToken(user.ID, user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to issue token",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// pruneSessionsLocked drops expired states. Caller holds h.mu.
func (h *AuthHandlers) pruneSessionsLocked() {
	for state, session := range h.sessionStore {
		if time.Since(session.CreatedAt) > ssoStateTTL {
			delete(h.sessionStore, state)
		}
	}
}

// @Summary      Current user
// @Description  Returns the authenticated user and the organizations they belong to.
// @Tags         Authentication
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user: models.User, organizations: []models.Organization"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/me [get]
// MeHandler returns the calling user's profile and memberships
// GET /api/v1/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")

		user, err := h.userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		orgs, err := h.orgRepo.ListForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve organizations",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":          user,
			"organizations": orgs,
		})
	}
}
