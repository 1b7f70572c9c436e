// apikeys.go implements handlers for organization API key management. The
// plaintext key appears exactly once, in the creation response; only the
// salted hash is stored.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/auth"
	"github.com/compai/comp-api/internal/config"
	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
)

// APIKeyHandlers handles API key management endpoints
type APIKeyHandlers struct {
	cfg        *config.APIKeyConfig
	apiKeyRepo *repositories.APIKeyRepository
}

// NewAPIKeyHandlers creates a new APIKeyHandlers instance
func NewAPIKeyHandlers(cfg *config.APIKeyConfig, apiKeyRepo *repositories.APIKeyRepository) *APIKeyHandlers {
	return &APIKeyHandlers{
		cfg:        cfg,
		apiKeyRepo: apiKeyRepo,
	}
}

// @Summary      List API keys
// @Description  List all API keys of the scoped organization, newest first. Hashes are never returned.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "api_keys: []models.APIKey"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apikeys [get]
// ListAPIKeysHandler lists the organization's API keys
// GET /api/v1/apikeys
func (h *APIKeyHandlers) ListAPIKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		keys, err := h.apiKeyRepo.ListByOrganization(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list API keys",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"api_keys": keys,
		})
	}
}

// CreateAPIKeyRequest represents the request to create an API key
type CreateAPIKeyRequest struct {
	Name          string `json:"name" binding:"required"`
	ExpiresInDays *int   `json:"expiresInDays"`
}

// @Summary      Create API key
// @Description  Create a new API key for the scoped organization. The plaintext key is returned once and cannot be retrieved again.
// @Tags         API Keys
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateAPIKeyRequest  true  "Key name and optional expiry in days"
// @Success      201  {object}  map[string]interface{}  "api_key: models.APIKey, key: plaintext key"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or expiry"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apikeys [post]
// CreateAPIKeyHandler creates an API key and returns its plaintext once
// POST /api/v1/apikeys
func (h *APIKeyHandlers) CreateAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		var req CreateAPIKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		var expiresAt *time.Time
		if req.ExpiresInDays != nil {
			if *req.ExpiresInDays < 1 {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "expiresInDays must be at least 1",
				})
				return
			}
			t := time.Now().UTC().AddDate(0, 0, *req.ExpiresInDays)
			expiresAt = &t
		}

		plaintext, hash, salt, err := auth.GenerateKey(h.cfg.Prefix)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate API key",
			})
			return
		}

		key := &models.APIKey{
			OrganizationID: orgID,
			Name:           req.Name,
			KeyHash:        hash,
			Salt:           &salt,
			IsActive:       true,
			ExpiresAt:      expiresAt,
		}
		if err := h.apiKeyRepo.Create(c.Request.Context(), key); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create API key",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"api_key": key,
			"key":     plaintext,
		})
	}
}

// @Summary      Revoke API key
// @Description  Deactivate an API key. It stops authenticating immediately; the row is kept for the audit trail.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "API key ID"
// @Success      200  {object}  map[string]interface{}  "message: API key revoked"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "API key not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apikeys/{id} [delete]
// RevokeAPIKeyHandler revokes an API key
// DELETE /api/v1/apikeys/:id
func (h *APIKeyHandlers) RevokeAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		if err := h.apiKeyRepo.Revoke(c.Request.Context(), orgID, c.Param("id")); err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "API key not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to revoke API key",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "API key revoked",
		})
	}
}
