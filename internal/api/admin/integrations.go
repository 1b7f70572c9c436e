// integrations.go implements handlers for external provider integrations.
// Credentials are sealed with the credential cipher before they reach the
// database and are never returned by any endpoint.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/crypto"
	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
)

// IntegrationHandlers handles integration management endpoints
type IntegrationHandlers struct {
	integrationRepo *repositories.IntegrationRepository
	cipher          *crypto.CredentialCipher
}

// NewIntegrationHandlers creates a new IntegrationHandlers instance. cipher
// may be nil when no encryption key is configured; creation then answers 503.
func NewIntegrationHandlers(integrationRepo *repositories.IntegrationRepository, cipher *crypto.CredentialCipher) *IntegrationHandlers {
	return &IntegrationHandlers{
		integrationRepo: integrationRepo,
		cipher:          cipher,
	}
}

// @Summary      List integrations
// @Description  List the scoped organization's integrations with their latest connectivity check results.
// @Tags         Integrations
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "integrations: []models.Integration"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/integrations [get]
// ListIntegrationsHandler lists the organization's integrations
// GET /api/v1/integrations
func (h *IntegrationHandlers) ListIntegrationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		integrations, err := h.integrationRepo.ListByOrganization(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list integrations",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"integrations": integrations,
		})
	}
}

// @Summary      Get integration
// @Tags         Integrations
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Integration ID"
// @Success      200  {object}  map[string]interface{}  "integration: models.Integration"
// @Failure      404  {object}  map[string]interface{}  "Integration not found"
// @Router       /api/v1/integrations/{id} [get]
// GetIntegrationHandler retrieves a single integration
// GET /api/v1/integrations/:id
func (h *IntegrationHandlers) GetIntegrationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		integration, err := h.integrationRepo.GetByID(c.Request.Context(), orgID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve integration",
			})
			return
		}
		if integration == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Integration not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"integration": integration,
		})
	}
}

// CreateIntegrationRequest represents the request to create an integration.
// Credentials must include an "endpoint" key; the connectivity check probes it.
type CreateIntegrationRequest struct {
	Provider    string            `json:"provider" binding:"required"`
	Name        string            `json:"name" binding:"required"`
	Credentials map[string]string `json:"credentials" binding:"required"`
}

// @Summary      Create integration
// @Description  Connect an external provider. Credentials are encrypted at rest and never returned.
// @Tags         Integrations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateIntegrationRequest  true  "Provider, name, and credentials (must include endpoint)"
// @Success      201  {object}  map[string]interface{}  "integration: models.Integration"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or credentials"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Failure      503  {object}  map[string]interface{}  "Credential encryption not configured"
// @Router       /api/v1/integrations [post]
// CreateIntegrationHandler creates an integration with sealed credentials
// POST /api/v1/integrations
func (h *IntegrationHandlers) CreateIntegrationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		if h.cipher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Credential encryption is not configured",
			})
			return
		}

		var req CreateIntegrationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if req.Credentials["endpoint"] == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Credentials must include an endpoint",
			})
			return
		}

		plaintext, err := json.Marshal(req.Credentials)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		sealed, err := h.cipher.Seal(string(plaintext))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encrypt credentials",
			})
			return
		}

		integration := &models.Integration{
			OrganizationID:       orgID,
			Provider:             req.Provider,
			Name:                 req.Name,
			EncryptedCredentials: sealed,
			IsActive:             true,
		}
		if err := h.integrationRepo.Create(c.Request.Context(), integration); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create integration",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"integration": integration,
		})
	}
}

// @Summary      Delete integration
// @Description  Remove an integration and its sealed credentials.
// @Tags         Integrations
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Integration ID"
// @Success      200  {object}  map[string]interface{}  "message: Integration deleted"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Integration not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/integrations/{id} [delete]
// DeleteIntegrationHandler deletes an integration
// DELETE /api/v1/integrations/:id
func (h *IntegrationHandlers) DeleteIntegrationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		if err := h.integrationRepo.Delete(c.Request.Context(), orgID, c.Param("id")); err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Integration not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete integration",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Integration deleted",
		})
	}
}
