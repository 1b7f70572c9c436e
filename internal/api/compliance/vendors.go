// vendors.go implements handlers for the vendor risk management register.
package compliance

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compai/comp-api/internal/db/models"
	"github.com/compai/comp-api/internal/db/repositories"
)

func validVendorStatus(s string) bool {
	switch s {
	case models.VendorStatusNotAssessed, models.VendorStatusInProgress, models.VendorStatusAssessed, models.VendorStatusRejected:
		return true
	}
	return false
}

// VendorHandlers handles vendor register endpoints
type VendorHandlers struct {
	vendorRepo *repositories.VendorRepository
}

// NewVendorHandlers creates a new VendorHandlers instance
func NewVendorHandlers(vendorRepo *repositories.VendorRepository) *VendorHandlers {
	return &VendorHandlers{vendorRepo: vendorRepo}
}

// @Summary      List vendors
// @Description  List all vendors tracked by the scoped organization.
// @Tags         Vendors
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "vendors: []models.Vendor"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/vendors [get]
// ListVendorsHandler lists the organization's vendors
// GET /api/v1/vendors
func (h *VendorHandlers) ListVendorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		vendors, err := h.vendorRepo.ListByOrganization(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list vendors",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"vendors": vendors,
		})
	}
}

// @Summary      Get vendor
// @Tags         Vendors
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Vendor ID"
// @Success      200  {object}  map[string]interface{}  "vendor: models.Vendor"
// @Failure      404  {object}  map[string]interface{}  "Vendor not found"
// @Router       /api/v1/vendors/{id} [get]
// GetVendorHandler retrieves a single vendor
// GET /api/v1/vendors/:id
func (h *VendorHandlers) GetVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		vendor, err := h.vendorRepo.GetByID(c.Request.Context(), orgID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve vendor",
			})
			return
		}
		if vendor == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Vendor not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"vendor": vendor,
		})
	}
}

// CreateVendorRequest represents the request to create a vendor
type CreateVendorRequest struct {
	Name     string  `json:"name" binding:"required"`
	Website  string  `json:"website"`
	Category string  `json:"category"`
	OwnerID  *string `json:"ownerId"`
}

// @Summary      Create vendor
// @Description  Add a vendor to the register. New vendors start not_assessed.
// @Tags         Vendors
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateVendorRequest  true  "Vendor fields"
// @Success      201  {object}  map[string]interface{}  "vendor: models.Vendor"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/vendors [post]
// CreateVendorHandler creates a vendor
// POST /api/v1/vendors
func (h *VendorHandlers) CreateVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		var req CreateVendorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		vendor := &models.Vendor{
			OrganizationID: orgID,
			Name:           req.Name,
			Website:        req.Website,
			Category:       req.Category,
			Status:         models.VendorStatusNotAssessed,
			OwnerID:        req.OwnerID,
		}
		if err := h.vendorRepo.Create(c.Request.Context(), vendor); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create vendor",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"vendor": vendor,
		})
	}
}

// UpdateVendorRequest represents a partial vendor update
type UpdateVendorRequest struct {
	Name     *string `json:"name"`
	Website  *string `json:"website"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
	OwnerID  *string `json:"ownerId"`
}

// @Summary      Update vendor
// @Description  Update fields of an existing vendor. Omitted fields are unchanged.
// @Tags         Vendors
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "Vendor ID"
// @Param        body  body  UpdateVendorRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}  "vendor: models.Vendor"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body or status"
// @Failure      404  {object}  map[string]interface{}  "Vendor not found"
// @Router       /api/v1/vendors/{id} [put]
// UpdateVendorHandler updates a vendor
// PUT /api/v1/vendors/:id
func (h *VendorHandlers) UpdateVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		var req UpdateVendorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		vendor, err := h.vendorRepo.GetByID(c.Request.Context(), orgID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve vendor",
			})
			return
		}
		if vendor == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Vendor not found",
			})
			return
		}

		if req.Name != nil {
			vendor.Name = *req.Name
		}
		if req.Website != nil {
			vendor.Website = *req.Website
		}
		if req.Category != nil {
			vendor.Category = *req.Category
		}
		if req.Status != nil {
			if !validVendorStatus(*req.Status) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid vendor status",
				})
				return
			}
			vendor.Status = *req.Status
		}
		if req.OwnerID != nil {
			vendor.OwnerID = req.OwnerID
		}

		if err := h.vendorRepo.Update(c.Request.Context(), vendor); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update vendor",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"vendor": vendor,
		})
	}
}

// @Summary      Delete vendor
// @Tags         Vendors
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Vendor ID"
// @Success      200  {object}  map[string]interface{}  "message: Vendor deleted"
// @Failure      404  {object}  map[string]interface{}  "Vendor not found"
// @Router       /api/v1/vendors/{id} [delete]
// DeleteVendorHandler deletes a vendor
// DELETE /api/v1/vendors/:id
func (h *VendorHandlers) DeleteVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString("organization_id")

		if err := h.vendorRepo.Delete(c.Request.Context(), orgID, c.Param("id")); err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Vendor not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete vendor",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Vendor deleted",
		})
	}
}
