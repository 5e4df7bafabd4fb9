package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyhaven/vault-sync-backend/internal/api/middleware"
	"github.com/keyhaven/vault-sync-backend/internal/models"
	"github.com/keyhaven/vault-sync-backend/internal/service"
)

type OrganizationHandler struct {
	orgService service.OrganizationService
}

func NewOrganizationHandler(orgService service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgService: orgService}
}

// Create creates an organization owned by the caller
func (h *OrganizationHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.OrgData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	org, err := h.orgService.Create(c.Request.Context(), userID, req.Name, req.BillingEmail, req.CollectionName, req.Key)
	if err != nil {
		handleServiceError(c, err, "Failed to create organization")
		return
	}

	c.JSON(http.StatusOK, models.NewOrganizationResponse(org))
}

// Get returns one organization
func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.orgService.Get(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		handleServiceError(c, err, "Failed to fetch organization")
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}

	c.JSON(http.StatusOK, models.NewOrganizationResponse(org))
}

// Update renames an organization or changes its billing email
func (h *OrganizationHandler) Update(c *gin.Context) {
	var req models.OrganizationUpdateData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	org, err := h.orgService.Update(c.Request.Context(), c.Param("orgId"), req.Name, req.BillingEmail)
	if err != nil {
		handleServiceError(c, err, "Failed to update organization")
		return
	}

	c.JSON(http.StatusOK, models.NewOrganizationResponse(org))
}

// Delete removes an organization and everything it owns. The caller must
// re-prove the master password.
func (h *OrganizationHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.PasswordData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.orgService.Delete(c.Request.Context(), c.Param("orgId"), userID, req.MasterPasswordHash); err != nil {
		handleServiceError(c, err, "Failed to delete organization")
		return
	}

	c.Status(http.StatusOK)
}
