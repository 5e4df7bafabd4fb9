package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyhaven/vault-sync-backend/internal/api/middleware"
	"github.com/keyhaven/vault-sync-backend/internal/models"
	"github.com/keyhaven/vault-sync-backend/internal/service"
)

type CipherHandler struct {
	cipherService     service.CipherService
	importService     service.ImportService
	membershipService service.MembershipService
}

func NewCipherHandler(cipherService service.CipherService, importService service.ImportService, membershipService service.MembershipService) *CipherHandler {
	return &CipherHandler{
		cipherService:     cipherService,
		importService:     importService,
		membershipService: membershipService,
	}
}

// OrganizationDetails lists the ciphers of the organization named in the
// organizationId query parameter. The caller must be a member.
func (h *CipherHandler) OrganizationDetails(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	orgID := c.Query("organizationId")
	if orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organizationId query parameter required"})
		return
	}

	membership, err := h.membershipService.GetByUserAndOrg(c.Request.Context(), userID, orgID)
	if err != nil {
		handleServiceError(c, err, "Failed to fetch ciphers")
		return
	}
	if membership == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this organization"})
		return
	}

	ciphers, err := h.cipherService.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		handleServiceError(c, err, "Failed to fetch ciphers")
		return
	}

	c.JSON(http.StatusOK, models.NewListResponse(models.NewCipherListResponse(ciphers)))
}

// Import bulk-creates collections and ciphers and links them
func (h *CipherHandler) Import(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	orgID := c.Query("organizationId")
	if orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organizationId query parameter required"})
		return
	}

	var req models.ImportData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	collectionNames := make([]string, 0, len(req.Collections))
	for _, col := range req.Collections {
		collectionNames = append(collectionNames, col.Name)
	}

	cipherInputs := make([]service.CipherInput, 0, len(req.Ciphers))
	for _, item := range req.Ciphers {
		cipherInputs = append(cipherInputs, service.CipherInput{
			Type: item.Type,
			Name: item.Name,
			Data: string(item.Data),
		})
	}

	relations := make([]service.ImportRelation, 0, len(req.CollectionRelationships))
	for _, rel := range req.CollectionRelationships {
		relations = append(relations, service.ImportRelation{
			CipherIndex:     rel.Key,
			CollectionIndex: rel.Value,
		})
	}

	err := h.importService.Import(c.Request.Context(), orgID, userID, collectionNames, cipherInputs, relations)
	if err != nil {
		handleServiceError(c, err, "Failed to import")
		return
	}

	c.Status(http.StatusOK)
}
