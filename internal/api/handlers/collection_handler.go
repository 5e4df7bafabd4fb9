package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyhaven/vault-sync-backend/internal/api/middleware"
	"github.com/keyhaven/vault-sync-backend/internal/models"
	"github.com/keyhaven/vault-sync-backend/internal/service"
)

type CollectionHandler struct {
	collectionService service.CollectionService
}

func NewCollectionHandler(collectionService service.CollectionService) *CollectionHandler {
	return &CollectionHandler{collectionService: collectionService}
}

// ListForUser returns every collection the caller can see across all
// organizations
func (h *CollectionHandler) ListForUser(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	collections, err := h.collectionService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err, "Failed to fetch collections")
		return
	}

	c.JSON(http.StatusOK, models.NewListResponse(models.NewCollectionListResponse(collections)))
}

// ListForOrganization returns all collections of one organization
func (h *CollectionHandler) ListForOrganization(c *gin.Context) {
	collections, err := h.collectionService.ListForOrganization(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		handleServiceError(c, err, "Failed to fetch collections")
		return
	}

	c.JSON(http.StatusOK, models.NewListResponse(models.NewCollectionListResponse(collections)))
}

// Create adds a collection to the organization
func (h *CollectionHandler) Create(c *gin.Context) {
	var req models.NewCollectionData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	collection, err := h.collectionService.Create(c.Request.Context(), c.Param("orgId"), req.Name)
	if err != nil {
		handleServiceError(c, err, "Failed to create collection")
		return
	}

	c.JSON(http.StatusOK, models.NewCollectionResponse(collection))
}

// Rename renames a collection
func (h *CollectionHandler) Rename(c *gin.Context) {
	var req models.NewCollectionData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	collection, err := h.collectionService.Rename(c.Request.Context(), c.Param("orgId"), c.Param("colId"), req.Name)
	if err != nil {
		handleServiceError(c, err, "Failed to update collection")
		return
	}

	c.JSON(http.StatusOK, models.NewCollectionResponse(collection))
}

// Delete removes a collection and its grants
func (h *CollectionHandler) Delete(c *gin.Context) {
	if err := h.collectionService.Delete(c.Request.Context(), c.Param("orgId"), c.Param("colId")); err != nil {
		handleServiceError(c, err, "Failed to delete collection")
		return
	}

	c.Status(http.StatusOK)
}

// GetDetails returns one collection, provided the caller can see it
func (h *CollectionHandler) GetDetails(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	collection, err := h.collectionService.GetDetails(c.Request.Context(), c.Param("orgId"), c.Param("colId"), userID)
	if err != nil {
		handleServiceError(c, err, "Failed to fetch collection")
		return
	}

	c.JSON(http.StatusOK, models.NewCollectionResponse(collection))
}

// ListUsers returns the memberships granted access to a collection
func (h *CollectionHandler) ListUsers(c *gin.Context) {
	details, err := h.collectionService.ListUsers(c.Request.Context(), c.Param("orgId"), c.Param("colId"))
	if err != nil {
		handleServiceError(c, err, "Failed to fetch collection users")
		return
	}

	c.JSON(http.StatusOK, models.NewListResponse(models.NewCollectionUserListResponse(details)))
}

// RemoveUser revokes one membership's explicit grant on a collection
func (h *CollectionHandler) RemoveUser(c *gin.Context) {
	err := h.collectionService.RemoveUser(c.Request.Context(), c.Param("orgId"), c.Param("colId"), c.Param("orgUserId"))
	if err != nil {
		handleServiceError(c, err, "Failed to remove user from collection")
		return
	}

	c.Status(http.StatusOK)
}
