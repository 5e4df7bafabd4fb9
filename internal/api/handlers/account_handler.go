package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyhaven/vault-sync-backend/internal/api/middleware"
	"github.com/keyhaven/vault-sync-backend/internal/service"
)

// AccountHandler exposes the caller's account revision marker
type AccountHandler struct {
	accountService service.AccountService
}

func NewAccountHandler(accountService service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// RevisionDate returns the caller's revision marker as epoch milliseconds.
// Clients compare it against their last sync to decide whether to resync.
func (h *AccountHandler) RevisionDate(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	revision, err := h.accountService.GetRevision(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err, "Failed to get revision date")
		return
	}

	c.JSON(http.StatusOK, revision.UnixMilli())
}
