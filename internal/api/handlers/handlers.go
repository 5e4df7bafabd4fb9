package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyhaven/vault-sync-backend/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Account      *AccountHandler
	Organization *OrganizationHandler
	Collection   *CollectionHandler
	Membership   *MembershipHandler
	Cipher       *CipherHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Account:      &AccountHandler{accountService: services.Account},
		Organization: &OrganizationHandler{orgService: services.Organization},
		Collection:   &CollectionHandler{collectionService: services.Collection},
		Membership: &MembershipHandler{
			membershipService: services.Membership,
			invitationService: services.Invitation,
		},
		Cipher: &CipherHandler{
			cipherService:     services.Cipher,
			importService:     services.Import,
			membershipService: services.Membership,
		},
	}
}

// handleServiceError maps service sentinel errors to HTTP responses. The
// fallback message is used for unexpected errors so internals never leak.
func handleServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrNotMember):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrImportRole):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrLastOwner),
		errors.Is(err, service.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidKey),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrEmailNotFound),
		errors.Is(err, service.ErrNotAssigned),
		errors.Is(err, service.ErrOrgMismatch),
		errors.Is(err, service.ErrImportAssign),
		errors.Is(err, service.ErrNotImplemented):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("❌ [Handler] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
