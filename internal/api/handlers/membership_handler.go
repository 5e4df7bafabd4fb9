package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyhaven/vault-sync-backend/internal/api/middleware"
	"github.com/keyhaven/vault-sync-backend/internal/models"
	"github.com/keyhaven/vault-sync-backend/internal/service"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

type MembershipHandler struct {
	membershipService service.MembershipService
	invitationService service.InvitationService
}

func NewMembershipHandler(membershipService service.MembershipService, invitationService service.InvitationService) *MembershipHandler {
	return &MembershipHandler{
		membershipService: membershipService,
		invitationService: invitationService,
	}
}

// callerRole reads the caller's role stored by the RequireOrgRole middleware.
func callerRole(c *gin.Context) (types.MembershipRole, bool) {
	m := middleware.GetMembership(c)
	if m == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this organization"})
		return 0, false
	}
	return m.Role, true
}

func grantInputs(selections []models.SelectionReadOnly) []service.CollectionGrantInput {
	grants := make([]service.CollectionGrantInput, 0, len(selections))
	for _, s := range selections {
		grants = append(grants, service.CollectionGrantInput{ID: s.Id, ReadOnly: s.ReadOnly})
	}
	return grants
}

// List returns all memberships of an organization
func (h *MembershipHandler) List(c *gin.Context) {
	members, err := h.membershipService.ListByOrganization(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		handleServiceError(c, err, "Failed to fetch organization users")
		return
	}

	c.JSON(http.StatusOK, models.NewListResponse(models.NewMemberListResponse(members)))
}

// Get returns one membership with its collection grants
func (h *MembershipHandler) Get(c *gin.Context) {
	membership, grants, err := h.membershipService.Get(c.Request.Context(), c.Param("orgId"), c.Param("orgUserId"))
	if err != nil {
		handleServiceError(c, err, "Failed to fetch organization user")
		return
	}

	c.JSON(http.StatusOK, models.NewMemberDetailResponse(membership, grants))
}

// Invite invites a batch of email addresses into the organization
func (h *MembershipHandler) Invite(c *gin.Context) {
	role, ok := callerRole(c)
	if !ok {
		return
	}

	var req models.InviteData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newRole, err := req.Type.Role()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidRole.Error()})
		return
	}

	accessAll := req.AccessAll != nil && *req.AccessAll
	err = h.invitationService.Invite(c.Request.Context(), c.Param("orgId"), role, req.Emails, newRole, accessAll, grantInputs(req.Collections))
	if err != nil {
		handleServiceError(c, err, "Failed to invite users")
		return
	}

	c.Status(http.StatusOK)
}

// Confirm moves an accepted membership to confirmed
func (h *MembershipHandler) Confirm(c *gin.Context) {
	role, ok := callerRole(c)
	if !ok {
		return
	}

	var req models.ConfirmData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.invitationService.Confirm(c.Request.Context(), c.Param("orgId"), c.Param("orgUserId"), role, req.Key)
	if err != nil {
		handleServiceError(c, err, "Failed to confirm user")
		return
	}

	c.Status(http.StatusOK)
}

// Reinvite is not supported; kept for client compatibility
func (h *MembershipHandler) Reinvite(c *gin.Context) {
	err := h.invitationService.Reinvite(c.Request.Context(), c.Param("orgId"), c.Param("orgUserId"))
	handleServiceError(c, err, "Failed to reinvite user")
}

// Edit changes a membership's role, accessAll flag and collection grants
func (h *MembershipHandler) Edit(c *gin.Context) {
	role, ok := callerRole(c)
	if !ok {
		return
	}

	var req models.EditUserData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newRole, err := req.Type.Role()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidRole.Error()})
		return
	}

	accessAll := req.AccessAll != nil && *req.AccessAll
	err = h.membershipService.Edit(c.Request.Context(), c.Param("orgId"), c.Param("orgUserId"), role, newRole, accessAll, grantInputs(req.Collections))
	if err != nil {
		handleServiceError(c, err, "Failed to edit organization user")
		return
	}

	c.Status(http.StatusOK)
}

// Delete removes a membership from the organization
func (h *MembershipHandler) Delete(c *gin.Context) {
	role, ok := callerRole(c)
	if !ok {
		return
	}

	err := h.membershipService.Delete(c.Request.Context(), c.Param("orgId"), c.Param("orgUserId"), role)
	if err != nil {
		handleServiceError(c, err, "Failed to delete organization user")
		return
	}

	c.Status(http.StatusOK)
}

// Leave removes the caller's own membership
func (h *MembershipHandler) Leave(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.membershipService.Leave(c.Request.Context(), c.Param("orgId"), userID); err != nil {
		handleServiceError(c, err, "Failed to leave organization")
		return
	}

	c.Status(http.StatusOK)
}
