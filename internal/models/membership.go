package models

import (
	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/service"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// RoleField is a role on the wire: either the numeric code or its name,
// as a JSON number or string.
type RoleField struct {
	types.NumberOrString
}

func (f RoleField) Role() (types.MembershipRole, error) {
	return types.ParseMembershipRole(f.String())
}

// InviteData is the invite request body. Type carries the role's wire code
// and may arrive as a number or a string.
type InviteData struct {
	Emails      []string            `json:"Emails" binding:"required"`
	Type        RoleField           `json:"Type"`
	Collections []SelectionReadOnly `json:"Collections"`
	AccessAll   *bool               `json:"AccessAll"`
}

// ConfirmData carries the organization key wrapped for the confirmed member.
type ConfirmData struct {
	Key string `json:"Key"`
}

// EditUserData is the edit-membership request body.
type EditUserData struct {
	Type        RoleField           `json:"Type"`
	Collections []SelectionReadOnly `json:"Collections"`
	AccessAll   *bool               `json:"AccessAll"`
}

// MemberResponse is the JSON shape of a membership in member lists.
type MemberResponse struct {
	Id        string `json:"Id"`
	UserId    string `json:"UserId"`
	Name      string `json:"Name"`
	Email     string `json:"Email"`
	Type      int    `json:"Type"`
	Status    int    `json:"Status"`
	AccessAll bool   `json:"AccessAll"`
	Object    string `json:"Object"`
}

func NewMemberResponse(m *repository.Membership) MemberResponse {
	out := MemberResponse{
		Id:        m.ID,
		UserId:    m.UserID,
		Type:      m.Role.WireCode(),
		Status:    int(m.Status),
		AccessAll: m.AccessAll,
		Object:    "organizationUserUserDetails",
	}
	if m.User != nil {
		out.Name = m.User.Name
		out.Email = m.User.Email
	}
	return out
}

func NewMemberListResponse(members []*repository.Membership) []MemberResponse {
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, NewMemberResponse(m))
	}
	return out
}

// MemberDetailResponse is the single-membership shape, including the grants.
type MemberDetailResponse struct {
	Id          string              `json:"Id"`
	UserId      string              `json:"UserId"`
	Type        int                 `json:"Type"`
	Status      int                 `json:"Status"`
	AccessAll   bool                `json:"AccessAll"`
	Collections []SelectionReadOnly `json:"Collections"`
	Object      string              `json:"Object"`
}

func NewMemberDetailResponse(m *repository.Membership, grants []*repository.CollectionGrant) MemberDetailResponse {
	selections := make([]SelectionReadOnly, 0, len(grants))
	for _, g := range grants {
		selections = append(selections, SelectionReadOnly{Id: g.CollectionID, ReadOnly: g.ReadOnly})
	}
	return MemberDetailResponse{
		Id:          m.ID,
		UserId:      m.UserID,
		Type:        m.Role.WireCode(),
		Status:      int(m.Status),
		AccessAll:   m.AccessAll,
		Collections: selections,
		Object:      "organizationUserDetails",
	}
}

// CollectionUserResponse is the JSON shape of one row in a collection's user
// list.
type CollectionUserResponse struct {
	OrganizationUserId string `json:"OrganizationUserId"`
	AccessAll          bool   `json:"AccessAll"`
	ReadOnly           bool   `json:"ReadOnly"`
	Object             string `json:"Object"`
}

func NewCollectionUserListResponse(details []*service.CollectionUserDetail) []CollectionUserResponse {
	out := make([]CollectionUserResponse, 0, len(details))
	for _, d := range details {
		out = append(out, CollectionUserResponse{
			OrganizationUserId: d.Membership.ID,
			AccessAll:          d.Membership.AccessAll,
			ReadOnly:           d.ReadOnly,
			Object:             "collectionUser",
		})
	}
	return out
}
