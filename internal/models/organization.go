// Package models defines the request and response shapes of the REST API.
// Field names are PascalCase on the wire for compatibility with existing
// sync clients.
package models

import (
	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// OrgData is the create-organization request body.
type OrgData struct {
	Name           string               `json:"Name" binding:"required"`
	BillingEmail   string               `json:"BillingEmail"`
	CollectionName string               `json:"CollectionName"`
	Key            string               `json:"Key" binding:"required"`
	PlanType       types.NumberOrString `json:"PlanType"`
}

// OrganizationUpdateData is the update-organization request body.
type OrganizationUpdateData struct {
	Name         string `json:"Name" binding:"required"`
	BillingEmail string `json:"BillingEmail"`
}

// PasswordData carries the master password hash for destructive operations.
type PasswordData struct {
	MasterPasswordHash string `json:"MasterPasswordHash" binding:"required"`
}

// OrganizationResponse is the JSON shape of an organization. The plan fields
// are fixed: every organization runs on the same free plan.
type OrganizationResponse struct {
	Id             string `json:"Id"`
	Name           string `json:"Name"`
	BillingEmail   string `json:"BillingEmail"`
	Seats          int    `json:"Seats"`
	MaxCollections int    `json:"MaxCollections"`
	Plan           string `json:"Plan"`
	PlanType       int    `json:"PlanType"`
	UseGroups      bool   `json:"UseGroups"`
	UseDirectory   bool   `json:"UseDirectory"`
	UseTotp        bool   `json:"UseTotp"`
	Object         string `json:"Object"`
}

func NewOrganizationResponse(org *repository.Organization) OrganizationResponse {
	return OrganizationResponse{
		Id:             org.ID,
		Name:           org.Name,
		BillingEmail:   org.BillingEmail,
		Seats:          10,
		MaxCollections: 10,
		Plan:           "Free",
		PlanType:       0,
		UseTotp:        true,
		Object:         "organization",
	}
}

// ListResponse is the envelope every list endpoint returns.
type ListResponse struct {
	Data              interface{} `json:"Data"`
	Object            string      `json:"Object"`
	ContinuationToken interface{} `json:"ContinuationToken"`
}

func NewListResponse(data interface{}) ListResponse {
	return ListResponse{Data: data, Object: "list", ContinuationToken: nil}
}
