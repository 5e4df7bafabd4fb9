package models

import "github.com/keyhaven/vault-sync-backend/internal/repository"

// NewCollectionData is the create and rename request body.
type NewCollectionData struct {
	Name string `json:"Name" binding:"required"`
}

// SelectionReadOnly identifies a collection a member is granted, with the
// grant's read-only flag.
type SelectionReadOnly struct {
	Id       string `json:"Id" binding:"required"`
	ReadOnly bool   `json:"ReadOnly"`
}

// CollectionResponse is the JSON shape of a collection.
type CollectionResponse struct {
	Id             string `json:"Id"`
	OrganizationId string `json:"OrganizationId"`
	Name           string `json:"Name"`
	Object         string `json:"Object"`
}

func NewCollectionResponse(c *repository.Collection) CollectionResponse {
	return CollectionResponse{
		Id:             c.ID,
		OrganizationId: c.OrganizationID,
		Name:           c.Name,
		Object:         "collection",
	}
}

func NewCollectionListResponse(collections []*repository.Collection) []CollectionResponse {
	out := make([]CollectionResponse, 0, len(collections))
	for _, c := range collections {
		out = append(out, NewCollectionResponse(c))
	}
	return out
}
