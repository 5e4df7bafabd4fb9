package models

import (
	"encoding/json"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
)

// CipherData is one vault item in an import payload. The Data blob is
// client-side encrypted and stored verbatim.
type CipherData struct {
	Type int             `json:"Type"`
	Name string          `json:"Name" binding:"required"`
	Data json.RawMessage `json:"Data"`
}

// RelationsData links a cipher to a collection by position: Key indexes the
// Ciphers array, Value the Collections array.
type RelationsData struct {
	Key   int `json:"Key"`
	Value int `json:"Value"`
}

// ImportData is the bulk-import request body.
type ImportData struct {
	Ciphers                 []CipherData        `json:"Ciphers"`
	Collections             []NewCollectionData `json:"Collections"`
	CollectionRelationships []RelationsData     `json:"CollectionRelationships"`
}

// CipherResponse is the JSON shape of an organization cipher.
type CipherResponse struct {
	Id             string          `json:"Id"`
	OrganizationId string          `json:"OrganizationId"`
	Type           int             `json:"Type"`
	Name           string          `json:"Name"`
	Data           json.RawMessage `json:"Data"`
	RevisionDate   string          `json:"RevisionDate"`
	Object         string          `json:"Object"`
}

func NewCipherResponse(c *repository.Cipher) CipherResponse {
	data := json.RawMessage(c.Data)
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return CipherResponse{
		Id:             c.ID,
		OrganizationId: c.OrganizationID,
		Type:           c.Type,
		Name:           c.Name,
		Data:           data,
		RevisionDate:   c.RevisionDate.UTC().Format("2006-01-02T15:04:05.000000Z"),
		Object:         "cipherDetails",
	}
}

func NewCipherListResponse(ciphers []*repository.Cipher) []CipherResponse {
	out := make([]CipherResponse, 0, len(ciphers))
	for _, c := range ciphers {
		out = append(out, NewCipherResponse(c))
	}
	return out
}
