package service

import (
	"context"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
)

// CipherInput is the subset of vault-item fields the import path needs. Item
// encryption happens client side, so the payload is opaque to the server.
type CipherInput struct {
	Type int
	Name string
	Data string
}

type CipherService interface {
	Create(ctx context.Context, orgID string, input CipherInput) (*repository.Cipher, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*repository.Cipher, error)
}

type cipherService struct {
	cipherRepo repository.CipherRepository
}

func NewCipherService(cipherRepo repository.CipherRepository) CipherService {
	return &cipherService{cipherRepo: cipherRepo}
}

func (s *cipherService) Create(ctx context.Context, orgID string, input CipherInput) (*repository.Cipher, error) {
	if input.Name == "" {
		return nil, ErrInvalidInput
	}
	cipher := &repository.Cipher{
		OrganizationID: orgID,
		Type:           input.Type,
		Name:           input.Name,
		Data:           input.Data,
	}
	if err := s.cipherRepo.Create(ctx, cipher); err != nil {
		return nil, err
	}
	return cipher, nil
}

func (s *cipherService) ListByOrganization(ctx context.Context, orgID string) ([]*repository.Cipher, error) {
	return s.cipherRepo.FindByOrg(ctx, orgID)
}
