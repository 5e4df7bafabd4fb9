package service

import (
	"context"
	"fmt"
	"log"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// ImportRelation links a cipher to a collection by position in the import
// payload, not by id: Key indexes the ciphers array, Value the collections.
type ImportRelation struct {
	CipherIndex     int
	CollectionIndex int
}

type ImportService interface {
	Import(ctx context.Context, orgID, callerUserID string, collectionNames []string, ciphers []CipherInput, relations []ImportRelation) error
}

type importService struct {
	membershipRepo repository.MembershipRepository
	collectionRepo repository.CollectionRepository
	cipherRepo     repository.CipherRepository
	cipher         CipherService
	account        AccountService
	notifier       SyncNotifier
}

func NewImportService(repos *repository.Repositories, cipher CipherService, account AccountService, notifier SyncNotifier) ImportService {
	return &importService{
		membershipRepo: repos.MembershipRepo,
		collectionRepo: repos.CollectionRepo,
		cipherRepo:     repos.CipherRepo,
		cipher:         cipher,
		account:        account,
		notifier:       notifier,
	}
}

// Import creates the payload's collections and ciphers, then links them per
// the positional relations. Per-item creation is best effort, but every
// relation is validated against the creation results before any link is
// written, so a bad index never leaves a half-linked batch behind.
func (s *importService) Import(ctx context.Context, orgID, callerUserID string, collectionNames []string, ciphers []CipherInput, relations []ImportRelation) error {
	caller, err := s.membershipRepo.FindByUserAndOrg(ctx, callerUserID, orgID)
	if err != nil {
		return err
	}
	if caller == nil || caller.Status != types.StatusConfirmed || caller.Role < types.RoleAdmin {
		return ErrImportRole
	}

	collectionIDs := make([]string, len(collectionNames))
	collectionOK := make([]bool, len(collectionNames))
	for i, name := range collectionNames {
		collection := &repository.Collection{OrganizationID: orgID, Name: name}
		if err := s.collectionRepo.Create(ctx, collection); err != nil {
			log.Printf("[Import] failed to create collection %q in org %s: %v", name, orgID, err)
			continue
		}
		collectionIDs[i] = collection.ID
		collectionOK[i] = true
	}

	cipherIDs := make([]string, len(ciphers))
	cipherOK := make([]bool, len(ciphers))
	for i, input := range ciphers {
		created, err := s.cipher.Create(ctx, orgID, input)
		if err != nil {
			log.Printf("[Import] failed to create cipher %d in org %s: %v", i, orgID, err)
			continue
		}
		cipherIDs[i] = created.ID
		cipherOK[i] = true
	}

	for _, rel := range relations {
		if rel.CipherIndex < 0 || rel.CipherIndex >= len(cipherIDs) || !cipherOK[rel.CipherIndex] {
			return fmt.Errorf("cipher index %d: %w", rel.CipherIndex, ErrImportAssign)
		}
		if rel.CollectionIndex < 0 || rel.CollectionIndex >= len(collectionIDs) || !collectionOK[rel.CollectionIndex] {
			return fmt.Errorf("collection index %d: %w", rel.CollectionIndex, ErrImportAssign)
		}
	}
	for _, rel := range relations {
		if err := s.cipherRepo.AttachCollection(ctx, cipherIDs[rel.CipherIndex], collectionIDs[rel.CollectionIndex]); err != nil {
			return fmt.Errorf("cipher index %d: %w", rel.CipherIndex, ErrImportAssign)
		}
	}

	if err := s.account.BumpRevision(ctx, callerUserID); err != nil {
		log.Printf("[Import] failed to bump revision for user %s: %v", callerUserID, err)
	}
	if s.notifier != nil {
		s.notifier.SendUserUpdate(callerUserID, "sync_ciphers")
	}
	return nil
}
