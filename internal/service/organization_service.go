package service

import (
	"context"
	"fmt"
	"log"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// OrganizationService handles the organization entity itself, including the
// cascading deletion of everything the organization owns.
type OrganizationService interface {
	Create(ctx context.Context, creatorUserID, name, billingEmail, collectionName, key string) (*repository.Organization, error)
	Get(ctx context.Context, id string) (*repository.Organization, error)
	Update(ctx context.Context, id, name, billingEmail string) (*repository.Organization, error)
	Delete(ctx context.Context, orgID, callerUserID, masterPasswordHash string) error
}

type organizationService struct {
	orgRepo        repository.OrganizationRepository
	membershipRepo repository.MembershipRepository
	collectionRepo repository.CollectionRepository
	grantRepo      repository.GrantRepository
	cipherRepo     repository.CipherRepository
	tx             repository.TxManager
	auth           AuthService
	notifier       SyncNotifier
}

func NewOrganizationService(repos *repository.Repositories, auth AuthService, notifier SyncNotifier) OrganizationService {
	return &organizationService{
		orgRepo:        repos.OrgRepo,
		membershipRepo: repos.MembershipRepo,
		collectionRepo: repos.CollectionRepo,
		grantRepo:      repos.GrantRepo,
		cipherRepo:     repos.CipherRepo,
		tx:             repos.Tx,
		auth:           auth,
		notifier:       notifier,
	}
}

// Create creates the organization, a Confirmed Owner membership for the
// creator holding the supplied wrapped key, and one default collection, in a
// single transaction so partial creation is never observable.
func (s *organizationService) Create(ctx context.Context, creatorUserID, name, billingEmail, collectionName, key string) (*repository.Organization, error) {
	if name == "" || key == "" {
		return nil, ErrInvalidInput
	}
	org := &repository.Organization{Name: name, BillingEmail: billingEmail}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.orgRepo.Create(ctx, org); err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}
		membership := &repository.Membership{
			UserID:         creatorUserID,
			OrganizationID: org.ID,
			Role:           types.RoleOwner,
			Status:         types.StatusConfirmed,
			AccessAll:      true,
			Key:            key,
		}
		if err := s.membershipRepo.Create(ctx, membership); err != nil {
			return fmt.Errorf("failed to create owner membership: %w", err)
		}
		collection := &repository.Collection{OrganizationID: org.ID, Name: collectionName}
		if err := s.collectionRepo.Create(ctx, collection); err != nil {
			return fmt.Errorf("failed to create default collection: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (s *organizationService) Get(ctx context.Context, id string) (*repository.Organization, error) {
	org, err := s.orgRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrNotFound
	}
	return org, nil
}

func (s *organizationService) Update(ctx context.Context, id, name, billingEmail string) (*repository.Organization, error) {
	org, err := s.orgRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrNotFound
	}
	org.Name = name
	org.BillingEmail = billingEmail
	if err := s.orgRepo.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return org, nil
}

// Delete re-verifies the caller's master password, then cascades through
// grants, collections, ciphers and memberships before removing the
// organization itself. The whole cascade runs in one transaction.
func (s *organizationService) Delete(ctx context.Context, orgID, callerUserID, masterPasswordHash string) error {
	if err := s.auth.VerifyMasterPassword(ctx, callerUserID, masterPasswordHash); err != nil {
		return err
	}
	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return err
	}
	if org == nil {
		return ErrNotFound
	}

	members, err := s.membershipRepo.FindByOrg(ctx, orgID)
	if err != nil {
		return err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		collections, err := s.collectionRepo.FindByOrg(ctx, orgID)
		if err != nil {
			return err
		}
		for _, c := range collections {
			if err := s.grantRepo.DeleteByCollection(ctx, c.ID); err != nil {
				return err
			}
		}
		if err := s.cipherRepo.DeleteByOrg(ctx, orgID); err != nil {
			return err
		}
		if err := s.collectionRepo.DeleteByOrg(ctx, orgID); err != nil {
			return err
		}
		if err := s.membershipRepo.DeleteByOrg(ctx, orgID); err != nil {
			return err
		}
		return s.orgRepo.Delete(ctx, orgID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	log.Printf("[Organization] deleted %s with %d memberships", orgID, len(members))
	if s.notifier != nil {
		for _, m := range members {
			s.notifier.SendUserUpdate(m.UserID, "sync_org_keys")
		}
	}
	return nil
}
