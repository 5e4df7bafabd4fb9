package service

import (
	"context"
	"fmt"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
)

// CollectionUserDetail joins a collection grant to the membership it belongs to.
type CollectionUserDetail struct {
	Membership *repository.Membership
	ReadOnly   bool
}

// CollectionService owns collections and per-user collection grants and
// resolves effective read access for a user within an organization.
type CollectionService interface {
	Create(ctx context.Context, orgID, name string) (*repository.Collection, error)
	Rename(ctx context.Context, orgID, collectionID, name string) (*repository.Collection, error)
	Delete(ctx context.Context, orgID, collectionID string) error
	GetDetails(ctx context.Context, orgID, collectionID, userID string) (*repository.Collection, error)
	ListForUser(ctx context.Context, userID string) ([]*repository.Collection, error)
	ListForOrganization(ctx context.Context, orgID string) ([]*repository.Collection, error)
	ListUsers(ctx context.Context, orgID, collectionID string) ([]*CollectionUserDetail, error)
	RemoveUser(ctx context.Context, orgID, collectionID, membershipID string) error
}

type collectionService struct {
	orgRepo        repository.OrganizationRepository
	collectionRepo repository.CollectionRepository
	membershipRepo repository.MembershipRepository
	grantRepo      repository.GrantRepository
	tx             repository.TxManager
	notifier       SyncNotifier
}

func NewCollectionService(repos *repository.Repositories, notifier SyncNotifier) CollectionService {
	return &collectionService{
		orgRepo:        repos.OrgRepo,
		collectionRepo: repos.CollectionRepo,
		membershipRepo: repos.MembershipRepo,
		grantRepo:      repos.GrantRepo,
		tx:             repos.Tx,
		notifier:       notifier,
	}
}

// notifyOrg tells every client subscribed to the organization that its
// collection set changed.
func (s *collectionService) notifyOrg(orgID string) {
	if s.notifier != nil {
		s.notifier.SendOrgUpdate(orgID, "sync_vault")
	}
}

// resolve loads a collection and distinguishes "missing" from "exists but
// belongs to another organization"; the latter is a caller error, not a
// missing resource.
func (s *collectionService) resolve(ctx context.Context, orgID, collectionID string) (*repository.Collection, error) {
	collection, err := s.collectionRepo.FindByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, ErrNotFound
	}
	if collection.OrganizationID != orgID {
		return nil, ErrOrgMismatch
	}
	return collection, nil
}

func (s *collectionService) Create(ctx context.Context, orgID, name string) (*repository.Collection, error) {
	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrNotFound
	}
	collection := &repository.Collection{OrganizationID: org.ID, Name: name}
	if err := s.collectionRepo.Create(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	s.notifyOrg(org.ID)
	return collection, nil
}

func (s *collectionService) Rename(ctx context.Context, orgID, collectionID, name string) (*repository.Collection, error) {
	collection, err := s.resolve(ctx, orgID, collectionID)
	if err != nil {
		return nil, err
	}
	collection.Name = name
	if err := s.collectionRepo.Update(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to rename collection: %w", err)
	}
	s.notifyOrg(orgID)
	return collection, nil
}

func (s *collectionService) Delete(ctx context.Context, orgID, collectionID string) error {
	collection, err := s.resolve(ctx, orgID, collectionID)
	if err != nil {
		return err
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.grantRepo.DeleteByCollection(ctx, collection.ID); err != nil {
			return err
		}
		return s.collectionRepo.Delete(ctx, collection.ID)
	})
	if err != nil {
		return err
	}
	s.notifyOrg(orgID)
	return nil
}

// GetDetails returns the collection only when the requesting user can see it,
// either through AccessAll or an explicit grant.
func (s *collectionService) GetDetails(ctx context.Context, orgID, collectionID, userID string) (*repository.Collection, error) {
	collection, err := s.resolve(ctx, orgID, collectionID)
	if err != nil {
		return nil, err
	}
	membership, err := s.membershipRepo.FindByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if membership != nil && membership.AccessAll {
		return collection, nil
	}
	grant, err := s.grantRepo.Find(ctx, collection.ID, userID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, ErrNotFound
	}
	return collection, nil
}

func (s *collectionService) ListForUser(ctx context.Context, userID string) ([]*repository.Collection, error) {
	return s.collectionRepo.FindByUser(ctx, userID)
}

func (s *collectionService) ListForOrganization(ctx context.Context, orgID string) ([]*repository.Collection, error) {
	return s.collectionRepo.FindByOrg(ctx, orgID)
}

// ListUsers joins grants to memberships. A grant without a matching membership
// is an internal consistency fault, not a user-facing error.
func (s *collectionService) ListUsers(ctx context.Context, orgID, collectionID string) ([]*CollectionUserDetail, error) {
	collection, err := s.collectionRepo.FindByIDAndOrg(ctx, collectionID, orgID)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, ErrNotFound
	}
	grants, err := s.grantRepo.FindByCollection(ctx, collection.ID)
	if err != nil {
		return nil, err
	}
	details := make([]*CollectionUserDetail, 0, len(grants))
	for _, g := range grants {
		membership, err := s.membershipRepo.FindByUserAndOrg(ctx, g.UserID, orgID)
		if err != nil {
			return nil, err
		}
		if membership == nil {
			return nil, fmt.Errorf("grant for user %s on collection %s has no membership", g.UserID, collection.ID)
		}
		details = append(details, &CollectionUserDetail{Membership: membership, ReadOnly: g.ReadOnly})
	}
	return details, nil
}

func (s *collectionService) RemoveUser(ctx context.Context, orgID, collectionID, membershipID string) error {
	collection, err := s.resolve(ctx, orgID, collectionID)
	if err != nil {
		return err
	}
	membership, err := s.membershipRepo.FindByIDAndOrg(ctx, membershipID, orgID)
	if err != nil {
		return err
	}
	if membership == nil {
		return fmt.Errorf("user not found in organization: %w", ErrNotFound)
	}
	grant, err := s.grantRepo.Find(ctx, collection.ID, membership.UserID)
	if err != nil {
		return err
	}
	if grant == nil {
		return ErrNotAssigned
	}
	return s.grantRepo.Delete(ctx, collection.ID, membership.UserID)
}
