package service

import (
	"context"
	"fmt"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// CollectionGrantInput names one collection a member may use and whether the
// access is read-only.
type CollectionGrantInput struct {
	ID       string
	ReadOnly bool
}

// MembershipService owns membership records and enforces the role hierarchy
// and last-owner invariants.
type MembershipService interface {
	ListByOrganization(ctx context.Context, orgID string) ([]*repository.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]*repository.Membership, error)
	Get(ctx context.Context, orgID, membershipID string) (*repository.Membership, []*repository.CollectionGrant, error)
	GetByUserAndOrg(ctx context.Context, userID, orgID string) (*repository.Membership, error)
	Edit(ctx context.Context, orgID, membershipID string, callerRole, newRole types.MembershipRole, accessAll bool, grants []CollectionGrantInput) error
	Delete(ctx context.Context, orgID, membershipID string, callerRole types.MembershipRole) error
	Leave(ctx context.Context, orgID, userID string) error
}

type membershipService struct {
	membershipRepo repository.MembershipRepository
	collectionRepo repository.CollectionRepository
	grantRepo      repository.GrantRepository
	tx             repository.TxManager
	notifier       SyncNotifier
}

func NewMembershipService(repos *repository.Repositories, notifier SyncNotifier) MembershipService {
	return &membershipService{
		membershipRepo: repos.MembershipRepo,
		collectionRepo: repos.CollectionRepo,
		grantRepo:      repos.GrantRepo,
		tx:             repos.Tx,
		notifier:       notifier,
	}
}

func (s *membershipService) ListByOrganization(ctx context.Context, orgID string) ([]*repository.Membership, error) {
	return s.membershipRepo.FindByOrg(ctx, orgID)
}

func (s *membershipService) ListByUser(ctx context.Context, userID string) ([]*repository.Membership, error) {
	return s.membershipRepo.FindByUser(ctx, userID)
}

func (s *membershipService) Get(ctx context.Context, orgID, membershipID string) (*repository.Membership, []*repository.CollectionGrant, error) {
	m, err := s.membershipRepo.FindByIDAndOrg(ctx, membershipID, orgID)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, ErrNotFound
	}
	grants, err := s.grantRepo.FindByOrgAndUser(ctx, orgID, m.UserID)
	if err != nil {
		return nil, nil, err
	}
	return m, grants, nil
}

func (s *membershipService) GetByUserAndOrg(ctx context.Context, userID, orgID string) (*repository.Membership, error) {
	return s.membershipRepo.FindByUserAndOrg(ctx, userID, orgID)
}

// lastOwnerGuard fails when the organization would be left without an Owner.
// Must run inside the same transaction as the demotion or deletion it guards.
func (s *membershipService) lastOwnerGuard(ctx context.Context, orgID string) error {
	owners, err := s.membershipRepo.FindByOrgAndRole(ctx, orgID, types.RoleOwner)
	if err != nil {
		return err
	}
	if len(owners) <= 1 {
		return ErrLastOwner
	}
	return nil
}

// replaceGrants deletes the member's existing grants in the organization and,
// when accessAll is false, recreates exactly the supplied set. Every referenced
// collection is validated against the organization before anything is written.
func (s *membershipService) replaceGrants(ctx context.Context, orgID, userID string, accessAll bool, grants []CollectionGrantInput) error {
	if !accessAll {
		for _, g := range grants {
			collection, err := s.collectionRepo.FindByIDAndOrg(ctx, g.ID, orgID)
			if err != nil {
				return err
			}
			if collection == nil {
				return fmt.Errorf("collection not found in organization: %w", ErrNotFound)
			}
		}
	}
	if err := s.grantRepo.DeleteByOrgAndUser(ctx, orgID, userID); err != nil {
		return err
	}
	if accessAll {
		return nil
	}
	for _, g := range grants {
		grant := &repository.CollectionGrant{CollectionID: g.ID, UserID: userID, ReadOnly: g.ReadOnly}
		if err := s.grantRepo.Upsert(ctx, grant); err != nil {
			return err
		}
	}
	return nil
}

func (s *membershipService) Edit(ctx context.Context, orgID, membershipID string, callerRole, newRole types.MembershipRole, accessAll bool, grants []CollectionGrantInput) error {
	target, err := s.membershipRepo.FindByIDAndOrg(ctx, membershipID, orgID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}

	if newRole != target.Role &&
		(target.Role >= types.RoleAdmin || newRole >= types.RoleAdmin) &&
		callerRole != types.RoleOwner {
		return fmt.Errorf("only owners can grant and remove admin or owner privileges: %w", ErrUnauthorized)
	}
	if target.Role == types.RoleOwner && callerRole != types.RoleOwner {
		return fmt.Errorf("only owners can edit owner users: %w", ErrUnauthorized)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if target.Role == types.RoleOwner && newRole != types.RoleOwner {
			if err := s.lastOwnerGuard(ctx, orgID); err != nil {
				return err
			}
		}
		if err := s.replaceGrants(ctx, orgID, target.UserID, accessAll, grants); err != nil {
			return err
		}
		target.Role = newRole
		target.AccessAll = accessAll
		return s.membershipRepo.Update(ctx, target)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.SendUserUpdate(target.UserID, "sync_org_keys")
	}
	return nil
}

func (s *membershipService) Delete(ctx context.Context, orgID, membershipID string, callerRole types.MembershipRole) error {
	target, err := s.membershipRepo.FindByIDAndOrg(ctx, membershipID, orgID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}

	if target.Role != types.RoleUser && callerRole != types.RoleOwner {
		return fmt.Errorf("only owners can delete admins or owners: %w", ErrUnauthorized)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if target.Role == types.RoleOwner {
			if err := s.lastOwnerGuard(ctx, orgID); err != nil {
				return err
			}
		}
		if err := s.grantRepo.DeleteByOrgAndUser(ctx, orgID, target.UserID); err != nil {
			return err
		}
		return s.membershipRepo.Delete(ctx, target.ID)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.SendUserUpdate(target.UserID, "sync_org_keys")
	}
	return nil
}

// Leave removes the caller's own membership, subject to the last-owner guard.
func (s *membershipService) Leave(ctx context.Context, orgID, userID string) error {
	membership, err := s.membershipRepo.FindByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if membership == nil {
		return ErrNotMember
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if membership.Role == types.RoleOwner {
			if err := s.lastOwnerGuard(ctx, orgID); err != nil {
				return err
			}
		}
		if err := s.grantRepo.DeleteByOrgAndUser(ctx, orgID, userID); err != nil {
			return err
		}
		return s.membershipRepo.Delete(ctx, membership.ID)
	})
}
