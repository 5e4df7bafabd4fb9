package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/keyhaven/vault-sync-backend/internal/email"
	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// InvitationService turns email addresses into organization memberships:
// NoMembership -> Invited -> Accepted -> Confirmed. Acceptance itself is
// driven by the invited user's client; this service issues invites and
// confirms accepted members.
type InvitationService interface {
	Invite(ctx context.Context, orgID string, callerRole types.MembershipRole, emails []string, role types.MembershipRole, accessAll bool, grants []CollectionGrantInput) error
	Confirm(ctx context.Context, orgID, membershipID string, callerRole types.MembershipRole, key string) error
	Reinvite(ctx context.Context, orgID, membershipID string) error
}

type invitationService struct {
	userRepo           repository.UserRepository
	membershipRepo     repository.MembershipRepository
	collectionRepo     repository.CollectionRepository
	grantRepo          repository.GrantRepository
	invitationRepo     repository.InvitationRepository
	orgRepo            repository.OrganizationRepository
	tx                 repository.TxManager
	invitationsAllowed bool
	emailSvc           *email.Service
	notifier           SyncNotifier
}

// NewInvitationService takes the invitations-enabled flag explicitly so tests
// can toggle it per case.
func NewInvitationService(repos *repository.Repositories, invitationsAllowed bool, emailSvc *email.Service, notifier SyncNotifier) InvitationService {
	return &invitationService{
		userRepo:           repos.UserRepo,
		membershipRepo:     repos.MembershipRepo,
		collectionRepo:     repos.CollectionRepo,
		grantRepo:          repos.GrantRepo,
		invitationRepo:     repos.InvitationRepo,
		orgRepo:            repos.OrgRepo,
		tx:                 repos.Tx,
		invitationsAllowed: invitationsAllowed,
		emailSvc:           emailSvc,
		notifier:           notifier,
	}
}

// Invite processes the batch fail-fast: the first email that cannot be invited
// aborts the rest.
func (s *invitationService) Invite(ctx context.Context, orgID string, callerRole types.MembershipRole, emails []string, role types.MembershipRole, accessAll bool, grants []CollectionGrantInput) error {
	if role != types.RoleUser && callerRole != types.RoleOwner {
		return fmt.Errorf("only owners can invite admins or owners: %w", ErrUnauthorized)
	}

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return err
	}
	if org == nil {
		return ErrNotFound
	}

	for _, addr := range emails {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if err := s.inviteOne(ctx, org, addr, role, accessAll, grants); err != nil {
			return err
		}
	}
	return nil
}

func (s *invitationService) inviteOne(ctx context.Context, org *repository.Organization, addr string, role types.MembershipRole, accessAll bool, grants []CollectionGrantInput) error {
	user, err := s.userRepo.FindByEmail(ctx, addr)
	if err != nil {
		return err
	}

	status := types.StatusAccepted
	if user == nil {
		if !s.invitationsAllowed {
			return fmt.Errorf("user email does not exist: %s: %w", addr, ErrEmailNotFound)
		}
		status = types.StatusInvited
	} else {
		existing, err := s.membershipRepo.FindByUserAndOrg(ctx, user.ID, org.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("user already in organization: %s: %w", addr, ErrAlreadyMember)
		}
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if user == nil {
			// Placeholder account; the invitee registers over it later.
			user = &repository.User{Email: addr}
			if err := s.userRepo.Create(ctx, user); err != nil {
				return fmt.Errorf("failed to create placeholder user: %w", err)
			}
			if err := s.invitationRepo.Create(ctx, &repository.Invitation{Email: addr}); err != nil {
				return fmt.Errorf("failed to record invitation: %w", err)
			}
		}

		if !accessAll {
			for _, g := range grants {
				collection, err := s.collectionRepo.FindByIDAndOrg(ctx, g.ID, org.ID)
				if err != nil {
					return err
				}
				if collection == nil {
					return fmt.Errorf("collection not found in organization: %w", ErrNotFound)
				}
			}
			for _, g := range grants {
				grant := &repository.CollectionGrant{CollectionID: g.ID, UserID: user.ID, ReadOnly: g.ReadOnly}
				if err := s.grantRepo.Upsert(ctx, grant); err != nil {
					return err
				}
			}
		}

		membership := &repository.Membership{
			UserID:         user.ID,
			OrganizationID: org.ID,
			Role:           role,
			Status:         status,
			AccessAll:      accessAll,
		}
		return s.membershipRepo.Create(ctx, membership)
	})
	if err != nil {
		return err
	}

	if s.emailSvc != nil {
		if err := s.emailSvc.SendInvite(addr, org.Name); err != nil {
			log.Printf("[Invitation] failed to send invite mail to %s: %v", addr, err)
		}
	}
	return nil
}

// Confirm moves an Accepted membership to Confirmed and stores the
// organization key the inviting client wrapped for the invitee.
func (s *invitationService) Confirm(ctx context.Context, orgID, membershipID string, callerRole types.MembershipRole, key string) error {
	target, err := s.membershipRepo.FindByIDAndOrg(ctx, membershipID, orgID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}
	if target.Role != types.RoleUser && callerRole != types.RoleOwner {
		return fmt.Errorf("only owners can confirm admins or owners: %w", ErrUnauthorized)
	}
	if target.Status != types.StatusAccepted {
		return ErrInvalidState
	}
	if key == "" {
		return ErrInvalidKey
	}

	target.Status = types.StatusConfirmed
	target.Key = key
	if err := s.membershipRepo.Update(ctx, target); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.SendUserUpdate(target.UserID, "sync_org_keys")
	}

	if s.emailSvc != nil {
		user, err := s.userRepo.FindByID(ctx, target.UserID)
		org, orgErr := s.orgRepo.FindByID(ctx, orgID)
		if err == nil && orgErr == nil && user != nil && org != nil {
			if err := s.emailSvc.SendConfirmed(user.Email, org.Name); err != nil {
				log.Printf("[Invitation] failed to send confirmation mail to %s: %v", user.Email, err)
			}
		}
	}
	return nil
}

// Reinvite is deliberately unsupported: the user must self-register before
// they can be accepted into the organization.
func (s *invitationService) Reinvite(ctx context.Context, orgID, membershipID string) error {
	return ErrNotImplemented
}
