package service

import (
	"context"
	"errors"
	"testing"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

func newInvitationFixture(t *testing.T, invitationsAllowed bool) (*repository.Repositories, InvitationService, *repository.Organization) {
	t.Helper()
	repos := repository.NewRepositories()
	svc := NewInvitationService(repos, invitationsAllowed, nil, nil)
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	return repos, svc, org
}

func TestInviteExistingUser(t *testing.T) {
	repos, svc, org := newInvitationFixture(t, true)
	ctx := context.Background()
	invitee := seedUser(t, repos, "invitee@example.com")

	err := svc.Invite(ctx, org.ID, types.RoleOwner, []string{"invitee@example.com"}, types.RoleUser, true, nil)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	m, _ := repos.MembershipRepo.FindByUserAndOrg(ctx, invitee.ID, org.ID)
	if m == nil {
		t.Fatal("no membership created")
	}
	if m.Status != types.StatusAccepted {
		t.Errorf("status = %s, want Accepted", m.Status)
	}
	if !m.AccessAll {
		t.Error("accessAll not set")
	}
}

func TestInviteUnknownEmailCreatesPlaceholder(t *testing.T) {
	repos, svc, org := newInvitationFixture(t, true)
	ctx := context.Background()

	err := svc.Invite(ctx, org.ID, types.RoleOwner, []string{"New@Example.com"}, types.RoleUser, true, nil)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	user, _ := repos.UserRepo.FindByEmail(ctx, "new@example.com")
	if user == nil {
		t.Fatal("placeholder user not created")
	}
	if user.PasswordHash != "" {
		t.Error("placeholder user has a password hash")
	}
	m, _ := repos.MembershipRepo.FindByUserAndOrg(ctx, user.ID, org.ID)
	if m == nil || m.Status != types.StatusInvited {
		t.Fatalf("membership = %+v, want status Invited", m)
	}
	inv, _ := repos.InvitationRepo.FindByEmail(ctx, "new@example.com")
	if inv == nil {
		t.Error("invitation marker not recorded")
	}
}

func TestInviteUnknownEmailDisabled(t *testing.T) {
	_, svc, org := newInvitationFixture(t, false)

	err := svc.Invite(context.Background(), org.ID, types.RoleOwner, []string{"new@example.com"}, types.RoleUser, true, nil)
	if !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("Invite = %v, want ErrEmailNotFound", err)
	}
}

func TestInviteExistingMemberFails(t *testing.T) {
	repos, svc, org := newInvitationFixture(t, true)
	ctx := context.Background()
	member := seedUser(t, repos, "member@example.com")
	seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)

	err := svc.Invite(ctx, org.ID, types.RoleOwner, []string{"member@example.com"}, types.RoleUser, true, nil)
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("Invite = %v, want ErrAlreadyMember", err)
	}
}

func TestInviteBatchFailFast(t *testing.T) {
	repos, svc, org := newInvitationFixture(t, true)
	ctx := context.Background()
	member := seedUser(t, repos, "member@example.com")
	seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)

	// Second address is already a member; third must not be processed.
	err := svc.Invite(ctx, org.ID, types.RoleOwner,
		[]string{"first@example.com", "member@example.com", "third@example.com"},
		types.RoleUser, true, nil)
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("Invite = %v, want ErrAlreadyMember", err)
	}

	if u, _ := repos.UserRepo.FindByEmail(ctx, "first@example.com"); u == nil {
		t.Error("first invite was not processed")
	}
	if u, _ := repos.UserRepo.FindByEmail(ctx, "third@example.com"); u != nil {
		t.Error("third invite was processed after the failure")
	}
}

func TestInviteElevatedRoleRequiresOwner(t *testing.T) {
	_, svc, org := newInvitationFixture(t, true)

	err := svc.Invite(context.Background(), org.ID, types.RoleAdmin, []string{"new@example.com"}, types.RoleAdmin, true, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Invite = %v, want ErrUnauthorized", err)
	}
}

func TestInviteWithGrants(t *testing.T) {
	repos, svc, org := newInvitationFixture(t, true)
	ctx := context.Background()
	col := seedCollection(t, repos, org, "Shared")

	err := svc.Invite(ctx, org.ID, types.RoleOwner, []string{"new@example.com"}, types.RoleUser, false,
		[]CollectionGrantInput{{ID: col.ID, ReadOnly: true}})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	user, _ := repos.UserRepo.FindByEmail(ctx, "new@example.com")
	grants, _ := repos.GrantRepo.FindByOrgAndUser(ctx, org.ID, user.ID)
	if len(grants) != 1 || grants[0].CollectionID != col.ID || !grants[0].ReadOnly {
		t.Fatalf("grants = %+v, want one read-only grant on the collection", grants)
	}

	// A grant referencing an unknown collection fails the invite.
	err = svc.Invite(ctx, org.ID, types.RoleOwner, []string{"another@example.com"}, types.RoleUser, false,
		[]CollectionGrantInput{{ID: "missing"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Invite bad grant = %v, want ErrNotFound", err)
	}
}

func TestConfirm(t *testing.T) {
	repos := repository.NewRepositories()
	notifier := newFakeNotifier()
	svc := NewInvitationService(repos, true, nil, notifier)
	ctx := context.Background()
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	member := seedUser(t, repos, "member@example.com")
	m := seedMember(t, repos, org, member, types.RoleUser, types.StatusAccepted)

	if err := svc.Confirm(ctx, org.ID, m.ID, types.RoleAdmin, "wrapped-key"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	got, _ := repos.MembershipRepo.FindByID(ctx, m.ID)
	if got.Status != types.StatusConfirmed {
		t.Errorf("status = %s, want Confirmed", got.Status)
	}
	if got.Key != "wrapped-key" {
		t.Errorf("key = %q, want the key stored verbatim", got.Key)
	}
	if len(notifier.updates[member.ID]) == 0 {
		t.Error("confirmed member was not notified")
	}
}

func TestConfirmGuards(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewInvitationService(repos, true, nil, nil)
	ctx := context.Background()
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)

	t.Run("unknown membership", func(t *testing.T) {
		if err := svc.Confirm(ctx, org.ID, "missing", types.RoleOwner, "k"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Confirm = %v, want ErrNotFound", err)
		}
	})

	t.Run("not accepted yet", func(t *testing.T) {
		member := seedUser(t, repos, "invited@example.com")
		m := seedMember(t, repos, org, member, types.RoleUser, types.StatusInvited)
		if err := svc.Confirm(ctx, org.ID, m.ID, types.RoleOwner, "k"); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("Confirm = %v, want ErrInvalidState", err)
		}
	})

	t.Run("empty key", func(t *testing.T) {
		member := seedUser(t, repos, "accepted@example.com")
		m := seedMember(t, repos, org, member, types.RoleUser, types.StatusAccepted)
		if err := svc.Confirm(ctx, org.ID, m.ID, types.RoleOwner, ""); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Confirm = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("admin confirms admin", func(t *testing.T) {
		member := seedUser(t, repos, "admin2@example.com")
		m := seedMember(t, repos, org, member, types.RoleAdmin, types.StatusAccepted)
		if err := svc.Confirm(ctx, org.ID, m.ID, types.RoleAdmin, "k"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Confirm = %v, want ErrUnauthorized", err)
		}
		if err := svc.Confirm(ctx, org.ID, m.ID, types.RoleOwner, "k"); err != nil {
			t.Fatalf("Confirm by owner: %v", err)
		}
	})
}

func TestReinviteAlwaysFails(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewInvitationService(repos, true, nil, nil)
	owner := seedUser(t, repos, "owner@example.com")
	org, ownerMembership := seedOrg(t, repos, owner)

	if err := svc.Reinvite(context.Background(), org.ID, ownerMembership.ID); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("Reinvite = %v, want ErrNotImplemented", err)
	}
	if err := svc.Reinvite(context.Background(), "whatever", "whoever"); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("Reinvite = %v, want ErrNotImplemented", err)
	}
}
