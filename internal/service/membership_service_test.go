package service

import (
	"context"
	"errors"
	"testing"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

func TestEditRoleGuards(t *testing.T) {
	tests := []struct {
		name       string
		targetRole types.MembershipRole
		newRole    types.MembershipRole
		callerRole types.MembershipRole
		wantErr    error
	}{
		{"admin promotes user to admin", types.RoleUser, types.RoleAdmin, types.RoleAdmin, ErrUnauthorized},
		{"admin promotes user to owner", types.RoleUser, types.RoleOwner, types.RoleAdmin, ErrUnauthorized},
		{"admin demotes admin to user", types.RoleAdmin, types.RoleUser, types.RoleAdmin, ErrUnauthorized},
		{"admin edits owner", types.RoleOwner, types.RoleOwner, types.RoleAdmin, ErrUnauthorized},
		{"owner promotes user to admin", types.RoleUser, types.RoleAdmin, types.RoleOwner, nil},
		{"owner demotes admin to user", types.RoleAdmin, types.RoleUser, types.RoleOwner, nil},
		{"admin keeps user a user", types.RoleUser, types.RoleUser, types.RoleAdmin, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos := repository.NewRepositories()
			svc := NewMembershipService(repos, nil)
			owner := seedUser(t, repos, "owner@example.com")
			org, _ := seedOrg(t, repos, owner)
			target := seedUser(t, repos, "target@example.com")
			m := seedMember(t, repos, org, target, tt.targetRole, types.StatusConfirmed)

			err := svc.Edit(context.Background(), org.ID, m.ID, tt.callerRole, tt.newRole, true, nil)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Edit: %v", err)
				}
				got, _ := repos.MembershipRepo.FindByID(context.Background(), m.ID)
				if got.Role != tt.newRole {
					t.Errorf("role = %s, want %s", got.Role, tt.newRole)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Edit error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEditLastOwnerDemotion(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewMembershipService(repos, nil)
	owner := seedUser(t, repos, "owner@example.com")
	org, ownerMembership := seedOrg(t, repos, owner)

	err := svc.Edit(context.Background(), org.ID, ownerMembership.ID, types.RoleOwner, types.RoleAdmin, true, nil)
	if !errors.Is(err, ErrLastOwner) {
		t.Fatalf("Edit error = %v, want ErrLastOwner", err)
	}

	// With a second owner the demotion goes through.
	second := seedUser(t, repos, "second@example.com")
	seedMember(t, repos, org, second, types.RoleOwner, types.StatusConfirmed)
	if err := svc.Edit(context.Background(), org.ID, ownerMembership.ID, types.RoleOwner, types.RoleAdmin, true, nil); err != nil {
		t.Fatalf("Edit with second owner: %v", err)
	}
}

func TestEditReplacesGrants(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewMembershipService(repos, nil)
	ctx := context.Background()
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	member := seedUser(t, repos, "member@example.com")
	m := seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)
	colA := seedCollection(t, repos, org, "A")
	colB := seedCollection(t, repos, org, "B")

	// Initial grant set {A}.
	err := svc.Edit(ctx, org.ID, m.ID, types.RoleOwner, types.RoleUser, false,
		[]CollectionGrantInput{{ID: colA.ID, ReadOnly: true}})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}

	// Replacing with {B} must drop A entirely.
	err = svc.Edit(ctx, org.ID, m.ID, types.RoleOwner, types.RoleUser, false,
		[]CollectionGrantInput{{ID: colB.ID, ReadOnly: false}})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	grants, err := repos.GrantRepo.FindByOrgAndUser(ctx, org.ID, member.ID)
	if err != nil {
		t.Fatalf("FindByOrgAndUser: %v", err)
	}
	if len(grants) != 1 || grants[0].CollectionID != colB.ID {
		t.Fatalf("grants = %+v, want exactly collection B", grants)
	}

	// accessAll clears all explicit grants.
	if err := svc.Edit(ctx, org.ID, m.ID, types.RoleOwner, types.RoleUser, true, nil); err != nil {
		t.Fatalf("Edit accessAll: %v", err)
	}
	grants, _ = repos.GrantRepo.FindByOrgAndUser(ctx, org.ID, member.ID)
	if len(grants) != 0 {
		t.Fatalf("grants after accessAll = %+v, want none", grants)
	}
}

func TestEditRejectsForeignCollection(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewMembershipService(repos, nil)
	ctx := context.Background()
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	other := seedUser(t, repos, "other@example.com")
	otherOrg, _ := seedOrg(t, repos, other)
	foreign := seedCollection(t, repos, otherOrg, "Foreign")
	member := seedUser(t, repos, "member@example.com")
	m := seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)

	err := svc.Edit(ctx, org.ID, m.ID, types.RoleOwner, types.RoleUser, false,
		[]CollectionGrantInput{{ID: foreign.ID}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Edit error = %v, want ErrNotFound", err)
	}
	// Nothing must have been written.
	grants, _ := repos.GrantRepo.FindByOrgAndUser(ctx, org.ID, member.ID)
	if len(grants) != 0 {
		t.Fatalf("grants = %+v, want none", grants)
	}
}

func TestDeleteMembership(t *testing.T) {
	repos := repository.NewRepositories()
	notifier := newFakeNotifier()
	svc := NewMembershipService(repos, notifier)
	ctx := context.Background()
	owner := seedUser(t, repos, "owner@example.com")
	org, ownerMembership := seedOrg(t, repos, owner)
	member := seedUser(t, repos, "member@example.com")
	m := seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)

	// Admins may remove plain users.
	if err := svc.Delete(ctx, org.ID, m.ID, types.RoleAdmin); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := repos.MembershipRepo.FindByID(ctx, m.ID); got != nil {
		t.Fatal("membership still present after delete")
	}
	if len(notifier.updates[member.ID]) == 0 {
		t.Error("removed member was not notified")
	}

	// Admins may not remove admins or owners.
	admin := seedUser(t, repos, "admin@example.com")
	adminMembership := seedMember(t, repos, org, admin, types.RoleAdmin, types.StatusConfirmed)
	if err := svc.Delete(ctx, org.ID, adminMembership.ID, types.RoleAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Delete admin by admin = %v, want ErrUnauthorized", err)
	}

	// The last owner cannot be removed, even by an owner.
	if err := svc.Delete(ctx, org.ID, ownerMembership.ID, types.RoleOwner); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("Delete last owner = %v, want ErrLastOwner", err)
	}
}

func TestLeave(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewMembershipService(repos, nil)
	ctx := context.Background()
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)

	// Sole owner cannot leave.
	if err := svc.Leave(ctx, org.ID, owner.ID); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("Leave sole owner = %v, want ErrLastOwner", err)
	}

	// A non-member cannot leave.
	stranger := seedUser(t, repos, "stranger@example.com")
	if err := svc.Leave(ctx, org.ID, stranger.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("Leave non-member = %v, want ErrNotMember", err)
	}

	// A regular member can, and their grants go with them.
	member := seedUser(t, repos, "member@example.com")
	seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)
	col := seedCollection(t, repos, org, "Shared")
	repos.GrantRepo.Upsert(ctx, &repository.CollectionGrant{CollectionID: col.ID, UserID: member.ID})
	if err := svc.Leave(ctx, org.ID, member.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	grants, _ := repos.GrantRepo.FindByOrgAndUser(ctx, org.ID, member.ID)
	if len(grants) != 0 {
		t.Fatalf("grants after leave = %+v, want none", grants)
	}
}

func TestGetReturnsGrants(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewMembershipService(repos, nil)
	ctx := context.Background()
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	member := seedUser(t, repos, "member@example.com")
	m := seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)
	col := seedCollection(t, repos, org, "Shared")
	repos.GrantRepo.Upsert(ctx, &repository.CollectionGrant{CollectionID: col.ID, UserID: member.ID, ReadOnly: true})

	got, grants, err := svc.Get(ctx, org.ID, m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != m.ID {
		t.Errorf("membership id = %s, want %s", got.ID, m.ID)
	}
	if len(grants) != 1 || !grants[0].ReadOnly {
		t.Errorf("grants = %+v, want one read-only grant", grants)
	}

	// Membership in a different org is not found through this org.
	other := seedUser(t, repos, "other@example.com")
	otherOrg, _ := seedOrg(t, repos, other)
	if _, _, err := svc.Get(ctx, otherOrg.ID, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get cross-org = %v, want ErrNotFound", err)
	}
}
