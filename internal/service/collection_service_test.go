package service

import (
	"context"
	"errors"
	"testing"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

func TestCollectionResolve(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewCollectionService(repos, nil)
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	otherOwner := seedUser(t, repos, "other@example.com")
	otherOrg, _ := seedOrg(t, repos, otherOwner)
	foreign := seedCollection(t, repos, otherOrg, "Foreign")
	ctx := context.Background()

	// A collection from another organization is a mismatch, not a 404.
	if _, err := svc.Rename(ctx, org.ID, foreign.ID, "Stolen"); !errors.Is(err, ErrOrgMismatch) {
		t.Errorf("foreign collection = %v, want ErrOrgMismatch", err)
	}
	if _, err := svc.Rename(ctx, org.ID, "00000000-0000-0000-0000-000000000000", "X"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown collection = %v, want ErrNotFound", err)
	}
}

func TestCollectionCreateAndRename(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewCollectionService(repos, nil)
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	ctx := context.Background()

	collection, err := svc.Create(ctx, org.ID, "Engineering")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if collection.OrganizationID != org.ID {
		t.Errorf("collection org = %s, want %s", collection.OrganizationID, org.ID)
	}

	renamed, err := svc.Rename(ctx, org.ID, collection.ID, "Platform")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed.Name != "Platform" {
		t.Errorf("renamed = %q", renamed.Name)
	}

	if _, err := svc.Create(ctx, "00000000-0000-0000-0000-000000000000", "X"); !errors.Is(err, ErrNotFound) {
		t.Errorf("create in unknown org = %v, want ErrNotFound", err)
	}
}

func TestCollectionDeleteRemovesGrants(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewCollectionService(repos, nil)
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	member := seedUser(t, repos, "member@example.com")
	seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)
	collection := seedCollection(t, repos, org, "Secrets")
	ctx := context.Background()

	if err := repos.GrantRepo.Upsert(ctx, &repository.CollectionGrant{CollectionID: collection.ID, UserID: member.ID}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	cipher := &repository.Cipher{OrganizationID: org.ID, Type: 1, Name: "login"}
	if err := repos.CipherRepo.Create(ctx, cipher); err != nil {
		t.Fatalf("seed cipher: %v", err)
	}
	if err := repos.CipherRepo.AttachCollection(ctx, cipher.ID, collection.ID); err != nil {
		t.Fatalf("attach cipher: %v", err)
	}

	if err := svc.Delete(ctx, org.ID, collection.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := repos.CollectionRepo.FindByID(ctx, collection.ID); got != nil {
		t.Error("collection still exists")
	}
	if grants, _ := repos.GrantRepo.FindByCollection(ctx, collection.ID); len(grants) != 0 {
		t.Errorf("grants remain: %d", len(grants))
	}
	// The cipher association must not dangle behind a deleted collection.
	if ids, _ := repos.CipherRepo.FindCollectionIDs(ctx, cipher.ID); len(ids) != 0 {
		t.Errorf("cipher still linked to %v", ids)
	}
}

func TestCollectionMutationsNotifyOrg(t *testing.T) {
	repos := repository.NewRepositories()
	notifier := newFakeNotifier()
	svc := NewCollectionService(repos, notifier)
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	ctx := context.Background()

	collection, err := svc.Create(ctx, org.ID, "Engineering")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Rename(ctx, org.ID, collection.ID, "Platform"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := svc.Delete(ctx, org.ID, collection.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got := notifier.orgUpdates[org.ID]
	if len(got) != 3 {
		t.Fatalf("org updates = %v, want 3", got)
	}
	for _, updateType := range got {
		if updateType != "sync_vault" {
			t.Errorf("update type = %q, want sync_vault", updateType)
		}
	}

	// A failed mutation must not broadcast.
	if _, err := svc.Rename(ctx, org.ID, collection.ID, "Gone"); err == nil {
		t.Fatal("rename of deleted collection succeeded")
	}
	if len(notifier.orgUpdates[org.ID]) != 3 {
		t.Errorf("failed mutation broadcast anyway: %v", notifier.orgUpdates[org.ID])
	}
}

func TestCollectionGetDetailsVisibility(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewCollectionService(repos, nil)
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	collection := seedCollection(t, repos, org, "Secrets")
	ctx := context.Background()

	granted := seedUser(t, repos, "granted@example.com")
	seedMember(t, repos, org, granted, types.RoleUser, types.StatusConfirmed)
	if err := repos.GrantRepo.Upsert(ctx, &repository.CollectionGrant{CollectionID: collection.ID, UserID: granted.ID, ReadOnly: true}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	ungranted := seedUser(t, repos, "ungranted@example.com")
	seedMember(t, repos, org, ungranted, types.RoleUser, types.StatusConfirmed)

	// Owner sees it through AccessAll.
	if _, err := svc.GetDetails(ctx, org.ID, collection.ID, owner.ID); err != nil {
		t.Errorf("owner GetDetails: %v", err)
	}
	// Explicit grant works too.
	if _, err := svc.GetDetails(ctx, org.ID, collection.ID, granted.ID); err != nil {
		t.Errorf("granted GetDetails: %v", err)
	}
	// A member without AccessAll or a grant sees nothing.
	if _, err := svc.GetDetails(ctx, org.ID, collection.ID, ungranted.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ungranted GetDetails = %v, want ErrNotFound", err)
	}
}

func TestCollectionListUsers(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewCollectionService(repos, nil)
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	collection := seedCollection(t, repos, org, "Secrets")
	member := seedUser(t, repos, "member@example.com")
	membership := seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)
	ctx := context.Background()

	if err := repos.GrantRepo.Upsert(ctx, &repository.CollectionGrant{CollectionID: collection.ID, UserID: member.ID, ReadOnly: true}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	details, err := svc.ListUsers(ctx, org.ID, collection.ID)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("details = %d, want 1", len(details))
	}
	if details[0].Membership.ID != membership.ID || !details[0].ReadOnly {
		t.Errorf("detail = membership %s readOnly %v", details[0].Membership.ID, details[0].ReadOnly)
	}
}

func TestCollectionRemoveUser(t *testing.T) {
	repos := repository.NewRepositories()
	svc := NewCollectionService(repos, nil)
	owner := seedUser(t, repos, "owner@example.com")
	org, _ := seedOrg(t, repos, owner)
	collection := seedCollection(t, repos, org, "Secrets")
	member := seedUser(t, repos, "member@example.com")
	membership := seedMember(t, repos, org, member, types.RoleUser, types.StatusConfirmed)
	ctx := context.Background()

	// Removing someone who was never assigned fails.
	if err := svc.RemoveUser(ctx, org.ID, collection.ID, membership.ID); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("unassigned = %v, want ErrNotAssigned", err)
	}

	if err := repos.GrantRepo.Upsert(ctx, &repository.CollectionGrant{CollectionID: collection.ID, UserID: member.ID}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	if err := svc.RemoveUser(ctx, org.ID, collection.ID, membership.ID); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	if grant, _ := repos.GrantRepo.Find(ctx, collection.ID, member.ID); grant != nil {
		t.Error("grant still exists")
	}

	// An unknown membership id reads as a missing user.
	err := svc.RemoveUser(ctx, org.ID, collection.ID, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown membership = %v, want wrapped ErrNotFound", err)
	}
}
