package service

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/keyhaven/vault-sync-backend/internal/config"
	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// fakeNotifier records sync updates so tests can assert who got told to
// resync.
type fakeNotifier struct {
	updates    map[string][]string
	orgUpdates map[string][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		updates:    make(map[string][]string),
		orgUpdates: make(map[string][]string),
	}
}

func (f *fakeNotifier) SendUserUpdate(userID string, updateType string) {
	f.updates[userID] = append(f.updates[userID], updateType)
}

func (f *fakeNotifier) SendOrgUpdate(orgID string, updateType string) {
	f.orgUpdates[orgID] = append(f.orgUpdates[orgID], updateType)
}

func seedUser(t *testing.T, repos *repository.Repositories, email string) *repository.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("master-hash"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user := &repository.User{Email: email, Name: email, PasswordHash: string(hash)}
	if err := repos.UserRepo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// seedOrg creates an organization with a confirmed Owner membership for the
// given user, plus a default collection, mirroring what Create does.
func seedOrg(t *testing.T, repos *repository.Repositories, owner *repository.User) (*repository.Organization, *repository.Membership) {
	t.Helper()
	ctx := context.Background()
	org := &repository.Organization{Name: "Acme", BillingEmail: owner.Email}
	if err := repos.OrgRepo.Create(ctx, org); err != nil {
		t.Fatalf("create org: %v", err)
	}
	membership := &repository.Membership{
		UserID:         owner.ID,
		OrganizationID: org.ID,
		Role:           types.RoleOwner,
		Status:         types.StatusConfirmed,
		AccessAll:      true,
		Key:            "wrapped-org-key",
	}
	if err := repos.MembershipRepo.Create(ctx, membership); err != nil {
		t.Fatalf("create owner membership: %v", err)
	}
	collection := &repository.Collection{OrganizationID: org.ID, Name: "Default Collection"}
	if err := repos.CollectionRepo.Create(ctx, collection); err != nil {
		t.Fatalf("create default collection: %v", err)
	}
	return org, membership
}

func seedMember(t *testing.T, repos *repository.Repositories, org *repository.Organization, user *repository.User, role types.MembershipRole, status types.MembershipStatus) *repository.Membership {
	t.Helper()
	membership := &repository.Membership{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           role,
		Status:         status,
	}
	if err := repos.MembershipRepo.Create(context.Background(), membership); err != nil {
		t.Fatalf("create membership: %v", err)
	}
	return membership
}

func seedCollection(t *testing.T, repos *repository.Repositories, org *repository.Organization, name string) *repository.Collection {
	t.Helper()
	collection := &repository.Collection{OrganizationID: org.ID, Name: name}
	if err := repos.CollectionRepo.Create(context.Background(), collection); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	return collection
}

func testAuthService(repos *repository.Repositories) AuthService {
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: 1}
	return NewAuthService(cfg, repos.UserRepo)
}
