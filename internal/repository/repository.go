package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// ============================================
// Models / Entities
// ============================================

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Key          string
	RevisionDate time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Membership is a user's relationship to one organization: role, lifecycle
// status and collection access mode. Key holds the organization key wrapped
// for this user; it is only populated once the membership is Confirmed.
type Membership struct {
	ID             string
	UserID         string
	OrganizationID string
	Role           types.MembershipRole
	Status         types.MembershipStatus
	AccessAll      bool
	Key            string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	User           *User
}

type Organization struct {
	ID           string
	Name         string
	BillingEmail string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Collection struct {
	ID             string
	OrganizationID string
	Name           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CollectionGrant is an explicit (collection, user) access record, meaningful
// only while the member's AccessAll is false. At most one grant exists per
// (collection, user) pair.
type CollectionGrant struct {
	CollectionID string
	UserID       string
	ReadOnly     bool
}

type Cipher struct {
	ID             string
	OrganizationID string
	Type           int
	Name           string
	Data           string
	RevisionDate   time.Time
	CreatedAt      time.Time
}

type CollectionCipher struct {
	CollectionID string
	CipherID     string
}

// Invitation marks a user account that was created purely to satisfy an
// organization invite.
type Invitation struct {
	Email     string
	CreatedAt time.Time
}

// ============================================
// Repository Interfaces
// ============================================

// Find* methods return (nil, nil) when the entity does not exist.

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	BumpRevision(ctx context.Context, userID string) error
}

type OrganizationRepository interface {
	Create(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id string) (*Organization, error)
	Update(ctx context.Context, org *Organization) error
	Delete(ctx context.Context, id string) error
}

type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	FindByID(ctx context.Context, id string) (*Membership, error)
	FindByIDAndOrg(ctx context.Context, id, orgID string) (*Membership, error)
	FindByUserAndOrg(ctx context.Context, userID, orgID string) (*Membership, error)
	FindByOrg(ctx context.Context, orgID string) ([]*Membership, error)
	FindByUser(ctx context.Context, userID string) ([]*Membership, error)
	FindByOrgAndRole(ctx context.Context, orgID string, role types.MembershipRole) ([]*Membership, error)
	Update(ctx context.Context, m *Membership) error
	Delete(ctx context.Context, id string) error
	DeleteByOrg(ctx context.Context, orgID string) error
}

type CollectionRepository interface {
	Create(ctx context.Context, c *Collection) error
	FindByID(ctx context.Context, id string) (*Collection, error)
	FindByIDAndOrg(ctx context.Context, id, orgID string) (*Collection, error)
	FindByOrg(ctx context.Context, orgID string) ([]*Collection, error)
	// FindByUser returns the union of collections in organizations where the
	// user's membership has AccessAll, and collections explicitly granted.
	FindByUser(ctx context.Context, userID string) ([]*Collection, error)
	Update(ctx context.Context, c *Collection) error
	Delete(ctx context.Context, id string) error
	DeleteByOrg(ctx context.Context, orgID string) error
}

type GrantRepository interface {
	// Upsert replaces any prior grant for the same (collection, user) pair.
	Upsert(ctx context.Context, g *CollectionGrant) error
	Find(ctx context.Context, collectionID, userID string) (*CollectionGrant, error)
	FindByCollection(ctx context.Context, collectionID string) ([]*CollectionGrant, error)
	FindByOrgAndUser(ctx context.Context, orgID, userID string) ([]*CollectionGrant, error)
	Delete(ctx context.Context, collectionID, userID string) error
	DeleteByCollection(ctx context.Context, collectionID string) error
	DeleteByOrgAndUser(ctx context.Context, orgID, userID string) error
	// DeleteOrphans removes grants whose collection or membership no longer
	// exists. Used by the nightly consistency sweep.
	DeleteOrphans(ctx context.Context) (int, error)
}

type CipherRepository interface {
	Create(ctx context.Context, c *Cipher) error
	FindByID(ctx context.Context, id string) (*Cipher, error)
	FindByOrg(ctx context.Context, orgID string) ([]*Cipher, error)
	AttachCollection(ctx context.Context, cipherID, collectionID string) error
	FindCollectionIDs(ctx context.Context, cipherID string) ([]string, error)
	DeleteByOrg(ctx context.Context, orgID string) error
}

type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	FindByEmail(ctx context.Context, email string) (*Invitation, error)
	Delete(ctx context.Context, email string) error
}

// TxManager scopes a function to one store transaction. Nested calls join the
// surrounding transaction.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ============================================
// Repositories Container
// ============================================

type Repositories struct {
	UserRepo       UserRepository
	OrgRepo        OrganizationRepository
	MembershipRepo MembershipRepository
	CollectionRepo CollectionRepository
	GrantRepo      GrantRepository
	CipherRepo     CipherRepository
	InvitationRepo InvitationRepository
	Tx             TxManager
}

// NewRepositories creates in-memory repositories (for tests/fallback).
func NewRepositories() *Repositories {
	store := newMemoryStore()
	return &Repositories{
		UserRepo:       &memoryUserRepository{store: store},
		OrgRepo:        &memoryOrganizationRepository{store: store},
		MembershipRepo: &memoryMembershipRepository{store: store},
		CollectionRepo: &memoryCollectionRepository{store: store},
		GrantRepo:      &memoryGrantRepository{store: store},
		CipherRepo:     &memoryCipherRepository{store: store},
		InvitationRepo: &memoryInvitationRepository{store: store},
		Tx:             &memoryTxManager{},
	}
}

// NewPgRepositories creates PostgreSQL-backed repositories.
func NewPgRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepo:       &pgUserRepository{pool: pool},
		OrgRepo:        &pgOrganizationRepository{pool: pool},
		MembershipRepo: &pgMembershipRepository{pool: pool},
		CollectionRepo: &pgCollectionRepository{pool: pool},
		GrantRepo:      &pgGrantRepository{pool: pool},
		CipherRepo:     &pgCipherRepository{pool: pool},
		InvitationRepo: &pgInvitationRepository{pool: pool},
		Tx:             &pgTxManager{pool: pool},
	}
}
