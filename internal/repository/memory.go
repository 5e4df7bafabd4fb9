package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// ============================================
// In-Memory Repository Implementations (Fallback)
// ============================================

// memoryStore holds all entities behind one lock so cross-entity operations
// (cascades, the orphan sweep) see a consistent view.
type memoryStore struct {
	mu          sync.RWMutex
	users       map[string]*User
	orgs        map[string]*Organization
	memberships map[string]*Membership
	collections map[string]*Collection
	grants      map[string]*CollectionGrant
	ciphers     map[string]*Cipher
	colCiphers  map[string]CollectionCipher
	invitations map[string]*Invitation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       make(map[string]*User),
		orgs:        make(map[string]*Organization),
		memberships: make(map[string]*Membership),
		collections: make(map[string]*Collection),
		grants:      make(map[string]*CollectionGrant),
		ciphers:     make(map[string]*Cipher),
		colCiphers:  make(map[string]CollectionCipher),
		invitations: make(map[string]*Invitation),
	}
}

// dropCollectionCiphers removes the association rows for a collection, the
// same cleanup the FK cascade does in Postgres. Caller holds the lock.
func (s *memoryStore) dropCollectionCiphers(collectionID string) {
	for key, cc := range s.colCiphers {
		if cc.CollectionID == collectionID {
			delete(s.colCiphers, key)
		}
	}
}

func grantKey(collectionID, userID string) string {
	return collectionID + "|" + userID
}

// The in-memory store applies mutations directly; InTx provides scoping only,
// not rollback. Production runs on the PostgreSQL transaction manager.
type memoryTxManager struct{}

func (m *memoryTxManager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ============================================
// In-memory User Repository
// ============================================

type memoryUserRepository struct {
	store *memoryStore
}

func (r *memoryUserRepository) Create(ctx context.Context, user *User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(user.Email)
	now := time.Now()
	user.RevisionDate = now
	user.CreatedAt = now
	user.UpdatedAt = now
	r.store.users[user.ID] = user
	return nil
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if user, ok := r.store.users[id]; ok {
		return user, nil
	}
	return nil, nil
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, user := range r.store.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepository) Update(ctx context.Context, user *User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user.UpdatedAt = time.Now()
	r.store.users[user.ID] = user
	return nil
}

func (r *memoryUserRepository) BumpRevision(ctx context.Context, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if user, ok := r.store.users[userID]; ok {
		now := time.Now()
		user.RevisionDate = now
		user.UpdatedAt = now
	}
	return nil
}

// ============================================
// In-memory Organization Repository
// ============================================

type memoryOrganizationRepository struct {
	store *memoryStore
}

func (r *memoryOrganizationRepository) Create(ctx context.Context, org *Organization) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	now := time.Now()
	org.CreatedAt = now
	org.UpdatedAt = now
	r.store.orgs[org.ID] = org
	return nil
}

func (r *memoryOrganizationRepository) FindByID(ctx context.Context, id string) (*Organization, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if org, ok := r.store.orgs[id]; ok {
		return org, nil
	}
	return nil, nil
}

func (r *memoryOrganizationRepository) Update(ctx context.Context, org *Organization) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	org.UpdatedAt = time.Now()
	r.store.orgs[org.ID] = org
	return nil
}

func (r *memoryOrganizationRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.orgs, id)
	return nil
}

// ============================================
// In-memory Membership Repository
// ============================================

type memoryMembershipRepository struct {
	store *memoryStore
}

func (r *memoryMembershipRepository) withUser(m *Membership) *Membership {
	if m == nil {
		return nil
	}
	m.User = r.store.users[m.UserID]
	return m
}

func (r *memoryMembershipRepository) Create(ctx context.Context, m *Membership) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	r.store.memberships[m.ID] = m
	return nil
}

func (r *memoryMembershipRepository) FindByID(ctx context.Context, id string) (*Membership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if m, ok := r.store.memberships[id]; ok {
		return r.withUser(m), nil
	}
	return nil, nil
}

func (r *memoryMembershipRepository) FindByIDAndOrg(ctx context.Context, id, orgID string) (*Membership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if m, ok := r.store.memberships[id]; ok && m.OrganizationID == orgID {
		return r.withUser(m), nil
	}
	return nil, nil
}

func (r *memoryMembershipRepository) FindByUserAndOrg(ctx context.Context, userID, orgID string) (*Membership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, m := range r.store.memberships {
		if m.UserID == userID && m.OrganizationID == orgID {
			return r.withUser(m), nil
		}
	}
	return nil, nil
}

func (r *memoryMembershipRepository) findAll(match func(*Membership) bool) []*Membership {
	var result []*Membership
	for _, m := range r.store.memberships {
		if match(m) {
			result = append(result, r.withUser(m))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (r *memoryMembershipRepository) FindByOrg(ctx context.Context, orgID string) ([]*Membership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.findAll(func(m *Membership) bool { return m.OrganizationID == orgID }), nil
}

func (r *memoryMembershipRepository) FindByUser(ctx context.Context, userID string) ([]*Membership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.findAll(func(m *Membership) bool { return m.UserID == userID }), nil
}

func (r *memoryMembershipRepository) FindByOrgAndRole(ctx context.Context, orgID string, role types.MembershipRole) ([]*Membership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.findAll(func(m *Membership) bool {
		return m.OrganizationID == orgID && m.Role == role
	}), nil
}

func (r *memoryMembershipRepository) Update(ctx context.Context, m *Membership) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m.UpdatedAt = time.Now()
	r.store.memberships[m.ID] = m
	return nil
}

func (r *memoryMembershipRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.memberships, id)
	return nil
}

func (r *memoryMembershipRepository) DeleteByOrg(ctx context.Context, orgID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, m := range r.store.memberships {
		if m.OrganizationID == orgID {
			delete(r.store.memberships, id)
		}
	}
	return nil
}

// ============================================
// In-memory Collection Repository
// ============================================

type memoryCollectionRepository struct {
	store *memoryStore
}

func (r *memoryCollectionRepository) Create(ctx context.Context, c *Collection) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.store.collections[c.ID] = c
	return nil
}

func (r *memoryCollectionRepository) FindByID(ctx context.Context, id string) (*Collection, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if c, ok := r.store.collections[id]; ok {
		return c, nil
	}
	return nil, nil
}

func (r *memoryCollectionRepository) FindByIDAndOrg(ctx context.Context, id, orgID string) (*Collection, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if c, ok := r.store.collections[id]; ok && c.OrganizationID == orgID {
		return c, nil
	}
	return nil, nil
}

func sortCollections(result []*Collection) []*Collection {
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (r *memoryCollectionRepository) FindByOrg(ctx context.Context, orgID string) ([]*Collection, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*Collection
	for _, c := range r.store.collections {
		if c.OrganizationID == orgID {
			result = append(result, c)
		}
	}
	return sortCollections(result), nil
}

func (r *memoryCollectionRepository) FindByUser(ctx context.Context, userID string) ([]*Collection, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	seen := make(map[string]*Collection)
	for _, m := range r.store.memberships {
		if m.UserID != userID || !m.AccessAll {
			continue
		}
		for _, c := range r.store.collections {
			if c.OrganizationID == m.OrganizationID {
				seen[c.ID] = c
			}
		}
	}
	for _, g := range r.store.grants {
		if g.UserID != userID {
			continue
		}
		if c, ok := r.store.collections[g.CollectionID]; ok {
			seen[c.ID] = c
		}
	}
	result := make([]*Collection, 0, len(seen))
	for _, c := range seen {
		result = append(result, c)
	}
	return sortCollections(result), nil
}

func (r *memoryCollectionRepository) Update(ctx context.Context, c *Collection) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c.UpdatedAt = time.Now()
	r.store.collections[c.ID] = c
	return nil
}

func (r *memoryCollectionRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.collections, id)
	r.store.dropCollectionCiphers(id)
	return nil
}

func (r *memoryCollectionRepository) DeleteByOrg(ctx context.Context, orgID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, c := range r.store.collections {
		if c.OrganizationID == orgID {
			delete(r.store.collections, id)
			r.store.dropCollectionCiphers(id)
		}
	}
	return nil
}

// ============================================
// In-memory Grant Repository
// ============================================

type memoryGrantRepository struct {
	store *memoryStore
}

func (r *memoryGrantRepository) Upsert(ctx context.Context, g *CollectionGrant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.grants[grantKey(g.CollectionID, g.UserID)] = g
	return nil
}

func (r *memoryGrantRepository) Find(ctx context.Context, collectionID, userID string) (*CollectionGrant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if g, ok := r.store.grants[grantKey(collectionID, userID)]; ok {
		return g, nil
	}
	return nil, nil
}

func (r *memoryGrantRepository) FindByCollection(ctx context.Context, collectionID string) ([]*CollectionGrant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*CollectionGrant
	for _, g := range r.store.grants {
		if g.CollectionID == collectionID {
			result = append(result, g)
		}
	}
	return result, nil
}

func (r *memoryGrantRepository) FindByOrgAndUser(ctx context.Context, orgID, userID string) ([]*CollectionGrant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*CollectionGrant
	for _, g := range r.store.grants {
		if g.UserID != userID {
			continue
		}
		if c, ok := r.store.collections[g.CollectionID]; ok && c.OrganizationID == orgID {
			result = append(result, g)
		}
	}
	return result, nil
}

func (r *memoryGrantRepository) Delete(ctx context.Context, collectionID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.grants, grantKey(collectionID, userID))
	return nil
}

func (r *memoryGrantRepository) DeleteByCollection(ctx context.Context, collectionID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for key, g := range r.store.grants {
		if g.CollectionID == collectionID {
			delete(r.store.grants, key)
		}
	}
	return nil
}

func (r *memoryGrantRepository) DeleteByOrgAndUser(ctx context.Context, orgID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for key, g := range r.store.grants {
		if g.UserID != userID {
			continue
		}
		if c, ok := r.store.collections[g.CollectionID]; ok && c.OrganizationID == orgID {
			delete(r.store.grants, key)
		}
	}
	return nil
}

func (r *memoryGrantRepository) DeleteOrphans(ctx context.Context) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	removed := 0
	for key, g := range r.store.grants {
		c, ok := r.store.collections[g.CollectionID]
		if !ok {
			delete(r.store.grants, key)
			removed++
			continue
		}
		member := false
		for _, m := range r.store.memberships {
			if m.UserID == g.UserID && m.OrganizationID == c.OrganizationID {
				member = true
				break
			}
		}
		if !member {
			delete(r.store.grants, key)
			removed++
		}
	}
	return removed, nil
}

// ============================================
// In-memory Cipher Repository
// ============================================

type memoryCipherRepository struct {
	store *memoryStore
}

func (r *memoryCipherRepository) Create(ctx context.Context, c *Cipher) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now()
	c.RevisionDate = now
	c.CreatedAt = now
	r.store.ciphers[c.ID] = c
	return nil
}

func (r *memoryCipherRepository) FindByID(ctx context.Context, id string) (*Cipher, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if c, ok := r.store.ciphers[id]; ok {
		return c, nil
	}
	return nil, nil
}

func (r *memoryCipherRepository) FindByOrg(ctx context.Context, orgID string) ([]*Cipher, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*Cipher
	for _, c := range r.store.ciphers {
		if c.OrganizationID == orgID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *memoryCipherRepository) AttachCollection(ctx context.Context, cipherID, collectionID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := collectionID + "|" + cipherID
	r.store.colCiphers[key] = CollectionCipher{CollectionID: collectionID, CipherID: cipherID}
	return nil
}

func (r *memoryCipherRepository) FindCollectionIDs(ctx context.Context, cipherID string) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var ids []string
	for _, cc := range r.store.colCiphers {
		if cc.CipherID == cipherID {
			ids = append(ids, cc.CollectionID)
		}
	}
	return ids, nil
}

func (r *memoryCipherRepository) DeleteByOrg(ctx context.Context, orgID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, c := range r.store.ciphers {
		if c.OrganizationID == orgID {
			delete(r.store.ciphers, id)
			for key, cc := range r.store.colCiphers {
				if cc.CipherID == id {
					delete(r.store.colCiphers, key)
				}
			}
		}
	}
	return nil
}

// ============================================
// In-memory Invitation Repository
// ============================================

type memoryInvitationRepository struct {
	store *memoryStore
}

func (r *memoryInvitationRepository) Create(ctx context.Context, inv *Invitation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	inv.Email = strings.ToLower(inv.Email)
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	r.store.invitations[inv.Email] = inv
	return nil
}

func (r *memoryInvitationRepository) FindByEmail(ctx context.Context, email string) (*Invitation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if inv, ok := r.store.invitations[strings.ToLower(email)]; ok {
		return inv, nil
	}
	return nil, nil
}

func (r *memoryInvitationRepository) Delete(ctx context.Context, email string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.invitations, strings.ToLower(email))
	return nil
}
