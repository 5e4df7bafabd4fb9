package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// ============================================
// Transaction plumbing
// ============================================

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so repository methods
// run against the surrounding transaction when one is in scope.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

func q(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

type pgTxManager struct {
	pool *pgxpool.Pool
}

func (m *pgTxManager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		// Already inside a transaction, join it.
		return fn(ctx)
	}
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ============================================
// PostgreSQL User Repository
// ============================================

type pgUserRepository struct {
	pool *pgxpool.Pool
}

func (r *pgUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	query := `
		INSERT INTO users (id, email, name, password_hash, key)
		VALUES ($1, LOWER($2), $3, $4, $5)
		RETURNING revision_date, created_at, updated_at
	`
	return q(ctx, r.pool).QueryRow(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Key,
	).Scan(&user.RevisionDate, &user.CreatedAt, &user.UpdatedAt)
}

const userColumns = `id, email, name, password_hash, key, revision_date, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Key,
		&user.RevisionDate, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = LOWER($1)`
	return scanUser(q(ctx, r.pool).QueryRow(ctx, query, email))
}

func (r *pgUserRepository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users SET email = LOWER($2), name = $3, password_hash = $4, key = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	return q(ctx, r.pool).QueryRow(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Key,
	).Scan(&user.UpdatedAt)
}

func (r *pgUserRepository) BumpRevision(ctx context.Context, userID string) error {
	query := `UPDATE users SET revision_date = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := q(ctx, r.pool).Exec(ctx, query, userID)
	return err
}

// ============================================
// PostgreSQL Organization Repository
// ============================================

type pgOrganizationRepository struct {
	pool *pgxpool.Pool
}

func (r *pgOrganizationRepository) Create(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	query := `
		INSERT INTO organizations (id, name, billing_email)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	return q(ctx, r.pool).QueryRow(ctx, query, org.ID, org.Name, org.BillingEmail).
		Scan(&org.CreatedAt, &org.UpdatedAt)
}

func (r *pgOrganizationRepository) FindByID(ctx context.Context, id string) (*Organization, error) {
	query := `SELECT id, name, billing_email, created_at, updated_at FROM organizations WHERE id = $1`
	org := &Organization{}
	err := q(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.BillingEmail, &org.CreatedAt, &org.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (r *pgOrganizationRepository) Update(ctx context.Context, org *Organization) error {
	query := `
		UPDATE organizations SET name = $2, billing_email = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	return q(ctx, r.pool).QueryRow(ctx, query, org.ID, org.Name, org.BillingEmail).
		Scan(&org.UpdatedAt)
}

func (r *pgOrganizationRepository) Delete(ctx context.Context, id string) error {
	_, err := q(ctx, r.pool).Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	return err
}

// ============================================
// PostgreSQL Membership Repository
// ============================================

type pgMembershipRepository struct {
	pool *pgxpool.Pool
}

const membershipColumns = `m.id, m.user_id, m.organization_id, m.role, m.status, m.access_all, m.key, m.created_at, m.updated_at`

func (r *pgMembershipRepository) Create(ctx context.Context, m *Membership) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO memberships (id, user_id, organization_id, role, status, access_all, key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return q(ctx, r.pool).QueryRow(ctx, query,
		m.ID, m.UserID, m.OrganizationID, int(m.Role), int(m.Status), m.AccessAll, m.Key,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func scanMembership(row pgx.Row) (*Membership, error) {
	m := &Membership{}
	var role, status int
	err := row.Scan(
		&m.ID, &m.UserID, &m.OrganizationID, &role, &status, &m.AccessAll, &m.Key,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Role = types.MembershipRole(role)
	m.Status = types.MembershipStatus(status)
	return m, nil
}

func (r *pgMembershipRepository) FindByID(ctx context.Context, id string) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships m WHERE m.id = $1`
	return scanMembership(q(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *pgMembershipRepository) FindByIDAndOrg(ctx context.Context, id, orgID string) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships m WHERE m.id = $1 AND m.organization_id = $2`
	return scanMembership(q(ctx, r.pool).QueryRow(ctx, query, id, orgID))
}

func (r *pgMembershipRepository) FindByUserAndOrg(ctx context.Context, userID, orgID string) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships m WHERE m.user_id = $1 AND m.organization_id = $2`
	return scanMembership(q(ctx, r.pool).QueryRow(ctx, query, userID, orgID))
}

func (r *pgMembershipRepository) collectMemberships(rows pgx.Rows) ([]*Membership, error) {
	defer rows.Close()
	var result []*Membership
	for rows.Next() {
		m := &Membership{User: &User{}}
		var role, status int
		err := rows.Scan(
			&m.ID, &m.UserID, &m.OrganizationID, &role, &status, &m.AccessAll, &m.Key,
			&m.CreatedAt, &m.UpdatedAt,
			&m.User.ID, &m.User.Email, &m.User.Name,
		)
		if err != nil {
			return nil, err
		}
		m.Role = types.MembershipRole(role)
		m.Status = types.MembershipStatus(status)
		result = append(result, m)
	}
	return result, rows.Err()
}

const membershipWithUserQuery = `
	SELECT ` + membershipColumns + `, u.id, u.email, u.name
	FROM memberships m
	JOIN users u ON u.id = m.user_id
`

func (r *pgMembershipRepository) FindByOrg(ctx context.Context, orgID string) ([]*Membership, error) {
	rows, err := q(ctx, r.pool).Query(ctx, membershipWithUserQuery+` WHERE m.organization_id = $1 ORDER BY m.created_at`, orgID)
	if err != nil {
		return nil, err
	}
	return r.collectMemberships(rows)
}

func (r *pgMembershipRepository) FindByUser(ctx context.Context, userID string) ([]*Membership, error) {
	rows, err := q(ctx, r.pool).Query(ctx, membershipWithUserQuery+` WHERE m.user_id = $1 ORDER BY m.created_at`, userID)
	if err != nil {
		return nil, err
	}
	return r.collectMemberships(rows)
}

func (r *pgMembershipRepository) FindByOrgAndRole(ctx context.Context, orgID string, role types.MembershipRole) ([]*Membership, error) {
	rows, err := q(ctx, r.pool).Query(ctx, membershipWithUserQuery+` WHERE m.organization_id = $1 AND m.role = $2`, orgID, int(role))
	if err != nil {
		return nil, err
	}
	return r.collectMemberships(rows)
}

func (r *pgMembershipRepository) Update(ctx context.Context, m *Membership) error {
	query := `
		UPDATE memberships SET role = $2, status = $3, access_all = $4, key = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	return q(ctx, r.pool).QueryRow(ctx, query,
		m.ID, int(m.Role), int(m.Status), m.AccessAll, m.Key,
	).Scan(&m.UpdatedAt)
}

func (r *pgMembershipRepository) Delete(ctx context.Context, id string) error {
	_, err := q(ctx, r.pool).Exec(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	return err
}

func (r *pgMembershipRepository) DeleteByOrg(ctx context.Context, orgID string) error {
	_, err := q(ctx, r.pool).Exec(ctx, `DELETE FROM memberships WHERE organization_id = $1`, orgID)
	return err
}

// ============================================
// PostgreSQL Collection Repository
// ============================================

type pgCollectionRepository struct {
	pool *pgxpool.Pool
}

func (r *pgCollectionRepository) Create(ctx context.Context, c *Collection) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO collections (id, organization_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	return q(ctx, r.pool).QueryRow(ctx, query, c.ID, c.OrganizationID, c.Name).
		Scan(&c.CreatedAt, &c.UpdatedAt)
}

func scanCollection(row pgx.Row) (*Collection, error) {
	c := &Collection{}
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

const collectionColumns = `id, organization_id, name, created_at, updated_at`

func (r *pgCollectionRepository) FindByID(ctx context.Context, id string) (*Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1`
	return scanCollection(q(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *pgCollectionRepository) FindByIDAndOrg(ctx context.Context, id, orgID string) (*Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1 AND organization_id = $2`
	return scanCollection(q(ctx, r.pool).QueryRow(ctx, query, id, orgID))
}

func (r *pgCollectionRepository) collectCollections(rows pgx.Rows) ([]*Collection, error) {
	defer rows.Close()
	var result []*Collection
	for rows.Next() {
		c := &Collection{}
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *pgCollectionRepository) FindByOrg(ctx context.Context, orgID string) ([]*Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE organization_id = $1 ORDER BY created_at`
	rows, err := q(ctx, r.pool).Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	return r.collectCollections(rows)
}

func (r *pgCollectionRepository) FindByUser(ctx context.Context, userID string) ([]*Collection, error) {
	query := `
		SELECT DISTINCT c.id, c.organization_id, c.name, c.created_at, c.updated_at
		FROM collections c
		JOIN memberships m ON m.organization_id = c.organization_id AND m.user_id = $1
		LEFT JOIN collection_grants g ON g.collection_id = c.id AND g.user_id = $1
		WHERE m.access_all OR g.user_id IS NOT NULL
		ORDER BY c.created_at
	`
	rows, err := q(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return r.collectCollections(rows)
}

func (r *pgCollectionRepository) Update(ctx context.Context, c *Collection) error {
	query := `UPDATE collections SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	return q(ctx, r.pool).QueryRow(ctx, query, c.ID, c.Name).Scan(&c.UpdatedAt)
}

func (r *pgCollectionRepository) Delete(ctx context.Context, id string) error {
	_, err := q(ctx, r.pool).Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	return err
}

func (r *pgCollectionRepository) DeleteByOrg(ctx context.Context, orgID string) error {
	_, err := q(ctx, r.pool).Exec(ctx, `DELETE FROM collections WHERE organization_id = $1`, orgID)
	return err
}

// ============================================
// PostgreSQL Grant Repository
// ============================================

type pgGrantRepository struct {
	pool *pgxpool.Pool
}

func (r *pgGrantRepository) Upsert(ctx context.Context, g *CollectionGrant) error {
	query := `
		INSERT INTO collection_grants (collection_id, user_id, read_only)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection_id, user_id) DO UPDATE SET read_only = EXCLUDED.read_only
	`
	_, err := q(ctx, r.pool).Exec(ctx, query, g.CollectionID, g.UserID, g.ReadOnly)
	return err
}

func (r *pgGrantRepository) Find(ctx context.Context, collectionID, userID string) (*CollectionGrant, error) {
	query := `SELECT collection_id, user_id, read_only FROM collection_grants WHERE collection_id = $1 AND user_id = $2`
	g := &CollectionGrant{}
	err := q(ctx, r.pool).QueryRow(ctx, query, collectionID, userID).
		Scan(&g.CollectionID, &g.UserID, &g.ReadOnly)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *pgGrantRepository) collectGrants(rows pgx.Rows) ([]*CollectionGrant, error) {
	defer rows.Close()
	var result []*CollectionGrant
	for rows.Next() {
		g := &CollectionGrant{}
		if err := rows.Scan(&g.CollectionID, &g.UserID, &g.ReadOnly); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *pgGrantRepository) FindByCollection(ctx context.Context, collectionID string) ([]*CollectionGrant, error) {
	query := `SELECT collection_id, user_id, read_only FROM collection_grants WHERE collection_id = $1`
	rows, err := q(ctx, r.pool).Query(ctx, query, collectionID)
	if err != nil {
		return nil, err
	}
	return r.collectGrants(rows)
}

func (r *pgGrantRepository) FindByOrgAndUser(ctx context.Context, orgID, userID string) ([]*CollectionGrant, error) {
	query := `
		SELECT g.collection_id, g.user_id, g.read_only
		FROM collection_grants g
		JOIN collections c ON c.id = g.collection_id
		WHERE c.organization_id = $1 AND g.user_id = $2
	`
	rows, err := q(ctx, r.pool).Query(ctx, query, orgID, userID)
	if err != nil {
		return nil, err
	}
	return r.collectGrants(rows)
}

func (r *pgGrantRepository) Delete(ctx context.Context, collectionID, userID string) error {
	_, err := q(ctx, r.pool).Exec(ctx,
		`DELETE FROM collection_grants WHERE collection_id = $1 AND user_id = $2`, collectionID, userID)
	return err
}

func (r *pgGrantRepository) DeleteByCollection(ctx context.Context, collectionID string) error {
	_, err := q(ctx, r.pool).Exec(ctx,
		`DELETE FROM collection_grants WHERE collection_id = $1`, collectionID)
	return err
}

func (r *pgGrantRepository) DeleteByOrgAndUser(ctx context.Context, orgID, userID string) error {
	query := `
		DELETE FROM collection_grants g
		USING collections c
		WHERE c.id = g.collection_id AND c.organization_id = $1 AND g.user_id = $2
	`
	_, err := q(ctx, r.pool).Exec(ctx, query, orgID, userID)
	return err
}

func (r *pgGrantRepository) DeleteOrphans(ctx context.Context) (int, error) {
	query := `
		DELETE FROM collection_grants g
		WHERE NOT EXISTS (SELECT 1 FROM collections c WHERE c.id = g.collection_id)
		   OR NOT EXISTS (
			SELECT 1 FROM memberships m
			JOIN collections c ON c.organization_id = m.organization_id
			WHERE c.id = g.collection_id AND m.user_id = g.user_id
		   )
	`
	tag, err := q(ctx, r.pool).Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ============================================
// PostgreSQL Cipher Repository
// ============================================

type pgCipherRepository struct {
	pool *pgxpool.Pool
}

func (r *pgCipherRepository) Create(ctx context.Context, c *Cipher) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO ciphers (id, organization_id, type, name, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING revision_date, created_at
	`
	return q(ctx, r.pool).QueryRow(ctx, query,
		c.ID, c.OrganizationID, c.Type, c.Name, c.Data,
	).Scan(&c.RevisionDate, &c.CreatedAt)
}

func (r *pgCipherRepository) FindByID(ctx context.Context, id string) (*Cipher, error) {
	query := `SELECT id, organization_id, type, name, data, revision_date, created_at FROM ciphers WHERE id = $1`
	c := &Cipher{}
	err := q(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&c.ID, &c.OrganizationID, &c.Type, &c.Name, &c.Data, &c.RevisionDate, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *pgCipherRepository) FindByOrg(ctx context.Context, orgID string) ([]*Cipher, error) {
	query := `SELECT id, organization_id, type, name, data, revision_date, created_at FROM ciphers WHERE organization_id = $1 ORDER BY created_at`
	rows, err := q(ctx, r.pool).Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Cipher
	for rows.Next() {
		c := &Cipher{}
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Type, &c.Name, &c.Data, &c.RevisionDate, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *pgCipherRepository) AttachCollection(ctx context.Context, cipherID, collectionID string) error {
	query := `
		INSERT INTO collection_ciphers (collection_id, cipher_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := q(ctx, r.pool).Exec(ctx, query, collectionID, cipherID)
	return err
}

func (r *pgCipherRepository) FindCollectionIDs(ctx context.Context, cipherID string) ([]string, error) {
	rows, err := q(ctx, r.pool).Query(ctx,
		`SELECT collection_id FROM collection_ciphers WHERE cipher_id = $1`, cipherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgCipherRepository) DeleteByOrg(ctx context.Context, orgID string) error {
	_, err := q(ctx, r.pool).Exec(ctx, `DELETE FROM ciphers WHERE organization_id = $1`, orgID)
	return err
}

// ============================================
// PostgreSQL Invitation Repository
// ============================================

type pgInvitationRepository struct {
	pool *pgxpool.Pool
}

func (r *pgInvitationRepository) Create(ctx context.Context, inv *Invitation) error {
	query := `
		INSERT INTO invitations (email)
		VALUES (LOWER($1))
		ON CONFLICT (email) DO NOTHING
	`
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	_, err := q(ctx, r.pool).Exec(ctx, query, inv.Email)
	return err
}

func (r *pgInvitationRepository) FindByEmail(ctx context.Context, email string) (*Invitation, error) {
	query := `SELECT email, created_at FROM invitations WHERE email = LOWER($1)`
	inv := &Invitation{}
	err := q(ctx, r.pool).QueryRow(ctx, query, email).Scan(&inv.Email, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *pgInvitationRepository) Delete(ctx context.Context, email string) error {
	_, err := q(ctx, r.pool).Exec(ctx, `DELETE FROM invitations WHERE email = LOWER($1)`, email)
	return err
}
