package service

import (
	"errors"

	"github.com/keyhaven/vault-sync-backend/internal/config"
	"github.com/keyhaven/vault-sync-backend/internal/db"
	"github.com/keyhaven/vault-sync-backend/internal/email"
	"github.com/keyhaven/vault-sync-backend/internal/repository"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrOrgMismatch    = errors.New("collection and organization id do not match")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrInvalidRole    = errors.New("invalid type")
	ErrInvalidKey     = errors.New("invalid key provided")
	ErrInvalidState   = errors.New("user in invalid state")
	ErrLastOwner      = errors.New("can't delete the last owner")
	ErrNotMember      = errors.New("user not part of organization")
	ErrAlreadyMember  = errors.New("user already in organization")
	ErrEmailNotFound  = errors.New("user email does not exist")
	ErrNotAssigned    = errors.New("user not assigned to collection")
	ErrImportRole     = errors.New("only admins or owners can import into an organization")
	ErrImportAssign   = errors.New("failed to assign to collection")
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidPassword = errors.New("invalid password")

	// Reinvite is a deliberate product limitation, not a bug; keep the message.
	ErrNotImplemented = errors.New("this functionality is not implemented. The user needs to manually register before they can be accepted into the organization")
)

// SyncNotifier pushes update signals to connected clients so they resync.
// Implemented by the websocket broadcaster; nil-safe usage is the caller's job.
type SyncNotifier interface {
	SendUserUpdate(userID string, updateType string)
	SendOrgUpdate(orgID string, updateType string)
}

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth         AuthService
	Account      AccountService
	Organization OrganizationService
	Membership   MembershipService
	Collection   CollectionService
	Invitation   InvitationService
	Import       ImportService
	Cipher       CipherService
}

type ServiceDeps struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Notifier SyncNotifier
	EmailSvc *email.Service
	Redis    *db.RedisDB
}

func NewServices(deps *ServiceDeps) *Services {
	repos := deps.Repos
	auth := NewAuthService(deps.Config, repos.UserRepo)
	account := NewAccountService(repos.UserRepo, deps.Redis)
	cipher := NewCipherService(repos.CipherRepo)
	return &Services{
		Auth:         auth,
		Account:      account,
		Organization: NewOrganizationService(repos, auth, deps.Notifier),
		Membership:   NewMembershipService(repos, deps.Notifier),
		Collection:   NewCollectionService(repos, deps.Notifier),
		Invitation:   NewInvitationService(repos, deps.Config.InvitationsAllowed, deps.EmailSvc, deps.Notifier),
		Import:       NewImportService(repos, cipher, account, deps.Notifier),
		Cipher:       cipher,
	}
}
