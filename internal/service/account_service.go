package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/keyhaven/vault-sync-backend/internal/db"
	"github.com/keyhaven/vault-sync-backend/internal/repository"
)

// AccountService owns the per-user revision marker that connected clients poll
// (or receive over the sync channel) to know when to resync their vault.
type AccountService interface {
	GetRevision(ctx context.Context, userID string) (time.Time, error)
	BumpRevision(ctx context.Context, userID string) error
}

type accountService struct {
	userRepo repository.UserRepository
	redis    *db.RedisDB
}

func NewAccountService(userRepo repository.UserRepository, redis *db.RedisDB) AccountService {
	return &accountService{userRepo: userRepo, redis: redis}
}

func revisionCacheKey(userID string) string {
	return "revision:" + userID
}

func (s *accountService) GetRevision(ctx context.Context, userID string) (time.Time, error) {
	if s.redis != nil {
		var cached time.Time
		if err := s.redis.GetCache(ctx, revisionCacheKey(userID), &cached); err == nil {
			return cached, nil
		}
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return time.Time{}, ErrNotFound
	}
	if s.redis != nil {
		if err := s.redis.SetCache(ctx, revisionCacheKey(userID), user.RevisionDate, time.Hour); err != nil {
			log.Printf("[Account] failed to cache revision for %s: %v", userID, err)
		}
	}
	return user.RevisionDate, nil
}

func (s *accountService) BumpRevision(ctx context.Context, userID string) error {
	if err := s.userRepo.BumpRevision(ctx, userID); err != nil {
		return fmt.Errorf("failed to bump revision: %w", err)
	}
	if s.redis != nil {
		if err := s.redis.InvalidateCache(ctx, revisionCacheKey(userID)); err != nil {
			log.Printf("[Account] failed to invalidate revision cache for %s: %v", userID, err)
		}
	}
	return nil
}
