package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/sync"
)

// Scheduler handles scheduled maintenance tasks
type Scheduler struct {
	cron      *cron.Cron
	grantRepo repository.GrantRepository
	hub       *sync.Hub
}

// NewScheduler creates a new scheduler
func NewScheduler(grantRepo repository.GrantRepository, hub *sync.Hub) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		grantRepo: grantRepo,
		hub:       hub,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Run every day at 3 AM - sweep orphaned collection grants
	s.cron.AddFunc("0 3 * * *", func() {
		log.Println("[Cron] Running orphaned grant sweep...")
		s.sweepOrphanedGrants()
	})

	// Run every hour - report connected sync clients
	s.cron.AddFunc("0 * * * *", func() {
		s.reportConnectedClients()
	})

	s.cron.Start()
	log.Println("[Cron] Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Cron] Scheduler stopped")
}

// sweepOrphanedGrants deletes grants whose collection is gone or whose user
// no longer has a membership in the collection's organization. Normal
// operation removes grants in the same transaction as their owner, so this
// is a safety net against interrupted deletes.
func (s *Scheduler) sweepOrphanedGrants() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := s.grantRepo.DeleteOrphans(ctx)
	if err != nil {
		log.Printf("[Cron] Error sweeping orphaned grants: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[Cron] Removed %d orphaned grants", removed)
	}
}

// reportConnectedClients logs how many sync clients are connected
func (s *Scheduler) reportConnectedClients() {
	if s.hub == nil {
		return
	}
	log.Printf("[Cron] Connected sync clients: %d", s.hub.GetConnectedClientsCount())
}

// ManualTrigger allows manual triggering of maintenance jobs (for testing)
func (s *Scheduler) ManualTrigger(checkType string) {
	switch checkType {
	case "orphans":
		s.sweepOrphanedGrants()
	case "clients":
		s.reportConnectedClients()
	case "all":
		s.sweepOrphanedGrants()
		s.reportConnectedClients()
	}
}
