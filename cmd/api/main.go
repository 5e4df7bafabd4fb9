// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/keyhaven/vault-sync-backend/internal/api/handlers"
	"github.com/keyhaven/vault-sync-backend/internal/api/middleware"
	"github.com/keyhaven/vault-sync-backend/internal/config"
	"github.com/keyhaven/vault-sync-backend/internal/cron"
	"github.com/keyhaven/vault-sync-backend/internal/db"
	"github.com/keyhaven/vault-sync-backend/internal/email"
	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/service"
	"github.com/keyhaven/vault-sync-backend/internal/sync"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()

	// ============================================
	// Set Gin mode
	// ============================================
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Run Database Migrations FIRST
	// ============================================
	log.Println("🔄 Running database migrations...")
	migrationsPath := "./internal/db/migrations"
	if err := db.RunMigrations(cfg.DatabaseURL, migrationsPath); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// ============================================
	// Initialize PostgreSQL
	// ============================================
	pgDB, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to PostgreSQL: %v", err)
	}
	defer pgDB.Close()

	// ============================================
	// Initialize Repositories
	// ============================================
	repos := repository.NewPgRepositories(pgDB.Pool)
	log.Println("📦 Repositories initialized")

	// ============================================
	// Initialize Redis (optional)
	// ============================================
	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (continuing without cache)", err)
			redisDB = nil
		} else {
			defer redisDB.Close()
			log.Println("⚡ Redis cache enabled")
		}
	}

	// ============================================
	// Initialize Email Service (optional)
	// ============================================
	var emailSvc *email.Service
	if cfg.SMTPHost != "" {
		emailSvc = email.NewService(&email.Config{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			User:        cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			From:        cfg.SMTPFrom,
			FromName:    cfg.SMTPFromName,
			UseTLS:      cfg.SMTPUseTLS,
			WebVaultURL: cfg.WebVaultURL,
		})
		log.Println("📧 Email service initialized")
	} else {
		log.Println("⚠️  Email not configured (SMTP_HOST not set)")
	}

	// ============================================
	// Initialize Sync Notification Hub
	// ============================================
	hub := sync.NewHub()
	go hub.Run()
	broadcaster := sync.NewBroadcaster(hub)

	// WebSocket handler with JWT secret for self-authentication
	wsHandler := sync.NewHandler(hub, cfg.JWTSecret)
	log.Println("🔌 Sync notification hub initialized")

	// ============================================
	// Initialize All Services
	// ============================================
	services := service.NewServices(&service.ServiceDeps{
		Config:   cfg,
		Repos:    repos,
		Notifier: broadcaster,
		EmailSvc: emailSvc,
		Redis:    redisDB,
	})
	log.Println("✨ All services initialized")

	// ============================================
	// Initialize Handlers
	// ============================================
	h := handlers.NewHandlers(services)

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	cronScheduler := cron.NewScheduler(repos.GrantRepo, hub)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:8081", "*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"database":   "connected",
			"cache":      getCacheStatus(redisDB),
			"ws_clients": hub.GetConnectedClientsCount(),
			"email":      getEmailStatus(emailSvc),
		})
	})

	// WebSocket route
	r.GET("/notifications/hub", wsHandler.HandleWebSocket)

	// ============================================
	// Protected routes (require auth middleware)
	// ============================================
	protected := r.Group("")
	protected.Use(middleware.AuthMiddleware(services.Auth))
	{
		protected.POST("/organizations", h.Organization.Create)

		// Revision marker for client-driven sync polling
		protected.GET("/accounts/revision-date", h.Account.RevisionDate)

		// Collections across all of the caller's organizations
		protected.GET("/collections", h.Collection.ListForUser)

		// Organization ciphers
		protected.GET("/ciphers/organization-details", h.Cipher.OrganizationDetails)
		protected.POST("/ciphers/import-organization", h.Cipher.Import)

		// Leaving needs a membership, not a role
		protected.POST("/organizations/:orgId/leave", h.Membership.Leave)

		// ============================================
		// Owner routes
		// ============================================
		owner := protected.Group("/organizations/:orgId")
		owner.Use(middleware.RequireOrgRole(services.Membership, types.RoleOwner))
		{
			owner.GET("", h.Organization.Get)
			owner.PUT("", h.Organization.Update)
			owner.POST("", h.Organization.Update)
			owner.DELETE("", h.Organization.Delete)
			owner.POST("/delete", h.Organization.Delete)
		}

		// ============================================
		// Admin routes
		// ============================================
		admin := protected.Group("/organizations/:orgId")
		admin.Use(middleware.RequireOrgRole(services.Membership, types.RoleAdmin))
		{
			// Collections
			collections := admin.Group("/collections")
			{
				collections.GET("", h.Collection.ListForOrganization)
				collections.POST("", h.Collection.Create)
				collections.GET("/:colId", h.Collection.GetDetails)
				collections.PUT("/:colId", h.Collection.Rename)
				collections.POST("/:colId", h.Collection.Rename)
				collections.DELETE("/:colId", h.Collection.Delete)
				collections.POST("/:colId/delete", h.Collection.Delete)
				collections.GET("/:colId/details", h.Collection.GetDetails)
				collections.GET("/:colId/users", h.Collection.ListUsers)
				collections.DELETE("/:colId/user/:orgUserId", h.Collection.RemoveUser)
				collections.POST("/:colId/delete-user/:orgUserId", h.Collection.RemoveUser)
			}

			// Memberships
			users := admin.Group("/users")
			{
				users.GET("", h.Membership.List)
				users.POST("/invite", h.Membership.Invite)
				users.GET("/:orgUserId", h.Membership.Get)
				users.PUT("/:orgUserId", h.Membership.Edit)
				users.POST("/:orgUserId", h.Membership.Edit)
				users.DELETE("/:orgUserId", h.Membership.Delete)
				users.POST("/:orgUserId/delete", h.Membership.Delete)
				users.POST("/:orgUserId/confirm", h.Membership.Confirm)
				users.POST("/:orgUserId/reinvite", h.Membership.Reinvite)
			}
		}
	}

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func getCacheStatus(redisDB *db.RedisDB) string {
	if redisDB != nil {
		return "connected"
	}
	return "disabled"
}

func getEmailStatus(emailSvc *email.Service) string {
	if emailSvc != nil {
		return "configured"
	}
	return "disabled"
}
