package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/service"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

// AuthMiddleware validates JWT tokens and sets user context
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Printf("❌ [Auth] Missing Authorization header - Path: %s", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Printf("❌ [Auth] Invalid header format - Path: %s", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := parts[1]

		// Validate token
		token, err := authService.ValidateToken(tokenString)
		if err != nil || !token.Valid {
			log.Printf("❌ [Auth] Invalid token - Path: %s, Error: %v", c.Request.URL.Path, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// Extract user ID from token
		userID, err := authService.GetUserIDFromToken(token)
		if err != nil {
			log.Printf("❌ [Auth] Failed to extract userID - Path: %s, Error: %v", c.Request.URL.Path, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		// Set user ID in context for handlers
		c.Set("userID", userID)
		c.Next()
	}
}

// RequireOrgRole looks up the caller's membership in the :orgId organization
// and rejects the request unless the membership is Confirmed and at least
// minRole. The membership is stored in context for handlers that need the
// caller's exact role.
func RequireOrgRole(membershipSvc service.MembershipService, minRole types.MembershipRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := RequireUserID(c)
		if !ok {
			c.Abort()
			return
		}

		orgID := c.Param("orgId")
		if orgID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Organization id required"})
			c.Abort()
			return
		}

		membership, err := membershipSvc.GetByUserAndOrg(c.Request.Context(), userID, orgID)
		if err != nil || membership == nil {
			log.Printf("❌ [Auth] No membership - UserID: %s, OrgID: %s", userID, orgID)
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this organization"})
			c.Abort()
			return
		}
		if membership.Status != types.StatusConfirmed || membership.Role < minRole {
			log.Printf("❌ [Auth] Insufficient role - UserID: %s, OrgID: %s, Role: %s, Status: %s",
				userID, orgID, membership.Role, membership.Status)
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions for this organization"})
			c.Abort()
			return
		}

		c.Set("membership", membership)
		c.Next()
	}
}

// RequestLogger logs all incoming requests with details
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log after request
		duration := time.Since(start)
		status := c.Writer.Status()

		// Color code based on status
		statusEmoji := "✅"
		if status >= 400 && status < 500 {
			statusEmoji = "⚠️"
		} else if status >= 500 {
			statusEmoji = "❌"
		}

		log.Printf("%s [%s] %s %d - %v", statusEmoji, method, path, status, duration)

		// Log errors if any
		if len(c.Errors) > 0 {
			for _, e := range c.Errors {
				log.Printf("❌ [Error] %v", e.Err)
			}
		}
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("userID")
	if !exists {
		return ""
	}
	return userID.(string)
}

// RequireUserID returns error if user ID is not in context
func RequireUserID(c *gin.Context) (string, bool) {
	userID := GetUserID(c)
	if userID == "" {
		log.Printf("❌ [Auth] User not authenticated - Path: %s", c.Request.URL.Path)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}
	return userID, true
}

// GetMembership extracts the caller's membership stored by RequireOrgRole.
func GetMembership(c *gin.Context) *repository.Membership {
	v, exists := c.Get("membership")
	if !exists {
		return nil
	}
	m, _ := v.(*repository.Membership)
	return m
}
