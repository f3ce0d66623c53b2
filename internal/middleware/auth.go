package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/licensedesk/backend/internal/config"
	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/models"
)

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// GenerateToken generates a new JWT token for a profile
func GenerateToken(profile *models.Profile, cfg *config.Config) (string, error) {
	claims := JWTClaims{
		UserID:  profile.ID,
		Email:   profile.Email,
		IsAdmin: profile.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(cfg.JWTExpireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "licensedesk",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// AuthRequired middleware to protect routes
func AuthRequired(cfg *config.Config, db *database.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Missing authorization header",
			})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid authorization header format",
			})
		}

		tokenString := parts[1]

		// Check if token is blacklisted (user logged out)
		if db.IsTokenBlacklisted(tokenString) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Token has been revoked (logged out)",
			})
		}

		// Parse and validate token
		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid or expired token",
			})
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid token claims",
			})
		}

		// Check if profile still exists and is active
		var profile models.Profile
		if err := db.Gorm.Where("id = ?", claims.UserID).First(&profile).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
			})
		}

		if !profile.IsActive {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User account is disabled",
			})
		}

		// Store profile info in context. is_admin comes from the row just
		// read, not the token, so a stale claim cannot grant admin access.
		c.Locals("profile", &profile)
		c.Locals("userID", profile.ID)
		c.Locals("isAdmin", profile.IsAdmin)
		c.Locals("token", tokenString)

		return c.Next()
	}
}

// AdminOnly middleware to restrict to admin profiles
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isAdmin, ok := c.Locals("isAdmin").(bool)
		if !ok || !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Admin access required",
			})
		}
		return c.Next()
	}
}

// GetCurrentProfile returns the current profile from context
func GetCurrentProfile(c *fiber.Ctx) *models.Profile {
	profile, ok := c.Locals("profile").(*models.Profile)
	if !ok {
		return nil
	}
	return profile
}

// GetCurrentUserID returns the current profile ID from context
func GetCurrentUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals("userID").(string)
	if !ok {
		return ""
	}
	return userID
}

// GetCurrentToken returns the raw bearer token from context
func GetCurrentToken(c *fiber.Ctx) string {
	token, ok := c.Locals("token").(string)
	if !ok {
		return ""
	}
	return token
}
