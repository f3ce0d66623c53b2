package handlers

import (
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/licensedesk/backend/internal/config"
	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/middleware"
	"github.com/licensedesk/backend/internal/models"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type AuthHandler struct {
	cfg *config.Config
	db  *database.DB
}

func NewAuthHandler(cfg *config.Config, db *database.DB) *AuthHandler {
	return &AuthHandler{cfg: cfg, db: db}
}

// Register creates a new profile and returns a session token
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(req.Email) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid email address",
		})
	}
	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Password must be at least 8 characters",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create account",
		})
	}

	profile := models.Profile{
		Email:    req.Email,
		Password: string(hashedPassword),
		FullName: req.FullName,
		IsActive: true,
	}
	if err := h.db.Gorm.Create(&profile).Error; err != nil {
		log.Printf("Failed to create profile: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "User already exists",
		})
	}

	token, err := middleware.GenerateToken(&profile, h.cfg)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create session",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":       profile.ID,
			"email":    profile.Email,
			"fullName": profile.FullName,
		},
		"token": token,
	})
}

// Login authenticates a profile and returns a session token
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	var profile models.Profile
	err := h.db.Gorm.Where("LOWER(email) = ?", strings.ToLower(req.Email)).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid email or password",
		})
	}
	if err != nil {
		log.Printf("Login lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "An error occurred processing your request",
		})
	}

	if !profile.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User account is disabled",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid email or password",
		})
	}

	// 2FA gate for accounts that enabled it
	if profile.TwoFactorEnabled {
		if req.Code == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success":      false,
				"message":      "2FA code required",
				"requires_2fa": true,
			})
		}
		if !totp.Validate(req.Code, profile.TwoFactorSecret) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid 2FA code",
			})
		}
	}

	now := time.Now().UTC()
	h.db.Gorm.Model(&models.Profile{}).Where("id = ?", profile.ID).UpdateColumn("last_login", now)

	token, err := middleware.GenerateToken(&profile, h.cfg)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create session",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":       profile.ID,
			"email":    profile.Email,
			"fullName": profile.FullName,
			"isAdmin":  profile.IsAdmin,
		},
		"token": token,
	})
}

// Logout revokes the current session token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := middleware.GetCurrentToken(c)
	if token != "" {
		ttl := time.Duration(h.cfg.JWTExpireHours) * time.Hour
		if err := h.db.BlacklistToken(token, ttl); err != nil {
			log.Printf("Failed to blacklist token: %v", err)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Me returns the current profile
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	profile := middleware.GetCurrentProfile(c)
	if profile == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    profile,
	})
}

// ChangePassword updates the current profile's password
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	profile := middleware.GetCurrentProfile(c)
	if profile == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.CurrentPassword)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Current password is incorrect",
		})
	}

	if len(req.NewPassword) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Password must be at least 8 characters",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update password",
		})
	}

	if err := h.db.Gorm.Model(&models.Profile{}).Where("id = ?", profile.ID).
		UpdateColumn("password", string(hashedPassword)).Error; err != nil {
		log.Printf("Failed to update password for %s: %v", profile.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update password",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password changed successfully",
	})
}

// CheckAdmin reports whether the current session belongs to an admin.
// The decision is made from the profile row, never from a client flag.
func (h *AuthHandler) CheckAdmin(c *fiber.Ctx) error {
	profile := middleware.GetCurrentProfile(c)
	if profile == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	return c.JSON(fiber.Map{
		"isAdmin": profile.IsAdmin,
	})
}
