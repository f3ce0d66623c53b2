package handlers

import (
	"bytes"
	"encoding/base64"
	"image/png"

	"github.com/gofiber/fiber/v2"
	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/middleware"
	"github.com/licensedesk/backend/internal/models"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

type TwoFAHandler struct {
	db *database.DB
}

func NewTwoFAHandler(db *database.DB) *TwoFAHandler {
	return &TwoFAHandler{db: db}
}

// Setup generates a new 2FA secret and returns QR code
func (h *TwoFAHandler) Setup(c *fiber.Ctx) error {
	profile := middleware.GetCurrentProfile(c)
	if profile == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "LicenseDesk",
		AccountName: profile.Email,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate 2FA secret",
		})
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate QR code",
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to encode QR code",
		})
	}
	qrBase64 := base64.StdEncoding.EncodeToString(buf.Bytes())

	// Store secret temporarily (not enabled yet until verified)
	h.db.Gorm.Model(&models.Profile{}).Where("id = ?", profile.ID).Update("two_factor_secret", key.Secret())

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"secret":  key.Secret(),
			"qr_code": "data:image/png;base64," + qrBase64,
			"otpauth": key.URL(),
		},
	})
}

// Verify verifies the 2FA code and enables 2FA
func (h *TwoFAHandler) Verify(c *fiber.Ctx) error {
	profile := middleware.GetCurrentProfile(c)
	if profile == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Code is required",
		})
	}

	var fresh models.Profile
	if err := h.db.Gorm.Where("id = ?", profile.ID).First(&fresh).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to get user data",
		})
	}

	if fresh.TwoFactorSecret == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "2FA not set up. Please call setup first",
		})
	}

	if !totp.Validate(req.Code, fresh.TwoFactorSecret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid code. Please try again",
		})
	}

	h.db.Gorm.Model(&models.Profile{}).Where("id = ?", profile.ID).Update("two_factor_enabled", true)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "2FA enabled successfully",
	})
}

// Disable disables 2FA after re-verifying password and code
func (h *TwoFAHandler) Disable(c *fiber.Ctx) error {
	profile := middleware.GetCurrentProfile(c)
	if profile == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	var req struct {
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	var fresh models.Profile
	if err := h.db.Gorm.Where("id = ?", profile.ID).First(&fresh).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to get user data",
		})
	}

	if !fresh.TwoFactorEnabled {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "2FA is not enabled",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(fresh.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid password",
		})
	}

	if !totp.Validate(req.Code, fresh.TwoFactorSecret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid 2FA code",
		})
	}

	h.db.Gorm.Model(&models.Profile{}).Where("id = ?", profile.ID).Updates(map[string]interface{}{
		"two_factor_enabled": false,
		"two_factor_secret":  "",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "2FA disabled successfully",
	})
}

// Status returns 2FA status for current profile
func (h *TwoFAHandler) Status(c *fiber.Ctx) error {
	profile := middleware.GetCurrentProfile(c)
	if profile == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"enabled": profile.TwoFactorEnabled,
		},
	})
}
