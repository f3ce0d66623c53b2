package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/keygen"
	"github.com/licensedesk/backend/internal/middleware"
	"github.com/licensedesk/backend/internal/models"
	"github.com/licensedesk/backend/internal/services"
	"gorm.io/gorm"
)

// keyCreateAttempts bounds key regeneration on admin-side license creation
const keyCreateAttempts = 5

type LicenseHandler struct {
	db         *database.DB
	activation *services.ActivationService
	validation *services.ValidationService
}

func NewLicenseHandler(db *database.DB, activation *services.ActivationService, validation *services.ValidationService) *LicenseHandler {
	return &LicenseHandler{db: db, activation: activation, validation: validation}
}

// Activate binds a license key to the current user
func (h *LicenseHandler) Activate(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var req struct {
		LicenseKey string `json:"licenseKey"`
	}
	if err := c.BodyParser(&req); err != nil || req.LicenseKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "License key is required",
		})
	}

	result, err := h.activation.TryActivate(req.LicenseKey, userID)
	if err != nil {
		log.Printf("Activation failed for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "An error occurred processing your request",
		})
	}

	resp := fiber.Map{
		"success": result.Success,
		"message": result.Message,
	}
	if result.ExpiresAt != nil {
		resp["expiresAt"] = result.ExpiresAt
	}
	return c.JSON(resp)
}

// Validate reports whether the current user holds a valid license
func (h *LicenseHandler) Validate(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	result, err := h.validation.Validate(userID)
	if err != nil {
		log.Printf("Validation failed for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "An error occurred processing your request",
		})
	}

	resp := fiber.Map{
		"isValid": result.IsValid,
	}
	if result.ExpiresAt != nil {
		resp["expiresAt"] = result.ExpiresAt
	}
	if result.License != nil {
		resp["license"] = result.License
	}
	return c.JSON(resp)
}

// List returns all licenses (admin)
func (h *LicenseHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 25)
	isActive := c.Query("is_active", "")

	if page < 1 {
		page = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := h.db.Gorm.Model(&models.License{})
	if isActive == "true" {
		query = query.Where("is_active = ?", true)
	} else if isActive == "false" {
		query = query.Where("is_active = ?", false)
	}

	var total int64
	query.Count(&total)

	var licenses []models.License
	query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&licenses)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    licenses,
		"meta": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// Create generates a new license (admin)
func (h *LicenseHandler) Create(c *fiber.Ctx) error {
	profile := middleware.GetCurrentProfile(c)

	var req struct {
		DurationDays   int    `json:"duration_days"`
		MaxActivations int    `json:"max_activations"`
		Notes          string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.DurationDays < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Duration must be at least 1 day",
		})
	}
	if req.MaxActivations < 1 {
		req.MaxActivations = 1
	}

	var lic models.License
	created := false
	for attempt := 0; attempt < keyCreateAttempts; attempt++ {
		lic = models.License{
			LicenseKey:     keygen.Generate(),
			DurationDays:   req.DurationDays,
			MaxActivations: req.MaxActivations,
			IsActive:       true,
			Notes:          req.Notes,
			CreatedBy:      &profile.ID,
		}
		err := h.db.Gorm.Create(&lic).Error
		if err == nil {
			created = true
			break
		}
		if !services.IsUniqueViolation(err) {
			log.Printf("Failed to create license: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to create license",
			})
		}
	}
	if !created {
		log.Printf("License key collision persisted after %d attempts", keyCreateAttempts)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create license",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    lic,
	})
}

// Update edits duration, capacity or notes of a license (admin)
func (h *LicenseHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")

	var lic models.License
	if err := h.db.Gorm.First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	var req struct {
		DurationDays   *int    `json:"duration_days"`
		MaxActivations *int    `json:"max_activations"`
		Notes          *string `json:"notes"`
		IsActive       *bool   `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	if req.DurationDays != nil {
		if *req.DurationDays < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Duration must be at least 1 day",
			})
		}
		updates["duration_days"] = *req.DurationDays
	}
	if req.MaxActivations != nil {
		if *req.MaxActivations < lic.CurrentActivations {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Activation limit cannot be below current activations",
			})
		}
		updates["max_activations"] = *req.MaxActivations
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := h.db.Gorm.Model(&lic).Updates(updates).Error; err != nil {
			log.Printf("Failed to update license %s: %v", id, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to update license",
			})
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    lic,
	})
}

// Toggle flips a license active/inactive (admin)
func (h *LicenseHandler) Toggle(c *fiber.Ctx) error {
	id := c.Params("id")

	var lic models.License
	if err := h.db.Gorm.First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	if err := h.db.Gorm.Model(&lic).Update("is_active", !lic.IsActive).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update license",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":        lic.ID,
			"is_active": !lic.IsActive,
		},
	})
}

// Delete removes a license and its user claims (admin)
func (h *LicenseHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")

	var lic models.License
	if err := h.db.Gorm.First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	// Dependent claims go in the same transaction so no orphaned
	// user_licenses rows survive the delete
	err := h.db.Gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("license_id = ?", lic.ID).Delete(&models.UserLicense{}).Error; err != nil {
			return err
		}
		return tx.Delete(&lic).Error
	})
	if err != nil {
		log.Printf("Failed to delete license %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete license",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "License deleted",
	})
}
