package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/models"
)

type TierHandler struct {
	db *database.DB
}

func NewTierHandler(db *database.DB) *TierHandler {
	return &TierHandler{db: db}
}

// List returns all pricing tiers
func (h *TierHandler) List(c *fiber.Ctx) error {
	var tiers []models.PricingTier
	if err := h.db.Gorm.Order("type, amount").Find(&tiers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load pricing tiers",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tiers,
	})
}

// Create adds a pricing tier
func (h *TierHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name              string  `json:"name"`
		Type              string  `json:"type"`
		Amount            float64 `json:"amount"`
		ProductIdentifier string  `json:"product_identifier"`
		DurationDays      int     `json:"duration_days"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	tierType := models.TierType(req.Type)
	switch tierType {
	case models.TierTypeDonation:
		if req.Amount <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Donation tiers require a positive amount",
			})
		}
	case models.TierTypeProduct:
		if req.ProductIdentifier == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Product tiers require a product identifier",
			})
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Tier type must be donation or product",
		})
	}

	if req.DurationDays < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Duration must be at least 1 day",
		})
	}

	tier := models.PricingTier{
		Name:              req.Name,
		Type:              tierType,
		Amount:            req.Amount,
		ProductIdentifier: req.ProductIdentifier,
		DurationDays:      req.DurationDays,
		IsActive:          true,
	}
	if err := h.db.Gorm.Create(&tier).Error; err != nil {
		log.Printf("Failed to create pricing tier: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create pricing tier",
		})
	}

	h.db.InvalidateTierCache()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    tier,
	})
}

// Update edits a pricing tier
func (h *TierHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")

	var tier models.PricingTier
	if err := h.db.Gorm.First(&tier, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Pricing tier not found",
		})
	}

	var req struct {
		Name              *string  `json:"name"`
		Amount            *float64 `json:"amount"`
		ProductIdentifier *string  `json:"product_identifier"`
		DurationDays      *int     `json:"duration_days"`
		IsActive          *bool    `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Amount != nil {
		updates["amount"] = *req.Amount
	}
	if req.ProductIdentifier != nil {
		updates["product_identifier"] = *req.ProductIdentifier
	}
	if req.DurationDays != nil {
		if *req.DurationDays < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Duration must be at least 1 day",
			})
		}
		updates["duration_days"] = *req.DurationDays
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := h.db.Gorm.Model(&tier).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to update pricing tier",
			})
		}
		h.db.InvalidateTierCache()
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tier,
	})
}

// Delete removes a pricing tier
func (h *TierHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")

	var tier models.PricingTier
	if err := h.db.Gorm.First(&tier, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Pricing tier not found",
		})
	}

	if err := h.db.Gorm.Delete(&tier).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete pricing tier",
		})
	}

	h.db.InvalidateTierCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Pricing tier deleted",
	})
}
