package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/models"
	"github.com/licensedesk/backend/internal/services"
	"gorm.io/gorm"
)

type KofiHandler struct {
	db         *database.DB
	kofi       *services.KofiService
	activation *services.ActivationService
}

func NewKofiHandler(db *database.DB, kofi *services.KofiService, activation *services.ActivationService) *KofiHandler {
	return &KofiHandler{db: db, kofi: kofi, activation: activation}
}

// Webhook ingests one Ko-fi payment event. Ko-fi posts form-encoded data
// with the JSON payload in the "data" field.
func (h *KofiHandler) Webhook(c *fiber.Ctx) error {
	dataString := c.FormValue("data")
	if dataString == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "No data provided",
		})
	}

	var payload services.KofiPayload
	if err := json.Unmarshal([]byte(dataString), &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Malformed payload",
		})
	}

	result, err := h.kofi.Ingest(&payload)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPayload) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Malformed payload",
			})
		}
		if errors.Is(err, services.ErrInvalidToken) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Invalid verification token",
			})
		}
		log.Printf("Ko-fi webhook failed for %s: %v", payload.MessageID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "An error occurred processing your request",
		})
	}

	if result.Duplicate {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Order already processed",
		})
	}

	resp := fiber.Map{
		"success":        true,
		"message":        "Payment processed successfully",
		"user_found":     result.UserFound,
		"auto_activated": result.AutoActivated,
	}
	if result.LicenseKey != "" {
		resp["license_key"] = result.LicenseKey
	}
	return c.JSON(resp)
}

// ListOrders returns ingested Ko-fi orders (admin)
func (h *KofiHandler) ListOrders(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 25)
	processed := c.Query("processed", "")

	if page < 1 {
		page = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := h.db.Gorm.Model(&models.KofiOrder{})
	if processed == "true" {
		query = query.Where("processed = ?", true)
	} else if processed == "false" {
		query = query.Where("processed = ?", false)
	}

	var total int64
	query.Count(&total)

	var orders []models.KofiOrder
	query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"meta": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// LinkOrder manually attaches a pending order's license to a user (admin).
// Used when the payer registered after the payment arrived.
func (h *KofiHandler) LinkOrder(c *fiber.Ctx) error {
	id := c.Params("id")

	var order models.KofiOrder
	if err := h.db.Gorm.First(&order, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Order not found",
		})
	}

	if order.Processed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Order already processed",
		})
	}
	if order.LicenseID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Order has no license to link",
		})
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	email := req.Email
	if email == "" {
		email = order.Email
	}

	var profile models.Profile
	err := h.db.Gorm.Where("LOWER(email) = ?", strings.ToLower(email)).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "No registered user with that email",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "An error occurred processing your request",
		})
	}

	var lic models.License
	if err := h.db.Gorm.First(&lic, *order.LicenseID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "An error occurred processing your request",
		})
	}

	result, err := h.activation.TryActivate(lic.LicenseKey, profile.ID)
	if err != nil {
		log.Printf("Manual link failed for order %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "An error occurred processing your request",
		})
	}
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": result.Message,
		})
	}

	h.db.Gorm.Model(&models.KofiOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"user_id":   profile.ID,
		"processed": true,
	})

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Order linked and license activated",
		"expiresAt": result.ExpiresAt,
	})
}
