package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/licensedesk/backend/internal/config"
	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/handlers"
	"github.com/licensedesk/backend/internal/middleware"
	"github.com/licensedesk/backend/internal/models"
	"github.com/licensedesk/backend/internal/services"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := models.AutoMigrate(db.Gorm); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed admin profile if not exists
	seedAdminProfile(db)

	// Domain services
	activationService := services.NewActivationService(db)
	validationService := services.NewValidationService(db)
	tierMatcher := services.NewTierMatcher(db)
	kofiService := services.NewKofiService(db, tierMatcher, cfg.KofiVerificationToken)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "LicenseDesk API v1.0",
		ServerHeader: "LicenseDesk",
		BodyLimit:    1 * 1024 * 1024, // 1MB, webhook payloads are small
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "licensedesk-api",
		})
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg, db)
	twoFAHandler := handlers.NewTwoFAHandler(db)
	licenseHandler := handlers.NewLicenseHandler(db, activationService, validationService)
	tierHandler := handlers.NewTierHandler(db)
	kofiHandler := handlers.NewKofiHandler(db, kofiService, activationService)

	// API routes
	api := app.Group("/api")
	api.Use(middleware.RateLimiter(100, 1*time.Minute))

	// Public routes
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	api.Post("/kofi-webhook", kofiHandler.Webhook)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(cfg, db))
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/auth/me", authHandler.Me)
	protected.Put("/auth/password", authHandler.ChangePassword)
	protected.Get("/check-admin", authHandler.CheckAdmin)

	protected.Post("/2fa/setup", twoFAHandler.Setup)
	protected.Post("/2fa/verify", twoFAHandler.Verify)
	protected.Post("/2fa/disable", twoFAHandler.Disable)
	protected.Get("/2fa/status", twoFAHandler.Status)

	protected.Post("/activate-license", licenseHandler.Activate)
	protected.Get("/validate-license", licenseHandler.Validate)

	// Admin routes
	admin := protected.Group("", middleware.AdminOnly())
	admin.Get("/licenses", licenseHandler.List)
	admin.Post("/licenses", licenseHandler.Create)
	admin.Put("/licenses/:id", licenseHandler.Update)
	admin.Post("/licenses/:id/toggle", licenseHandler.Toggle)
	admin.Delete("/licenses/:id", licenseHandler.Delete)

	admin.Get("/tiers", tierHandler.List)
	admin.Post("/tiers", tierHandler.Create)
	admin.Put("/tiers/:id", tierHandler.Update)
	admin.Delete("/tiers/:id", tierHandler.Delete)

	admin.Get("/kofi-orders", kofiHandler.ListOrders)
	admin.Post("/kofi-orders/:id/link", kofiHandler.LinkOrder)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		app.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting LicenseDesk API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func seedAdminProfile(db *database.DB) {
	var count int64
	db.Gorm.Model(&models.Profile{}).Where("is_admin = ?", true).Count(&count)

	if count == 0 {
		log.Println("Creating default admin profile...")

		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)

		admin := models.Profile{
			Email:    "admin@licensedesk.local",
			Password: string(hashedPassword),
			FullName: "System Administrator",
			IsAdmin:  true,
			IsActive: true,
		}

		if err := db.Gorm.Create(&admin).Error; err != nil {
			log.Printf("Failed to create admin profile: %v", err)
		} else {
			log.Println("Admin profile created (email: admin@licensedesk.local, password: admin123)")
		}
	}
}
