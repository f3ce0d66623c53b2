package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/licensedesk/backend/internal/config"
	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/middleware"
	"github.com/licensedesk/backend/internal/models"
	"github.com/licensedesk/backend/internal/services"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testPassword          = "correct-horse-battery"
	testVerificationToken = "webhook-secret"
)

type testEnv struct {
	app *fiber.App
	db  *database.DB
	cfg *config.Config
}

// newTestEnv builds the API surface over an isolated in-memory store,
// with the same route layout the server binary uses
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := models.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db := &database.DB{Gorm: gdb}
	cfg := &config.Config{
		JWTSecret:             "test-secret",
		JWTExpireHours:        24,
		KofiVerificationToken: testVerificationToken,
	}

	activation := services.NewActivationService(db)
	validation := services.NewValidationService(db)
	matcher := services.NewTierMatcher(db)
	kofiService := services.NewKofiService(db, matcher, cfg.KofiVerificationToken)

	authHandler := NewAuthHandler(cfg, db)
	licenseHandler := NewLicenseHandler(db, activation, validation)
	tierHandler := NewTierHandler(db)
	kofiHandler := NewKofiHandler(db, kofiService, activation)

	app := fiber.New()
	api := app.Group("/api")

	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	api.Post("/kofi-webhook", kofiHandler.Webhook)

	protected := api.Group("", middleware.AuthRequired(cfg, db))
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/auth/me", authHandler.Me)
	protected.Get("/check-admin", authHandler.CheckAdmin)
	protected.Post("/activate-license", licenseHandler.Activate)
	protected.Get("/validate-license", licenseHandler.Validate)

	admin := protected.Group("", middleware.AdminOnly())
	admin.Get("/licenses", licenseHandler.List)
	admin.Post("/licenses", licenseHandler.Create)
	admin.Put("/licenses/:id", licenseHandler.Update)
	admin.Post("/licenses/:id/toggle", licenseHandler.Toggle)
	admin.Delete("/licenses/:id", licenseHandler.Delete)
	admin.Get("/tiers", tierHandler.List)
	admin.Post("/tiers", tierHandler.Create)
	admin.Get("/kofi-orders", kofiHandler.ListOrders)
	admin.Post("/kofi-orders/:id/link", kofiHandler.LinkOrder)

	return &testEnv{app: app, db: db, cfg: cfg}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}

	var parsed map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("%s %s: bad json response %q: %v", method, path, raw, err)
		}
	}
	return resp, parsed
}

// registerUser creates an account through the API and returns its token
func (e *testEnv) registerUser(t *testing.T, email string) string {
	t.Helper()
	resp, body := e.request(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email":    email,
		"password": testPassword,
		"fullName": "Test User",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register %s: status %d body %v", email, resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register %s: no token in %v", email, body)
	}
	return token
}

// createAdmin inserts an admin row directly and logs it in
func (e *testEnv) createAdmin(t *testing.T, email string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	admin := models.Profile{
		Email:    email,
		Password: string(hash),
		FullName: "Admin",
		IsAdmin:  true,
		IsActive: true,
	}
	if err := e.db.Gorm.Create(&admin).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}

	resp, body := e.request(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    email,
		"password": testPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin login: status %d body %v", resp.StatusCode, body)
	}
	return body["token"].(string)
}

func (e *testEnv) createLicense(t *testing.T, key string, durationDays, maxActivations int) *models.License {
	t.Helper()
	lic := models.License{
		LicenseKey:     key,
		DurationDays:   durationDays,
		MaxActivations: maxActivations,
		IsActive:       true,
	}
	if err := e.db.Gorm.Create(&lic).Error; err != nil {
		t.Fatalf("create license: %v", err)
	}
	return &lic
}
