package services

import (
	"testing"
	"time"

	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory store per test. MaxOpenConns is
// pinned to 1 so every query sees the same in-memory database.
func newTestDB(t *testing.T) *database.DB {
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

	return &database.DB{Gorm: gdb}
}

func createProfile(t *testing.T, db *database.DB, email string) *models.Profile {
	t.Helper()
	profile := models.Profile{
		Email:    email,
		Password: "not-a-real-hash",
		FullName: "Test User",
		IsActive: true,
	}
	if err := db.Gorm.Create(&profile).Error; err != nil {
		t.Fatalf("create profile %s: %v", email, err)
	}
	return &profile
}

func createLicense(t *testing.T, db *database.DB, key string, durationDays, maxActivations int) *models.License {
	t.Helper()
	lic := models.License{
		LicenseKey:     key,
		DurationDays:   durationDays,
		MaxActivations: maxActivations,
		IsActive:       true,
	}
	if err := db.Gorm.Create(&lic).Error; err != nil {
		t.Fatalf("create license %s: %v", key, err)
	}
	return &lic
}

func createDonationTier(t *testing.T, db *database.DB, name string, amount float64, durationDays int) *models.PricingTier {
	t.Helper()
	tier := models.PricingTier{
		Name:         name,
		Type:         models.TierTypeDonation,
		Amount:       amount,
		DurationDays: durationDays,
		IsActive:     true,
	}
	if err := db.Gorm.Create(&tier).Error; err != nil {
		t.Fatalf("create tier %s: %v", name, err)
	}
	return &tier
}

func createProductTier(t *testing.T, db *database.DB, name, code string, durationDays int) *models.PricingTier {
	t.Helper()
	tier := models.PricingTier{
		Name:              name,
		Type:              models.TierTypeProduct,
		ProductIdentifier: code,
		DurationDays:      durationDays,
		IsActive:          true,
	}
	if err := db.Gorm.Create(&tier).Error; err != nil {
		t.Fatalf("create product tier %s: %v", name, err)
	}
	return &tier
}

func reloadLicense(t *testing.T, db *database.DB, id uint) *models.License {
	t.Helper()
	var lic models.License
	if err := db.Gorm.First(&lic, id).Error; err != nil {
		t.Fatalf("reload license %d: %v", id, err)
	}
	return &lic
}
