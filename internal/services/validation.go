package services

import (
	"errors"
	"log"
	"time"

	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/models"
	"gorm.io/gorm"
)

// ValidationResult reports whether a user currently holds a valid license
type ValidationResult struct {
	IsValid   bool            `json:"isValid"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	License   *models.License `json:"license,omitempty"`
}

// ValidationService answers "is this user currently entitled" and expires
// stale claims as a side effect of being asked.
type ValidationService struct {
	db *database.DB
}

func NewValidationService(db *database.DB) *ValidationService {
	return &ValidationService{db: db}
}

// Validate checks the user's most-future-expiring active claim. A claim
// whose expiry has passed is flipped inactive on the spot (write-on-read
// expiry); the last_validated touch is best-effort and never changes the
// verdict. Safe to call repeatedly.
func (s *ValidationService) Validate(userID string) (*ValidationResult, error) {
	var claim models.UserLicense
	err := s.db.Gorm.Where("user_id = ? AND is_active = ?", userID, true).
		Order("expires_at DESC").
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ValidationResult{IsValid: false}, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if claim.ExpiresAt.Before(now) {
		if err := s.db.Gorm.Model(&models.UserLicense{}).Where("id = ?", claim.ID).
			UpdateColumn("is_active", false).Error; err != nil {
			return nil, err
		}
		return &ValidationResult{IsValid: false}, nil
	}

	if err := s.db.Gorm.Model(&models.UserLicense{}).Where("id = ?", claim.ID).
		UpdateColumn("last_validated", now).Error; err != nil {
		log.Printf("Failed to touch last_validated for user license %d: %v", claim.ID, err)
	}

	var lic models.License
	if err := s.db.Gorm.First(&lic, claim.LicenseID).Error; err == nil {
		claim.License = &lic
	}

	expiresAt := claim.ExpiresAt
	return &ValidationResult{IsValid: true, ExpiresAt: &expiresAt, License: claim.License}, nil
}
