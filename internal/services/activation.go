package services

import (
	"errors"
	"strings"
	"time"

	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/models"
	"gorm.io/gorm"
)

// Closed set of user-visible messages. Store error text never reaches a
// client.
const (
	MsgInvalidLicense   = "Invalid or inactive license key"
	MsgCapacityExceeded = "Maximum activations reached for this license"
	MsgActivated        = "License activated successfully"
)

// ActivationResult is the soft outcome of an activation attempt. Unknown
// keys and exhausted licenses are results, not errors, so the response
// never reveals whether a key exists.
type ActivationResult struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// ActivationService binds license keys to users
type ActivationService struct {
	db *database.DB
}

func NewActivationService(db *database.DB) *ActivationService {
	return &ActivationService{db: db}
}

// TryActivate activates licenseKey for userID. Capacity is consumed by a
// conditional increment (current_activations < max_activations) so two
// concurrent activations cannot oversubscribe the last slot. Re-activating
// a key the user already holds renews the existing claim and consumes no
// capacity.
func (s *ActivationService) TryActivate(licenseKey, userID string) (*ActivationResult, error) {
	var lic models.License
	err := s.db.Gorm.Where("license_key = ? AND is_active = ?", licenseKey, true).First(&lic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ActivationResult{Success: false, Message: MsgInvalidLicense}, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiresAt := now.AddDate(0, 0, lic.DurationDays)

	var claim models.UserLicense
	claimErr := s.db.Gorm.Where("user_id = ? AND license_id = ?", userID, lic.ID).First(&claim).Error
	if claimErr == nil {
		// Renewal: restart the countdown on the existing row
		err := s.db.Gorm.Model(&models.UserLicense{}).Where("id = ?", claim.ID).Updates(map[string]interface{}{
			"is_active":      true,
			"expires_at":     expiresAt,
			"last_validated": now,
		}).Error
		if err != nil {
			return nil, err
		}
		return &ActivationResult{Success: true, Message: MsgActivated, ExpiresAt: &expiresAt}, nil
	}
	if !errors.Is(claimErr, gorm.ErrRecordNotFound) {
		return nil, claimErr
	}

	// New activation: claim a slot first, atomically
	res := s.db.Gorm.Model(&models.License{}).
		Where("id = ? AND current_activations < max_activations", lic.ID).
		UpdateColumn("current_activations", gorm.Expr("current_activations + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &ActivationResult{Success: false, Message: MsgCapacityExceeded}, nil
	}

	claim = models.UserLicense{
		UserID:        userID,
		LicenseID:     lic.ID,
		ActivatedAt:   now,
		ExpiresAt:     expiresAt,
		IsActive:      true,
		LastValidated: &now,
	}
	if err := s.db.Gorm.Create(&claim).Error; err != nil {
		// Release the slot; a unique violation here means a concurrent
		// request claimed the same (user, license) pair first
		s.db.Gorm.Model(&models.License{}).
			Where("id = ? AND current_activations > 0", lic.ID).
			UpdateColumn("current_activations", gorm.Expr("current_activations - 1"))
		return nil, err
	}

	return &ActivationResult{Success: true, Message: MsgActivated, ExpiresAt: &expiresAt}, nil
}

// IsUniqueViolation reports whether err is a unique-constraint error from
// the store. Matched on message text since the Postgres and SQLite drivers
// surface different error types.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
