package models

import (
	"time"
)

// License represents a key entitling up to MaxActivations user activations,
// each valid for DurationDays from the moment of activation.
// Invariant: 0 <= current_activations <= max_activations, enforced by the
// activation service's conditional update.
type License struct {
	ID                 uint      `gorm:"column:id;primaryKey" json:"id"`
	LicenseKey         string    `gorm:"column:license_key;size:64;uniqueIndex;not null" json:"license_key"`
	DurationDays       int       `gorm:"column:duration_days;not null" json:"duration_days"`
	MaxActivations     int       `gorm:"column:max_activations;not null;default:1" json:"max_activations"`
	CurrentActivations int       `gorm:"column:current_activations;not null;default:0" json:"current_activations"`
	IsActive           bool      `gorm:"column:is_active;default:true" json:"is_active"`
	Notes              string    `gorm:"column:notes;type:text" json:"notes"`
	CreatedBy          *string   `gorm:"column:created_by;size:36" json:"created_by"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (License) TableName() string {
	return "licenses"
}

// UserLicense represents one user's claim on one license.
// At most one row per (user_id, license_id) pair; re-activation updates the
// existing row instead of inserting a duplicate.
type UserLicense struct {
	ID            uint       `gorm:"column:id;primaryKey" json:"id"`
	UserID        string     `gorm:"column:user_id;size:36;uniqueIndex:idx_user_license;not null" json:"user_id"`
	LicenseID     uint       `gorm:"column:license_id;uniqueIndex:idx_user_license;not null" json:"license_id"`
	License       *License   `gorm:"-" json:"license,omitempty"`
	ActivatedAt   time.Time  `gorm:"column:activated_at" json:"activated_at"`
	ExpiresAt     time.Time  `gorm:"column:expires_at;index" json:"expires_at"`
	IsActive      bool       `gorm:"column:is_active;default:true;index" json:"is_active"`
	LastValidated *time.Time `gorm:"column:last_validated" json:"last_validated"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (UserLicense) TableName() string {
	return "user_licenses"
}

// Entitled reports whether this claim currently grants access.
func (ul *UserLicense) Entitled(now time.Time) bool {
	return ul.IsActive && ul.ExpiresAt.After(now)
}
