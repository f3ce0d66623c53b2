package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile represents a registered account (end user or admin)
type Profile struct {
	ID       string `gorm:"column:id;size:36;primaryKey" json:"id"`
	Email    string `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	Password string `gorm:"column:password;size:255;not null" json:"-"`
	FullName string `gorm:"column:full_name;size:255" json:"full_name"`
	IsAdmin  bool   `gorm:"column:is_admin;default:false" json:"is_admin"`
	IsActive bool   `gorm:"column:is_active;default:true" json:"is_active"`

	// 2FA fields (admin accounts)
	TwoFactorEnabled bool   `gorm:"column:two_factor_enabled;default:false" json:"two_factor_enabled"`
	TwoFactorSecret  string `gorm:"column:two_factor_secret;size:255" json:"-"`

	LastLogin *time.Time `gorm:"column:last_login" json:"last_login"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// BeforeCreate assigns a UUID so profile IDs match the auth provider format
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
