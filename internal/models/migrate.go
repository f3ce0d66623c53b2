package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate creates/updates the schema for all persistent entities
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&Profile{},
		&License{},
		&UserLicense{},
		&PricingTier{},
		&KofiOrder{},
	); err != nil {
		return err
	}

	log.Println("Database migrations completed successfully")
	return nil
}
