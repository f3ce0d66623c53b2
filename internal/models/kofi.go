package models

import (
	"encoding/json"
	"time"
)

// TierType selects the matching strategy for a pricing tier
type TierType string

const (
	TierTypeDonation TierType = "donation"
	TierTypeProduct  TierType = "product"
)

// PricingTier maps a payment to a license duration. Donation tiers match by
// amount threshold (floor match), product tiers by exact shop item code.
type PricingTier struct {
	ID                uint      `gorm:"column:id;primaryKey" json:"id"`
	Name              string    `gorm:"column:name;size:100;not null" json:"name"`
	Type              TierType  `gorm:"column:type;size:20;not null;default:donation" json:"type"`
	Amount            float64   `gorm:"column:amount;type:decimal(10,2);default:0" json:"amount"`
	ProductIdentifier string    `gorm:"column:product_identifier;size:100;index" json:"product_identifier"`
	DurationDays      int       `gorm:"column:duration_days;not null" json:"duration_days"`
	IsActive          bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt         time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (PricingTier) TableName() string {
	return "pricing_tiers"
}

// KofiOrder records one ingested payment event. Immutable after insert
// except for processed and the license/user backfill columns.
// The unique indexes on message_id and kofi_transaction_id are the
// idempotency backstop; the pre-insert lookup is an optimization.
type KofiOrder struct {
	ID                         uint            `gorm:"column:id;primaryKey" json:"id"`
	MessageID                  string          `gorm:"column:message_id;size:100;uniqueIndex;not null" json:"message_id"`
	KofiTransactionID          *string         `gorm:"column:kofi_transaction_id;size:100;uniqueIndex" json:"kofi_transaction_id"`
	Timestamp                  string          `gorm:"column:timestamp;size:40" json:"timestamp"`
	Type                       string          `gorm:"column:type;size:30;not null" json:"type"`
	IsPublic                   bool            `gorm:"column:is_public;default:false" json:"is_public"`
	FromName                   string          `gorm:"column:from_name;size:255" json:"from_name"`
	Message                    string          `gorm:"column:message;type:text" json:"message"`
	Amount                     string          `gorm:"column:amount;size:20" json:"amount"`
	URL                        string          `gorm:"column:url;size:500" json:"url"`
	Email                      string          `gorm:"column:email;size:255;index" json:"email"`
	Currency                   string          `gorm:"column:currency;size:10" json:"currency"`
	IsSubscriptionPayment      bool            `gorm:"column:is_subscription_payment;default:false" json:"is_subscription_payment"`
	IsFirstSubscriptionPayment bool            `gorm:"column:is_first_subscription_payment;default:false" json:"is_first_subscription_payment"`
	ShopItems                  json.RawMessage `gorm:"column:shop_items;type:json" json:"shop_items"`
	TierName                   *string         `gorm:"column:tier_name;size:100" json:"tier_name"`
	LicenseID                  *uint           `gorm:"column:license_id;index" json:"license_id"`
	UserID                     *string         `gorm:"column:user_id;size:36;index" json:"user_id"`
	Processed                  bool            `gorm:"column:processed;default:false" json:"processed"`
	CreatedAt                  time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (KofiOrder) TableName() string {
	return "kofi_orders"
}
