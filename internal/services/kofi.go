package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/keygen"
	"github.com/licensedesk/backend/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors the webhook handler maps to HTTP statuses
var (
	ErrInvalidPayload = errors.New("invalid webhook payload")
	ErrInvalidToken   = errors.New("invalid verification token")
)

// keyInsertAttempts bounds regeneration on a license key collision
const keyInsertAttempts = 5

// Ko-fi event types accepted by the pipeline
const (
	KofiTypeDonation     = "Donation"
	KofiTypeSubscription = "Subscription"
	KofiTypeShopOrder    = "Shop Order"
)

var (
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	amountPattern = regexp.MustCompile(`^[0-9]{1,10}(\.[0-9]{1,2})?$`)
)

// KofiShopItem is one purchased item in a shop order payload
type KofiShopItem struct {
	DirectLinkCode string `json:"direct_link_code"`
	VariationName  string `json:"variation_name"`
	Quantity       int    `json:"quantity"`
}

// KofiPayload is the JSON document Ko-fi posts in the form field "data"
type KofiPayload struct {
	VerificationToken          string         `json:"verification_token"`
	MessageID                  string         `json:"message_id"`
	Timestamp                  string         `json:"timestamp"`
	Type                       string         `json:"type"`
	IsPublic                   bool           `json:"is_public"`
	FromName                   string         `json:"from_name"`
	Message                    string         `json:"message"`
	Amount                     string         `json:"amount"`
	URL                        string         `json:"url"`
	Email                      string         `json:"email"`
	Currency                   string         `json:"currency"`
	IsSubscriptionPayment      bool           `json:"is_subscription_payment"`
	IsFirstSubscriptionPayment bool           `json:"is_first_subscription_payment"`
	KofiTransactionID          string         `json:"kofi_transaction_id"`
	ShopItems                  []KofiShopItem `json:"shop_items"`
	TierName                   *string        `json:"tier_name"`
}

// Validate rejects any shape mismatch before the pipeline touches the
// store. Token verification is separate so a schema failure maps to 400
// and a token mismatch to 403.
func (p *KofiPayload) Validate() error {
	if p.MessageID == "" || len(p.MessageID) > 100 {
		return fmt.Errorf("%w: message_id", ErrInvalidPayload)
	}
	switch p.Type {
	case KofiTypeDonation, KofiTypeSubscription, KofiTypeShopOrder:
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidPayload, p.Type)
	}
	if p.Email == "" || len(p.Email) > 255 || !emailPattern.MatchString(p.Email) {
		return fmt.Errorf("%w: email", ErrInvalidPayload)
	}
	if !amountPattern.MatchString(p.Amount) {
		return fmt.Errorf("%w: amount", ErrInvalidPayload)
	}
	if len(p.FromName) > 255 {
		return fmt.Errorf("%w: from_name", ErrInvalidPayload)
	}
	if len(p.Currency) > 10 {
		return fmt.Errorf("%w: currency", ErrInvalidPayload)
	}
	if len(p.KofiTransactionID) > 100 {
		return fmt.Errorf("%w: kofi_transaction_id", ErrInvalidPayload)
	}
	if p.Type == KofiTypeShopOrder && len(p.ShopItems) == 0 {
		return fmt.Errorf("%w: shop order without items", ErrInvalidPayload)
	}
	return nil
}

// IngestResult summarizes one webhook run for the provider's response
type IngestResult struct {
	Duplicate     bool   `json:"-"`
	LicenseKey    string `json:"license_key,omitempty"`
	UserFound     bool   `json:"user_found"`
	AutoActivated bool   `json:"auto_activated"`
}

// KofiService converts payment events into licenses and orders
type KofiService struct {
	db                *database.DB
	tiers             *TierMatcher
	verificationToken string
}

func NewKofiService(db *database.DB, tiers *TierMatcher, verificationToken string) *KofiService {
	return &KofiService{db: db, tiers: tiers, verificationToken: verificationToken}
}

// Ingest runs one payment event through the pipeline: validate, verify
// secret, dedupe, match a tier, issue a license, record the order, and
// auto-activate when the payer is a registered user. Duplicate deliveries
// short-circuit with no new writes, so provider retries are safe.
func (s *KofiService) Ingest(p *KofiPayload) (*IngestResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if s.verificationToken == "" || p.VerificationToken != s.verificationToken {
		return nil, ErrInvalidToken
	}

	if dup, err := s.isDuplicate(p); err != nil {
		return nil, err
	} else if dup {
		log.Printf("Ko-fi order already processed: %s", p.MessageID)
		return &IngestResult{Duplicate: true}, nil
	}

	tier, err := s.matchTier(p)
	if err != nil {
		return nil, err
	}

	var lic *models.License
	if tier != nil {
		lic, err = s.issueLicense(p, tier)
		if err != nil {
			return nil, err
		}
	} else {
		log.Printf("No pricing tier matched for %s (%s %s) - recording order without license",
			p.MessageID, p.Type, p.Amount)
	}

	// Case-insensitive payer lookup; unknown payers leave the order
	// pending for manual linking
	var profile models.Profile
	userFound := true
	err = s.db.Gorm.Where("LOWER(email) = ?", strings.ToLower(p.Email)).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		userFound = false
	} else if err != nil {
		return nil, err
	}

	order, err := s.recordOrder(p, lic, userFound, &profile)
	if err != nil {
		if IsUniqueViolation(err) {
			// Concurrent retry won the insert; the constraint is the
			// idempotency guarantee, the pre-check above is an optimization
			log.Printf("Ko-fi order insert lost idempotency race: %s", p.MessageID)
			return &IngestResult{Duplicate: true}, nil
		}
		return nil, err
	}

	result := &IngestResult{UserFound: userFound}
	if lic != nil {
		result.LicenseKey = lic.LicenseKey
	}

	if lic != nil && userFound {
		if err := s.autoActivate(order, lic, profile.ID); err != nil {
			// License and order exist; an admin can link them manually
			log.Printf("Auto-activation failed for order %s: %v", p.MessageID, err)
		} else {
			result.AutoActivated = true
		}
	}

	return result, nil
}

func (s *KofiService) isDuplicate(p *KofiPayload) (bool, error) {
	var existing models.KofiOrder
	err := s.db.Gorm.Select("id").Where("message_id = ?", p.MessageID).First(&existing).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if p.KofiTransactionID != "" {
		err = s.db.Gorm.Select("id").Where("kofi_transaction_id = ?", p.KofiTransactionID).First(&existing).Error
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}
	}
	return false, nil
}

func (s *KofiService) matchTier(p *KofiPayload) (*models.PricingTier, error) {
	if p.Type == KofiTypeShopOrder {
		return s.tiers.MatchProduct(p.ShopItems[0].DirectLinkCode)
	}
	amount, err := strconv.ParseFloat(p.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: amount", ErrInvalidPayload)
	}
	return s.tiers.MatchDonation(amount)
}

// issueLicense inserts a single-activation license for the purchase,
// regenerating the key a bounded number of times on a collision
func (s *KofiService) issueLicense(p *KofiPayload, tier *models.PricingTier) (*models.License, error) {
	notes := fmt.Sprintf("Ko-fi %s - %s - %s %s - %s", p.Type, p.FromName, p.Amount, p.Currency, tier.Name)

	var lastErr error
	for attempt := 0; attempt < keyInsertAttempts; attempt++ {
		lic := models.License{
			LicenseKey:         keygen.GenerateKofi(),
			DurationDays:       tier.DurationDays,
			MaxActivations:     1,
			CurrentActivations: 0,
			IsActive:           true,
			Notes:              notes,
		}
		err := s.db.Gorm.Create(&lic).Error
		if err == nil {
			log.Printf("License created for Ko-fi order %s: %s", p.MessageID, lic.LicenseKey)
			return &lic, nil
		}
		if !IsUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("license key collision persisted after %d attempts: %w", keyInsertAttempts, lastErr)
}

func (s *KofiService) recordOrder(p *KofiPayload, lic *models.License, userFound bool, profile *models.Profile) (*models.KofiOrder, error) {
	order := models.KofiOrder{
		MessageID:                  p.MessageID,
		Timestamp:                  p.Timestamp,
		Type:                       p.Type,
		IsPublic:                   p.IsPublic,
		FromName:                   p.FromName,
		Message:                    p.Message,
		Amount:                     p.Amount,
		URL:                        p.URL,
		Email:                      strings.ToLower(p.Email),
		Currency:                   p.Currency,
		IsSubscriptionPayment:      p.IsSubscriptionPayment,
		IsFirstSubscriptionPayment: p.IsFirstSubscriptionPayment,
		TierName:                   p.TierName,
		Processed:                  false,
	}
	if p.KofiTransactionID != "" {
		txID := p.KofiTransactionID
		order.KofiTransactionID = &txID
	}
	if len(p.ShopItems) > 0 {
		if raw, err := json.Marshal(p.ShopItems); err == nil {
			order.ShopItems = raw
		}
	}
	if lic != nil {
		order.LicenseID = &lic.ID
	}
	if userFound {
		userID := profile.ID
		order.UserID = &userID
	}

	if err := s.db.Gorm.Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// autoActivate performs the new-activation path directly for a freshly
// issued single-slot license and marks the order processed
func (s *KofiService) autoActivate(order *models.KofiOrder, lic *models.License, userID string) error {
	now := time.Now().UTC()
	expiresAt := now.AddDate(0, 0, lic.DurationDays)

	claim := models.UserLicense{
		UserID:        userID,
		LicenseID:     lic.ID,
		ActivatedAt:   now,
		ExpiresAt:     expiresAt,
		IsActive:      true,
		LastValidated: &now,
	}
	if err := s.db.Gorm.Create(&claim).Error; err != nil {
		return err
	}

	if err := s.db.Gorm.Model(&models.License{}).
		Where("id = ? AND current_activations < max_activations", lic.ID).
		UpdateColumn("current_activations", gorm.Expr("current_activations + 1")).Error; err != nil {
		return err
	}

	return s.db.Gorm.Model(&models.KofiOrder{}).Where("id = ?", order.ID).
		UpdateColumn("processed", true).Error
}
