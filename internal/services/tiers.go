package services

import (
	"github.com/licensedesk/backend/internal/database"
	"github.com/licensedesk/backend/internal/models"
)

// TierMatcher maps a payment to a pricing tier. Donation payments use a
// floor match on the amount; shop orders use an exact match on the
// product identifier. No default tier exists: an unmatched payment yields
// nil and the caller skips license issuance.
type TierMatcher struct {
	db *database.DB
}

func NewTierMatcher(db *database.DB) *TierMatcher {
	return &TierMatcher{db: db}
}

// activeTiers loads the active tier list, through the Redis cache when one
// is wired. Admin tier edits invalidate the cache.
func (m *TierMatcher) activeTiers() ([]models.PricingTier, error) {
	var tiers []models.PricingTier

	if m.db.Redis != nil {
		if err := m.db.CacheGet(database.CacheKeyPricingTiers, &tiers); err == nil {
			return tiers, nil
		}
	}

	if err := m.db.Gorm.Where("is_active = ?", true).Find(&tiers).Error; err != nil {
		return nil, err
	}

	if m.db.Redis != nil {
		m.db.CacheSet(database.CacheKeyPricingTiers, tiers, database.CacheTTLPricingTiers)
	}

	return tiers, nil
}

// MatchDonation returns the donation tier with the highest amount not
// exceeding the paid amount, ignoring zero-amount tiers. Nil when nothing
// qualifies.
func (m *TierMatcher) MatchDonation(amount float64) (*models.PricingTier, error) {
	tiers, err := m.activeTiers()
	if err != nil {
		return nil, err
	}

	var best *models.PricingTier
	for i := range tiers {
		t := &tiers[i]
		if t.Type != models.TierTypeDonation || t.Amount <= 0 || t.Amount > amount {
			continue
		}
		if best == nil || t.Amount > best.Amount {
			best = t
		}
	}
	return best, nil
}

// MatchProduct returns the product tier whose product identifier equals
// code exactly. Nil when none matches.
func (m *TierMatcher) MatchProduct(code string) (*models.PricingTier, error) {
	if code == "" {
		return nil, nil
	}

	tiers, err := m.activeTiers()
	if err != nil {
		return nil, err
	}

	for i := range tiers {
		t := &tiers[i]
		if t.Type == models.TierTypeProduct && t.ProductIdentifier == code {
			return t, nil
		}
	}
	return nil, nil
}
