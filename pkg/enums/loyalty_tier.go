package enums

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LoyaltyTier is the customer's loyalty level at the time an entry is posted.
type LoyaltyTier string

const (
	LoyaltyTierBronze  LoyaltyTier = "bronze"
	LoyaltyTierSilver  LoyaltyTier = "silver"
	LoyaltyTierGold    LoyaltyTier = "gold"
	LoyaltyTierDiamond LoyaltyTier = "diamond"
)

var validLoyaltyTiers = []LoyaltyTier{
	LoyaltyTierBronze,
	LoyaltyTierSilver,
	LoyaltyTierGold,
	LoyaltyTierDiamond,
}

var tierMultipliers = map[LoyaltyTier]decimal.Decimal{
	LoyaltyTierBronze:  decimal.NewFromInt(1),
	LoyaltyTierSilver:  decimal.RequireFromString("1.25"),
	LoyaltyTierGold:    decimal.RequireFromString("1.5"),
	LoyaltyTierDiamond: decimal.NewFromInt(2),
}

// IsValid reports whether the value is a known LoyaltyTier.
func (t LoyaltyTier) IsValid() bool {
	for _, candidate := range validLoyaltyTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// Multiplier returns the earning multiplier captured on ledger entries.
// Unknown tiers earn at the bronze rate.
func (t LoyaltyTier) Multiplier() decimal.Decimal {
	if m, ok := tierMultipliers[t]; ok {
		return m
	}
	return tierMultipliers[LoyaltyTierBronze]
}

// ParseLoyaltyTier converts the raw string to LoyaltyTier.
func ParseLoyaltyTier(value string) (LoyaltyTier, error) {
	for _, candidate := range validLoyaltyTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loyalty tier %q", value)
}
