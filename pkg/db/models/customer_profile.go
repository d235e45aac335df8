package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

// CustomerProfile carries the denormalized balances and the loyalty tier.
// LoyaltyEuros is a cache over the ledger, never authoritative.
type CustomerProfile struct {
	CustomerID    uuid.UUID         `gorm:"column:customer_id;type:uuid;primaryKey"`
	Email         string            `gorm:"column:email;type:text;not null"`
	DisplayName   string            `gorm:"column:display_name;type:text;not null"`
	WalletBalance decimal.Decimal   `gorm:"column:wallet_balance;type:numeric(12,2);not null;default:0"`
	LoyaltyEuros  decimal.Decimal   `gorm:"column:loyalty_euros;type:numeric(12,2);not null;default:0"`
	Tier          enums.LoyaltyTier `gorm:"column:tier;type:text;not null;default:'bronze'"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
