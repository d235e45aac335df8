package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

// LoyaltyLedgerEntry is one immutable, signed change to a customer's
// loyalty-euro balance. The ledger is the source of truth; the cached
// balances on customer_profiles must be re-derivable by replaying it.
// ux_ledger_entries_order_type makes cashback postings idempotent per order.
type LoyaltyLedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID  uuid.UUID             `gorm:"column:customer_id;type:uuid;not null"`
	OrderID     *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:text;not null"`
	Account     enums.LedgerAccount   `gorm:"column:account;type:text;not null;default:'loyalty'"`
	Amount      decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Multiplier  decimal.Decimal       `gorm:"column:multiplier;type:numeric(4,2);not null;default:1"`
	Tier        enums.LoyaltyTier     `gorm:"column:tier;type:text;not null;default:'bronze'"`
	Description string                `gorm:"column:description;type:text;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
