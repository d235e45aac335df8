package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the storefront order snapshot the package and return flows read.
// Checkout itself lives upstream; this table only carries what the
// aggregation window and refund arithmetic need.
type Order struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID           uuid.UUID       `gorm:"column:customer_id;type:uuid;not null"`
	Number               string          `gorm:"column:number;type:text;not null;uniqueIndex"`
	TotalAmount          decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	DiscountAmount       decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	LoyaltyEarned        decimal.Decimal `gorm:"column:loyalty_earned;type:numeric(12,2);not null;default:0"`
	HasPromotionalGift   bool            `gorm:"column:has_promotional_gift;not null;default:false"`
	GiftReturned         bool            `gorm:"column:gift_returned;not null;default:false"`
	EstimatedWeightGrams int             `gorm:"column:estimated_weight_grams;not null;default:0"`
	DeliveredAt          *time.Time      `gorm:"column:delivered_at"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
