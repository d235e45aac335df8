package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

// ReturnRequest tracks a customer return from declaration to completion.
// Item amounts are frozen at declaration; the ledger is only touched when
// the request reaches completed.
type ReturnRequest struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number           string             `gorm:"column:number;type:text;not null;uniqueIndex"`
	CustomerID       uuid.UUID          `gorm:"column:customer_id;type:uuid;not null"`
	OrderID          uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	OrderNumber      string             `gorm:"column:order_number;type:text;not null"`
	PackageID        *uuid.UUID         `gorm:"column:package_id;type:uuid"`
	Type             enums.ReturnType   `gorm:"column:type;type:text;not null"`
	Status           enums.ReturnStatus `gorm:"column:status;type:text;not null;default:'declared'"`
	TotalAmount      decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null"`
	LoyaltyRecovered decimal.Decimal    `gorm:"column:loyalty_recovered;type:numeric(12,2);not null;default:0"`
	GiftDeduction    decimal.Decimal    `gorm:"column:gift_deduction;type:numeric(12,2);not null;default:0"`
	GiftClawback     bool               `gorm:"column:gift_clawback;not null;default:false"`
	DeclaredAt       time.Time          `gorm:"column:declared_at;not null"`
	ReceivedAt       *time.Time         `gorm:"column:received_at"`
	ValidatedAt      *time.Time         `gorm:"column:validated_at"`
	CompletedAt      *time.Time         `gorm:"column:completed_at"`
	CancelledAt      *time.Time         `gorm:"column:cancelled_at"`
	Items            []ReturnItem       `gorm:"foreignKey:ReturnRequestID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ReturnItem is one returned line, with its share of the refund computed
// once at declaration time and immutable afterwards.
type ReturnItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReturnRequestID uuid.UUID       `gorm:"column:return_request_id;type:uuid;not null"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName     string          `gorm:"column:product_name;type:text;not null"`
	ProductSlug     string          `gorm:"column:product_slug;type:text;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountProrata decimal.Decimal `gorm:"column:discount_prorata;type:numeric(12,2);not null;default:0"`
	NetAmount       decimal.Decimal `gorm:"column:net_amount;type:numeric(12,2);not null"`
	VariationLabel  *string         `gorm:"column:variation_label"`
	ImageURL        *string         `gorm:"column:image_url"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
