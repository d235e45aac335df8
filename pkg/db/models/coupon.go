package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

// CouponType is the catalog definition a grant instantiates.
type CouponType struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code         string          `gorm:"column:code;type:text;not null;uniqueIndex"`
	Label        string          `gorm:"column:label;type:text;not null"`
	Value        decimal.Decimal `gorm:"column:value;type:numeric(12,2);not null"`
	ValidityDays int             `gorm:"column:validity_days;not null;default:30"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// UserCoupon is one grant held by one customer. The unique key over
// (customer, type, source, source_ref) prevents double-issuing for the same
// triggering event; used_order_id records the single order that consumed it.
type UserCoupon struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID   uuid.UUID          `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:ux_user_coupons_grant"`
	CouponTypeID uuid.UUID          `gorm:"column:coupon_type_id;type:uuid;not null;uniqueIndex:ux_user_coupons_grant"`
	Source       enums.CouponSource `gorm:"column:source;type:text;not null;uniqueIndex:ux_user_coupons_grant"`
	SourceRef    string             `gorm:"column:source_ref;type:text;not null;uniqueIndex:ux_user_coupons_grant"`
	ValidUntil   time.Time          `gorm:"column:valid_until;not null"`
	IsUsed       bool               `gorm:"column:is_used;not null;default:false"`
	UsedAt       *time.Time         `gorm:"column:used_at"`
	UsedOrderID  *uuid.UUID         `gorm:"column:used_order_id;type:uuid"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}
