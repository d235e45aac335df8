package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

// OpenPackage is a customer-scoped aggregation window letting several orders
// ship together. At most one active package exists per customer; the partial
// unique index ux_open_packages_customer_active enforces it.
type OpenPackage struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID         uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	Status             enums.PackageStatus `gorm:"column:status;type:text;not null;default:'active'"`
	OpenedAt           time.Time           `gorm:"column:opened_at;not null"`
	ClosesAt           time.Time           `gorm:"column:closes_at;not null"`
	ShippingCostPaid   bool                `gorm:"column:shipping_cost_paid;not null;default:false"`
	ShippingMethodID   uuid.UUID           `gorm:"column:shipping_method_id;type:uuid;not null"`
	ShippingAddressID  uuid.UUID           `gorm:"column:shipping_address_id;type:uuid;not null"`
	VirtualWeightGrams int                 `gorm:"column:virtual_weight_grams;not null;default:0"`
	FinalWeightGrams   *int                `gorm:"column:final_weight_grams"`
	TrackingNumber     *string             `gorm:"column:tracking_number"`
	ClosedAt           *time.Time          `gorm:"column:closed_at"`
	ShippedAt          *time.Time          `gorm:"column:shipped_at"`
	Orders             []OpenPackageOrder  `gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OpenPackageOrder records one order's membership in one package. Rows are
// append-only; is_paid flips false -> true exactly once.
type OpenPackageOrder struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PackageID   uuid.UUID  `gorm:"column:package_id;type:uuid;not null;uniqueIndex:ux_open_package_orders_pkg_order"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_open_package_orders_pkg_order"`
	AddedAt     time.Time  `gorm:"column:added_at;not null"`
	WeightGrams int        `gorm:"column:weight_grams;not null;default:0"`
	IsPaid      bool       `gorm:"column:is_paid;not null;default:false"`
	PaidAt      *time.Time `gorm:"column:paid_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
