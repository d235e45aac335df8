package packages

import (
	"time"

	"github.com/google/uuid"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
)

type packageOpenedEvent struct {
	PackageID    uuid.UUID `json:"packageId"`
	CustomerID   uuid.UUID `json:"customerId"`
	FirstOrderID uuid.UUID `json:"firstOrderId"`
	OpenedAt     time.Time `json:"openedAt"`
	ClosesAt     time.Time `json:"closesAt"`
}

func newPackageOpenedEvent(pkg *models.OpenPackage, order *models.Order) packageOpenedEvent {
	return packageOpenedEvent{
		PackageID:    pkg.ID,
		CustomerID:   pkg.CustomerID,
		FirstOrderID: order.ID,
		OpenedAt:     pkg.OpenedAt,
		ClosesAt:     pkg.ClosesAt,
	}
}

type orderAddedEvent struct {
	PackageID          uuid.UUID `json:"packageId"`
	CustomerID         uuid.UUID `json:"customerId"`
	OrderID            uuid.UUID `json:"orderId"`
	OrderNumber        string    `json:"orderNumber"`
	WeightGrams        int       `json:"weightGrams"`
	VirtualWeightGrams int       `json:"virtualWeightGrams"`
	OverAdvisoryWeight bool      `json:"overAdvisoryWeight"`
	ClosesAt           time.Time `json:"closesAt"`
}

func newOrderAddedEvent(pkg *models.OpenPackage, order *models.Order, advisoryMaxGrams int) orderAddedEvent {
	return orderAddedEvent{
		PackageID:          pkg.ID,
		CustomerID:         pkg.CustomerID,
		OrderID:            order.ID,
		OrderNumber:        order.Number,
		WeightGrams:        order.EstimatedWeightGrams,
		VirtualWeightGrams: pkg.VirtualWeightGrams,
		OverAdvisoryWeight: advisoryMaxGrams > 0 && pkg.VirtualWeightGrams > advisoryMaxGrams,
		ClosesAt:           pkg.ClosesAt,
	}
}

type packageClosedEvent struct {
	PackageID  uuid.UUID  `json:"packageId"`
	CustomerID uuid.UUID  `json:"customerId"`
	ClosedAt   *time.Time `json:"closedAt"`
	Reason     string     `json:"reason"`
}

func newPackageClosedEvent(pkg *models.OpenPackage, reason string) packageClosedEvent {
	return packageClosedEvent{
		PackageID:  pkg.ID,
		CustomerID: pkg.CustomerID,
		ClosedAt:   pkg.ClosedAt,
		Reason:     reason,
	}
}

type closingSoonEvent struct {
	PackageID  uuid.UUID `json:"packageId"`
	CustomerID uuid.UUID `json:"customerId"`
	ClosesAt   time.Time `json:"closesAt"`
	Remaining  string    `json:"remaining"`
}

func newClosingSoonEvent(pkg *models.OpenPackage, now time.Time) closingSoonEvent {
	return closingSoonEvent{
		PackageID:  pkg.ID,
		CustomerID: pkg.CustomerID,
		ClosesAt:   pkg.ClosesAt,
		Remaining:  pkg.ClosesAt.Sub(now).Round(time.Minute).String(),
	}
}

type packageShippedEvent struct {
	PackageID        uuid.UUID  `json:"packageId"`
	CustomerID       uuid.UUID  `json:"customerId"`
	FinalWeightGrams *int       `json:"finalWeightGrams"`
	TrackingNumber   *string    `json:"trackingNumber"`
	ShippedAt        *time.Time `json:"shippedAt"`
}

func newPackageShippedEvent(pkg *models.OpenPackage) packageShippedEvent {
	return packageShippedEvent{
		PackageID:        pkg.ID,
		CustomerID:       pkg.CustomerID,
		FinalWeightGrams: pkg.FinalWeightGrams,
		TrackingNumber:   pkg.TrackingNumber,
		ShippedAt:        pkg.ShippedAt,
	}
}
