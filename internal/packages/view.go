package packages

import (
	"time"

	"github.com/google/uuid"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
)

// EffectiveStatus derives what the package actually is at the given instant.
// A stored active row past its deadline is closed, whether or not any writer
// has flipped the column yet.
func EffectiveStatus(pkg *models.OpenPackage, now time.Time) enums.PackageStatus {
	if pkg.Status == enums.PackageStatusActive && !pkg.ClosesAt.After(now) {
		return enums.PackageStatusClosed
	}
	return pkg.Status
}

// Countdown breaks the time left before the deadline into display units.
type Countdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// NewCountdown computes the countdown to the deadline, clamped at zero.
func NewCountdown(closesAt, now time.Time) Countdown {
	remaining := closesAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	total := int(remaining / time.Second)
	return Countdown{
		Days:    total / 86400,
		Hours:   (total % 86400) / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
	}
}

// OrderLine is one order's row in the package view.
type OrderLine struct {
	OrderID     uuid.UUID `json:"order_id"`
	AddedAt     time.Time `json:"added_at"`
	WeightGrams int       `json:"weight_grams"`
	IsPaid      bool      `json:"is_paid"`
}

// ActiveView is the customer-facing projection of the current window:
// countdown, weight gauge and order lines.
type ActiveView struct {
	ID                     uuid.UUID           `json:"id"`
	Status                 enums.PackageStatus `json:"status"`
	OpenedAt               time.Time           `json:"opened_at"`
	ClosesAt               time.Time           `json:"closes_at"`
	Countdown              Countdown           `json:"countdown"`
	VirtualWeightGrams     int                 `json:"virtual_weight_grams"`
	AdvisoryMaxWeightGrams int                 `json:"advisory_max_weight_grams"`
	OverAdvisoryWeight     bool                `json:"over_advisory_weight"`
	ShippingCostPaid       bool                `json:"shipping_cost_paid"`
	Orders                 []OrderLine         `json:"orders"`
}

// NewActiveView projects a package for display at the given instant.
func NewActiveView(pkg *models.OpenPackage, now time.Time, advisoryMaxGrams int) ActiveView {
	lines := make([]OrderLine, 0, len(pkg.Orders))
	for _, row := range pkg.Orders {
		lines = append(lines, OrderLine{
			OrderID:     row.OrderID,
			AddedAt:     row.AddedAt,
			WeightGrams: row.WeightGrams,
			IsPaid:      row.IsPaid,
		})
	}
	return ActiveView{
		ID:                     pkg.ID,
		Status:                 EffectiveStatus(pkg, now),
		OpenedAt:               pkg.OpenedAt,
		ClosesAt:               pkg.ClosesAt,
		Countdown:              NewCountdown(pkg.ClosesAt, now),
		VirtualWeightGrams:     pkg.VirtualWeightGrams,
		AdvisoryMaxWeightGrams: advisoryMaxGrams,
		OverAdvisoryWeight:     advisoryMaxGrams > 0 && pkg.VirtualWeightGrams > advisoryMaxGrams,
		ShippingCostPaid:       pkg.ShippingCostPaid,
		Orders:                 lines,
	}
}
