package enums

import "fmt"

// PackageStatus tracks the aggregation-window lifecycle of an open package.
// Transitions only ever move forward: active -> closed -> shipped.
type PackageStatus string

const (
	PackageStatusActive  PackageStatus = "active"
	PackageStatusClosed  PackageStatus = "closed"
	PackageStatusShipped PackageStatus = "shipped"
)

var validPackageStatuses = []PackageStatus{
	PackageStatusActive,
	PackageStatusClosed,
	PackageStatusShipped,
}

// String implements fmt.Stringer.
func (p PackageStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PackageStatus.
func (p PackageStatus) IsValid() bool {
	for _, candidate := range validPackageStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the status may move to the target state.
func (p PackageStatus) CanTransitionTo(target PackageStatus) bool {
	switch p {
	case PackageStatusActive:
		return target == PackageStatusClosed
	case PackageStatusClosed:
		return target == PackageStatusShipped
	default:
		return false
	}
}

// ParsePackageStatus converts the raw string to PackageStatus.
func ParsePackageStatus(value string) (PackageStatus, error) {
	for _, candidate := range validPackageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid package status %q", value)
}
