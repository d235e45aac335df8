package enums

import "fmt"

// ReturnType distinguishes store-credit returns from bank refunds.
type ReturnType string

const (
	ReturnTypeCredit ReturnType = "credit"
	ReturnTypeRefund ReturnType = "refund"
)

var validReturnTypes = []ReturnType{
	ReturnTypeCredit,
	ReturnTypeRefund,
}

// IsValid reports whether the value is a known ReturnType.
func (r ReturnType) IsValid() bool {
	for _, candidate := range validReturnTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReturnType converts the raw string to ReturnType.
func ParseReturnType(value string) (ReturnType, error) {
	for _, candidate := range validReturnTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return type %q", value)
}
