package enums

import "fmt"

// LedgerEntryType is the closed set of reasons a loyalty/wallet entry exists.
type LedgerEntryType string

const (
	LedgerEntryTypeOrderCashback  LedgerEntryType = "order_cashback"
	LedgerEntryTypeReview         LedgerEntryType = "review"
	LedgerEntryTypeDiamondFound   LedgerEntryType = "diamond_found"
	LedgerEntryTypeReferral       LedgerEntryType = "referral"
	LedgerEntryTypeWelcome        LedgerEntryType = "welcome"
	LedgerEntryTypeReturnClawback LedgerEntryType = "return_clawback"
	LedgerEntryTypeReturnCredit   LedgerEntryType = "return_credit"
	LedgerEntryTypeAdjustment     LedgerEntryType = "adjustment"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeOrderCashback,
	LedgerEntryTypeReview,
	LedgerEntryTypeDiamondFound,
	LedgerEntryTypeReferral,
	LedgerEntryTypeWelcome,
	LedgerEntryTypeReturnClawback,
	LedgerEntryTypeReturnCredit,
	LedgerEntryTypeAdjustment,
}

// IsValid reports whether the value is a known LedgerEntryType.
func (l LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// IsEarning reports whether the tier multiplier applies when posting.
// Clawbacks and adjustments post the caller's amount verbatim.
func (l LedgerEntryType) IsEarning() bool {
	switch l {
	case LedgerEntryTypeOrderCashback,
		LedgerEntryTypeReview,
		LedgerEntryTypeDiamondFound,
		LedgerEntryTypeReferral,
		LedgerEntryTypeWelcome:
		return true
	default:
		return false
	}
}

// ParseLedgerEntryType converts the raw string to LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
