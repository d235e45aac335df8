package enums

import "fmt"

// CouponSource identifies the event that triggered a coupon grant.
type CouponSource string

const (
	CouponSourceSignup   CouponSource = "signup"
	CouponSourceGameWin  CouponSource = "game_win"
	CouponSourceReferral CouponSource = "referral"
	CouponSourceCashback CouponSource = "order_cashback"
	CouponSourceManual   CouponSource = "manual"
)

var validCouponSources = []CouponSource{
	CouponSourceSignup,
	CouponSourceGameWin,
	CouponSourceReferral,
	CouponSourceCashback,
	CouponSourceManual,
}

// IsValid reports whether the value is a known CouponSource.
func (c CouponSource) IsValid() bool {
	for _, candidate := range validCouponSources {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCouponSource converts the raw string to CouponSource.
func ParseCouponSource(value string) (CouponSource, error) {
	for _, candidate := range validCouponSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon source %q", value)
}
