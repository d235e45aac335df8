package returns

import "github.com/shopspring/decimal"

// RefundInput carries everything the refund arithmetic needs. Values come
// from the order snapshot and the loyalty settings; nothing here reads state.
type RefundInput struct {
	OrderTotal          decimal.Decimal
	ItemPrice           decimal.Decimal
	TotalDiscount       decimal.Decimal
	LoyaltyEarned       decimal.Decimal
	HadPromotionalGift  bool
	GiftValue           decimal.Decimal
	GiftThreshold       decimal.Decimal
	NewTotalAfterReturn decimal.Decimal
	GiftAlreadyReturned bool
}

// RefundResult is the decomposition of one returned item's refund.
type RefundResult struct {
	DiscountProrata  decimal.Decimal
	NetPrice         decimal.Decimal
	LoyaltyToRecover decimal.Decimal
	GiftDeduction    decimal.Decimal
	FinalRefund      decimal.Decimal
}

// CalculateRefund computes a returned item's refund. Pure: same inputs,
// same outputs. The item carries its pro-rata share of any order-level
// discount and of the loyalty earned on the order; the promotional gift is
// deducted when the remaining order total drops below the grant threshold.
// The result never goes negative.
func CalculateRefund(input RefundInput) RefundResult {
	var result RefundResult

	share := decimal.Zero
	if input.OrderTotal.IsPositive() {
		share = input.ItemPrice.Div(input.OrderTotal)
	}

	result.DiscountProrata = input.TotalDiscount.Mul(share).Round(2)
	result.NetPrice = input.ItemPrice.Sub(result.DiscountProrata)
	result.LoyaltyToRecover = input.LoyaltyEarned.Mul(share).Round(2)

	if input.HadPromotionalGift &&
		!input.GiftAlreadyReturned &&
		input.NewTotalAfterReturn.LessThan(input.GiftThreshold) {
		result.GiftDeduction = input.GiftValue
	} else {
		result.GiftDeduction = decimal.Zero
	}

	refund := result.NetPrice.Sub(result.LoyaltyToRecover).Sub(result.GiftDeduction)
	if refund.IsNegative() {
		refund = decimal.Zero
	}
	result.FinalRefund = refund
	return result
}
