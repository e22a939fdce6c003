package cushion

import "math"

// FutureValue returns the value after years of a principal compounded monthly
// plus a monthly contribution paid at the end of each month.
func FutureValue(principal, monthly, annualRatePercent, years float64) float64 {
	months := years * 12
	r := annualRatePercent / 12 / 100
	if r == 0 {
		return principal + monthly*months
	}
	growth := math.Pow(1+r, months)
	return principal*growth + monthly*(growth-1)/r
}

// DebtPayoffMonths returns how many months of payment it takes to repay
// principal at annualRatePercent. It is +Inf when payment is not positive,
// when it does not cover the monthly interest, or when the monthly rate is
// -100% or less.
func DebtPayoffMonths(principal, payment, annualRatePercent float64) float64 {
	if payment <= 0 {
		return math.Inf(1)
	}
	if principal <= 0 {
		return 0
	}
	r := annualRatePercent / 12 / 100
	if r == 0 {
		return principal / payment
	}
	if 1+r <= 0 || payment <= principal*r {
		return math.Inf(1)
	}
	return -math.Log(1-r*principal/payment) / math.Log(1+r)
}
