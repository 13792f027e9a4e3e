package analytics

import "github.com/shopspring/decimal"

// AllocationDeviation is currentValue - targetPercent*total. Positive means
// over-allocated, negative under-allocated. targetPercent is a fraction.
func AllocationDeviation(currentValue, targetPercent, total decimal.Decimal) decimal.Decimal {
	return currentValue.Sub(TargetValue(targetPercent, total))
}

// TargetValue is targetPercent*total.
func TargetValue(targetPercent, total decimal.Decimal) decimal.Decimal {
	return targetPercent.Mul(total)
}

// DeviationRatio is |deviation| / targetValue. A zero target with any
// holding is an infinite deviation, reported as ok=false.
func DeviationRatio(deviation, targetValue decimal.Decimal) (ratio decimal.Decimal, ok bool) {
	if !targetValue.IsPositive() {
		return decimal.Zero, deviation.IsZero()
	}
	return deviation.Abs().Div(targetValue), true
}
