package analytics

import "github.com/shopspring/decimal"

var two = decimal.NewFromInt(2)

// Mid is the average of best bid and best ask.
func Mid(bestBid, bestAsk decimal.Decimal) decimal.Decimal {
	return bestBid.Add(bestAsk).Div(two)
}

// SpreadPercent is (ask - bid) / mid as a fraction. A non-positive mid
// yields zero.
func SpreadPercent(bestBid, bestAsk, mid decimal.Decimal) decimal.Decimal {
	if !mid.IsPositive() {
		return decimal.Zero
	}
	return bestAsk.Sub(bestBid).Div(mid)
}

// ChangePercent is |current - previous| / previous. A non-positive previous
// yields zero.
func ChangePercent(previous, current decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		return decimal.Zero
	}
	return current.Sub(previous).Abs().Div(previous)
}
