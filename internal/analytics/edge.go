package analytics

import "github.com/shopspring/decimal"

// CrossVenueEdge is |a - b| / min(a, b). Non-positive prices have no edge.
func CrossVenueEdge(priceA, priceB decimal.Decimal) decimal.Decimal {
	if !priceA.IsPositive() || !priceB.IsPositive() {
		return decimal.Zero
	}
	return priceA.Sub(priceB).Abs().Div(decimal.Min(priceA, priceB))
}

// BuyA reports whether venue A is the cheaper venue and therefore the buy
// leg. Equal prices have no buy leg.
func BuyA(priceA, priceB decimal.Decimal) bool {
	return priceA.LessThan(priceB)
}
