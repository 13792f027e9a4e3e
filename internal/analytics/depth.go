// Package analytics holds the pure decimal functions the detectors and the
// risk gate share. Nothing here performs I/O or keeps state, except History.
package analytics

import (
	"fmt"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/shopspring/decimal"
)

// DepthWeightedPrice walks levels best-first, taking quantity until target is
// filled or the levels run out. It returns the size actually achieved and the
// average price paid for it. An achieved size below target means the book
// cannot absorb the order; the average is then only valid for the partial
// size and callers must not treat it as the price for target.
func DepthWeightedPrice(levels []domain.PriceLevel, target decimal.Decimal) (achieved, avgPrice decimal.Decimal) {
	if !target.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	notional := decimal.Zero
	for _, lvl := range levels {
		remaining := target.Sub(achieved)
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, lvl.Quantity)
		achieved = achieved.Add(take)
		notional = notional.Add(take.Mul(lvl.Price))
	}
	if achieved.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	return achieved, notional.Div(achieved)
}

// FillPrice is DepthWeightedPrice for callers that need the full size: a
// partial fill is returned as domain.ErrInsufficientLiquidity.
func FillPrice(levels []domain.PriceLevel, target decimal.Decimal) (decimal.Decimal, error) {
	achieved, avg := DepthWeightedPrice(levels, target)
	if achieved.LessThan(target) {
		return decimal.Zero, fmt.Errorf("analytics: fill %s: only %s available: %w",
			target.String(), achieved.String(), domain.ErrInsufficientLiquidity)
	}
	return avg, nil
}

// CumulativeDepth sums the quantity of the first n levels. n <= 0 sums all.
func CumulativeDepth(levels []domain.PriceLevel, n int) decimal.Decimal {
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}
	total := decimal.Zero
	for _, lvl := range levels[:n] {
		total = total.Add(lvl.Quantity)
	}
	return total
}

// CumulativeNotional sums price*quantity over the first n levels. n <= 0
// sums all.
func CumulativeNotional(levels []domain.PriceLevel, n int) decimal.Decimal {
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}
	total := decimal.Zero
	for _, lvl := range levels[:n] {
		total = total.Add(lvl.Quantity.Mul(lvl.Price))
	}
	return total
}

// SlippagePercent is the relative distance between an execution price and a
// reference price, always non-negative.
func SlippagePercent(execPrice, reference decimal.Decimal) decimal.Decimal {
	if !reference.IsPositive() {
		return decimal.Zero
	}
	return execPrice.Sub(reference).Abs().Div(reference)
}
