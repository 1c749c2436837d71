// Package valuation holds the pure pricing math for orders. It operates on
// snapshots of (unit price, quantity) pairs so that the calculation stays
// independent of how line data is stored or traversed.
package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is a storage-independent snapshot of one order line at valuation time.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// InvalidDiscountError indicates a discount percentage outside [0, 100].
type InvalidDiscountError struct {
	Percentage decimal.Decimal
}

func (e *InvalidDiscountError) Error() string {
	return fmt.Sprintf("discount percentage %s outside [0, 100]", e.Percentage)
}

// Total returns the sum of unit price times quantity across all lines,
// rounded to 2 decimal places. An empty snapshot yields zero.
func Total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		sum = sum.Add(line.UnitPrice.Mul(qty))
	}
	return sum.Round(2)
}

// ApplyDiscount returns total reduced by the given percentage.
// Each call discounts the value passed in, so repeated application to an
// already-discounted total compounds multiplicatively.
func ApplyDiscount(total, percentage decimal.Decimal) (decimal.Decimal, error) {
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return decimal.Zero, &InvalidDiscountError{Percentage: percentage}
	}

	factor := hundred.Sub(percentage).Div(hundred)
	return total.Mul(factor).Round(2), nil
}
