// Package finance derives the monetary fields of an accepted transaction.
// All amounts are rounded to 2 decimal places using half-up rounding (round
// half away from zero), applied uniformly to the three derived fields.
package finance

import "github.com/shopspring/decimal"

// TotalAmount returns quantity × unit price, rounded to 2 decimal places.
func TotalAmount(quantity int, price float64) decimal.Decimal {
	return decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(int64(quantity))).
		Round(2)
}

// DiscountAmount returns total × discount fraction, rounded to 2 decimal places.
func DiscountAmount(total decimal.Decimal, fraction float64) decimal.Decimal {
	return total.Mul(decimal.NewFromFloat(fraction)).Round(2)
}

// FinalAmount returns total − discount, rounded to 2 decimal places.
func FinalAmount(total, discount decimal.Decimal) decimal.Decimal {
	return total.Sub(discount).Round(2)
}
