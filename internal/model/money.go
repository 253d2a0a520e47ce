package model

import (
	"github.com/shopspring/decimal"
)

// Count returns the number of units in the cart (sum of quantities).
func Count(items []CartItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// Total returns Σ price*quantity rounded to cents.
// Summed in decimal so totals like 3*0.1 do not drift.
func Total(items []CartItem) float64 {
	sum := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}
	f, _ := sum.Round(2).Float64()
	return f
}
