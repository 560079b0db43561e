package model

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round2 rounds a monetary amount to 2 decimal places. Every derived amount
// is rounded at the point of computation so drift cannot accumulate across a
// chain of calculations.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Percent applies a percentage rate to an amount, rounded to 2 decimals.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).Round(2)
}
