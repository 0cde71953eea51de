package domain

import "github.com/shopspring/decimal"

// Money is an amount in minor units (cents).
type Money int64

const Currency = "USD"

func (m Money) Times(quantity int) Money {
	return m * Money(quantity)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the amount the way the payment processor expects it, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, Invalid("amount %q is not a number", s)
	}
	if d.IsNegative() {
		return 0, Invalid("amount must not be negative")
	}
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, Invalid("amount %q has more than two decimals", s)
	}
	return Money(cents.IntPart()), nil
}

// DiscountPercent returns how much cheaper price is compared to oldPrice,
// rounded to a whole percent. Zero when there is no discount.
func DiscountPercent(oldPrice, price Money) int {
	if oldPrice <= 0 || price >= oldPrice {
		return 0
	}
	off := decimal.NewFromInt(int64(oldPrice - price)).
		Div(decimal.NewFromInt(int64(oldPrice))).
		Mul(decimal.NewFromInt(100)).
		Round(0)
	return int(off.IntPart())
}
