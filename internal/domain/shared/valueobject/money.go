package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents an ISO 4217 currency code
type Currency string

// USD is the only currency the store sells in
const USD Currency = "USD"

var hundred = decimal.NewFromInt(100)

// Money is an immutable amount in major units (dollars)
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates Money in the given currency
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	if currency == "" {
		currency = USD
	}
	return Money{amount: amount, currency: currency}
}

// Dollars creates USD money from a major-unit amount
func Dollars(amount decimal.Decimal) Money {
	return NewMoney(amount, USD)
}

// FromCents creates USD money from minor units, as Stripe reports them
func FromCents(cents int64) Money {
	return Dollars(decimal.NewFromInt(cents).Div(hundred))
}

// Amount returns the amount in major units
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Cents returns the amount in minor units, rounded half away from zero
func (m Money) Cents() int64 {
	return m.amount.Mul(hundred).Round(0).IntPart()
}

// Add returns the sum. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Times multiplies by a quantity
func (m Money) Times(qty int) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(qty))), currency: m.currency}
}

// Between reports whether lo <= m <= hi, comparing amounts only
func (m Money) Between(lo, hi decimal.Decimal) bool {
	return m.amount.GreaterThanOrEqual(lo) && m.amount.LessThanOrEqual(hi)
}

// String formats as "$12.34" for USD and "12.34 EUR" otherwise
func (m Money) String() string {
	if m.currency == USD || m.currency == "" {
		return "$" + m.amount.StringFixed(2)
	}
	return m.amount.StringFixed(2) + " " + string(m.currency)
}
