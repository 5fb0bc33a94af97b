package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Cents(t *testing.T) {
	tests := []struct {
		amount string
		cents  int64
	}{
		{"0.50", 50},
		{"89.99", 8999},
		{"10000", 1000000},
		{"19.995", 2000},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.cents, Dollars(decimal.RequireFromString(tt.amount)).Cents())
		})
	}
}

func TestFromCents(t *testing.T) {
	m := FromCents(12345)
	assert.True(t, m.Amount().Equal(decimal.RequireFromString("123.45")))
	assert.Equal(t, USD, m.Currency())
	assert.Equal(t, "$123.45", m.String())
}

func TestMoney_AddAndTimes(t *testing.T) {
	a := Dollars(decimal.RequireFromString("10.25"))
	sum, err := a.Add(a.Times(3))
	require.NoError(t, err)
	assert.Equal(t, "$41.00", sum.String())

	_, err = a.Add(NewMoney(decimal.NewFromInt(1), "EUR"))
	assert.Error(t, err)
}

func TestMoney_Between(t *testing.T) {
	min, max := decimal.RequireFromString("0.50"), decimal.NewFromInt(10000)
	assert.True(t, Dollars(decimal.RequireFromString("0.50")).Between(min, max))
	assert.True(t, Dollars(decimal.NewFromInt(10000)).Between(min, max))
	assert.False(t, Dollars(decimal.RequireFromString("0.49")).Between(min, max))
	assert.False(t, Dollars(decimal.RequireFromString("10000.01")).Between(min, max))
}

func TestMoney_StringOtherCurrency(t *testing.T) {
	assert.Equal(t, "5.00 EUR", NewMoney(decimal.NewFromInt(5), "EUR").String())
}

func TestAddress(t *testing.T) {
	assert.True(t, Address{}.IsEmpty())

	a := Address{Line1: "123 Main St", City: "Kalamazoo", State: "MI", PostalCode: "49007", Country: "US"}
	assert.False(t, a.IsEmpty())
	assert.Equal(t, "123 Main St, Kalamazoo, MI 49007, US", a.String())
}
