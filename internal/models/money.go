package models

import (
	"github.com/shopspring/decimal"
)

// Money is a currency amount. It is serialized as a string with two decimal places.
type Money struct {
	decimal.Decimal
}

// NewMoney parses a decimal string such as "10.00".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

// MustMoney is NewMoney for literals known to be valid.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + other without rounding.
func (m Money) Add(other Money) Money {
	return Money{Decimal: m.Decimal.Add(other.Decimal)}
}

// Equal compares amounts by value, so "5.5" equals "5.50".
func (m Money) Equal(other Money) bool {
	return m.Decimal.Equal(other.Decimal)
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.Decimal.IsPositive()
}

func (m Money) String() string {
	return m.StringFixed(2)
}

// MarshalJSON renders the amount as a quoted fixed-point string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}
