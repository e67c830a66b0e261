// Package money provides currency-safe retail price arithmetic using integer minor
// units and the Fowler Money pattern. Batch entries carry price and cost as Money so
// margins and exports never round through float64.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	EUR = "EUR" // Euro
	USD = "USD" // US Dollar
	GBP = "GBP" // British Pound
	CHF = "CHF" // Swiss Franc
	JPY = "JPY" // Japanese Yen (no decimal places)
)

// DefaultCurrency is used when an amount arrives without a currency code
const DefaultCurrency = EUR

// ErrInvalidAmount is returned when a price string cannot be parsed
var ErrInvalidAmount = errors.New("invalid amount")

// Money represents a monetary value with currency.
// It wraps go-money for safe arithmetic and shopspring/decimal for precision calculations.
type Money struct {
	m *money.Money
}

// New creates a new Money value from minor units and currency code.
// An empty or unknown currency code falls back to DefaultCurrency.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{
		m: money.New(amountMinor, normalizeCurrency(currencyCode)),
	}
}

// NewFromDecimal creates Money from a decimal.Decimal value, rounding half away from zero
// to the currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	code := normalizeCurrency(currencyCode)
	currency := money.GetCurrency(code)

	multiplier := decimal.New(1, int32(currency.Fraction))
	minor := amount.Mul(multiplier).Round(0).IntPart()

	return New(minor, code)
}

// NewFromString parses a price typed by a user or read from a sheet.
// Accepts "12.99", "1,234.56", "€ 12.99" and, with europeanFormat, "1.234,56".
func NewFromString(amount string, currencyCode string, europeanFormat bool) (*Money, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(amount), " ", "")
	for _, sym := range []string{"$", "€", "£", "¥", "CHF"} {
		cleaned = strings.ReplaceAll(cleaned, sym, "")
	}

	if europeanFormat {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAmount, amount, err)
	}

	return NewFromDecimal(d, currencyCode), nil
}

func normalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || money.GetCurrency(code) == nil {
		return DefaultCurrency
	}
	return code
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero returns true if the amount is zero
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative returns true if the amount is less than zero
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// SameCurrency returns true if both have the same currency
func (m *Money) SameCurrency(other *Money) bool {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return false
	}
	return m.m.SameCurrency(other.m)
}

// Equals returns true if amount and currency match
func (m *Money) Equals(other *Money) bool {
	if m.IsZero() && other.IsZero() {
		return true
	}
	return m.SameCurrency(other) && m.Amount() == other.Amount()
}

// Display returns a formatted string for display (e.g., "€12.99")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

// String returns the amount as a fixed-point decimal string (e.g., "1234.50")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	d := decimal.NewFromInt(m.m.Amount())
	return d.Div(decimal.New(1, int32(m.m.Currency().Fraction)))
}

// MarginPercent returns the gross margin of selling at price m with the given cost:
// (price - cost) / price * 100, rounded to two decimals.
// Returns false when either side is missing, price is zero, or currencies differ.
func (m *Money) MarginPercent(cost *Money) (decimal.Decimal, bool) {
	if m.IsZero() || cost == nil || cost.m == nil || !m.SameCurrency(cost) {
		return decimal.Zero, false
	}

	price := m.ToDecimal()
	profit := price.Sub(cost.ToDecimal())
	return profit.Div(price).Mul(decimal.NewFromInt(100)).Round(2), true
}

// MarshalJSON encodes {"amount": <minor units>, "currency": "EUR", "display": "€12.99"}
func (m *Money) MarshalJSON() ([]byte, error) {
	if m == nil || m.m == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(map[string]interface{}{
		"amount":   m.Amount(),
		"currency": m.Currency(),
		"display":  m.Display(),
	})
}

// UnmarshalJSON accepts the MarshalJSON shape or a typed price string such as
// "12.99", "1.234,56 EUR" or "€ 4,50". Display is ignored.
func (m *Money) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var typed string
		if err := json.Unmarshal(data, &typed); err != nil {
			return err
		}
		parsed, err := parseTyped(typed)
		if err != nil {
			return err
		}
		m.m = parsed.m
		return nil
	}

	var v struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.m = money.New(v.Amount, normalizeCurrency(v.Currency))
	return nil
}

// parseTyped reads an optional trailing ISO code and treats a comma after the last
// dot as the decimal separator.
func parseTyped(s string) (*Money, error) {
	currency := DefaultCurrency
	if fields := strings.Fields(s); len(fields) > 1 {
		last := strings.ToUpper(fields[len(fields)-1])
		if len(last) == 3 && money.GetCurrency(last) != nil {
			currency = last
			s = strings.Join(fields[:len(fields)-1], " ")
		}
	}
	european := strings.LastIndex(s, ",") > strings.LastIndex(s, ".")
	return NewFromString(s, currency, european)
}
