package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of fractional digits kept on every Money amount.
const AmountPlaces = 3

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrInvalidCurrency  = errors.New("invalid currency")
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{2,5}$`)

// Money is an immutable non-negative amount in a given currency.
// The zero value is not a valid Money; use NewMoney or Zero.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney validates the currency code, rejects negative amounts and rounds
// the amount to AmountPlaces digits.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if !currencyPattern.MatchString(code) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s %s", ErrNegativeAmount, amount, code)
	}
	return Money{amount: amount.Round(AmountPlaces), currency: code}, nil
}

// ParseMoney builds a Money from a decimal string such as "45000.5".
func ParseMoney(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return NewMoney(d, currency)
}

// MustMoney is ParseMoney for literals; it panics on invalid input.
func MustMoney(amount, currency string) Money {
	m, err := ParseMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in currency.
func Zero(currency string) (Money, error) {
	return NewMoney(decimal.Zero, currency)
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }

// Equal reports whether both amount and currency are equal.
func (m Money) Equal(n Money) bool {
	return m.currency == n.currency && m.amount.Equal(n.amount)
}

// Add returns m+n. Both must share the same currency.
func (m Money) Add(n Money) (Money, error) {
	if err := sameCurrency(m, n); err != nil {
		return Money{}, err
	}
	return NewMoney(m.amount.Add(n.amount), m.currency)
}

// Sub returns m-n. Both must share the same currency and the result must not
// be negative.
func (m Money) Sub(n Money) (Money, error) {
	if err := sameCurrency(m, n); err != nil {
		return Money{}, err
	}
	return NewMoney(m.amount.Sub(n.amount), m.currency)
}

// Mul returns the product of two amounts of the same currency.
func (m Money) Mul(n Money) (Money, error) {
	if err := sameCurrency(m, n); err != nil {
		return Money{}, err
	}
	return NewMoney(m.amount.Mul(n.amount), m.currency)
}

// Scale multiplies the amount by a unitless factor, e.g. a held quantity.
func (m Money) Scale(factor decimal.Decimal) (Money, error) {
	return NewMoney(m.amount.Mul(factor), m.currency)
}

// Compare returns -1, 0 or +1. Amounts in different currencies are never
// compared.
func (m Money) Compare(n Money) (int, error) {
	if err := sameCurrency(m, n); err != nil {
		return 0, err
	}
	return m.amount.Cmp(n.amount), nil
}

func sameCurrency(a, b Money) error {
	if a.currency != b.currency {
		return fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, a.currency, b.currency)
	}
	return nil
}

// String formats ISO currencies with their symbol ("$60,000.00") and anything
// else as "<amount> <CODE>".
func (m Money) String() string {
	cur := money.GetCurrency(m.currency)
	if cur == nil {
		return m.amount.StringFixed(2) + " " + m.currency
	}
	minor := m.amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := NewMoney(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
