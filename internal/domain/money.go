package domain

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// CurrencyFactor is the number of minor units in one major unit.
const CurrencyFactor = 100

// Money is a monetary amount in minor units (cents).
// All arithmetic on claim amounts happens on the integer value.
type Money int64

// Dollars builds a Money from whole major units.
func Dollars(d int64) Money {
	return Money(d * CurrencyFactor)
}

// ParseMoney parses a decimal string such as "8850", "8850.5" or "-12.34".
// More than two fractional digits is an error rather than a rounding.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, fmt.Errorf("%w: malformed amount %q", ErrInvalidInput, s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: amount %q has more than two decimal places", ErrInvalidInput, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseUint(whole, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed amount %q", ErrInvalidInput, s)
	}
	cents, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed amount %q", ErrInvalidInput, s)
	}
	if units > (1<<63-1-cents)/CurrencyFactor {
		return 0, fmt.Errorf("%w: amount %q out of range", ErrInvalidInput, s)
	}

	m := Money(units*CurrencyFactor + cents)
	if neg {
		m = -m
	}
	return m, nil
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 {
	return int64(m)
}

// Float returns the amount in major units. Only for model features and
// expression inputs, never for money arithmetic.
func (m Money) Float() float64 {
	return float64(m) / CurrencyFactor
}

// String renders the amount as a plain decimal, e.g. "8850.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/CurrencyFactor, v%CurrencyFactor)
}

// Display renders the amount with a dollar sign and thousands separators,
// e.g. "$8,850.00".
func (m Money) Display() string {
	s := m.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	if strings.ContainsAny(s, "eE") {
		return fmt.Errorf("%w: exponent notation not supported for amounts", ErrInvalidInput)
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalText lets configuration loaders decode "50000" or "50000.00".
func (m *Money) UnmarshalText(text []byte) error {
	v, err := ParseMoney(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
