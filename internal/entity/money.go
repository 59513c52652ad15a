package entity

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in minor currency units (cents). Stored as BIGINT.
type Money int64

const maxMoneyUnits = 1_000_000_000_000_000

// ParseMoney parses decimal text such as "150", "150.5" or "150.50".
// More than two fractional digits is rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if s[0] == '-' || s[0] == '+' {
		negative = s[0] == '-'
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if hasFrac && len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("invalid amount %q", s)
			}
		}
	}

	var units int64
	if whole != "" {
		w, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || w > maxMoneyUnits/100 {
			return 0, fmt.Errorf("amount %q out of range", s)
		}
		units = w * 100
	}
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		f, _ := strconv.ParseInt(frac, 10, 64)
		units += f
	}

	if negative {
		units = -units
	}
	return Money(units), nil
}

// String formats with exactly two decimals, e.g. "1500.00".
func (m Money) String() string {
	units := int64(m)
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%02d", sign, units/100, units%100)
}

// Major returns the whole-unit part of the amount.
func (m Money) Major() int64 { return int64(m) / 100 }

// Minor returns the fractional cents, always non-negative.
func (m Money) Minor() int64 {
	v := int64(m) % 100
	if v < 0 {
		v = -v
	}
	return v
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both "150.00" and 150.00 without going through float64.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return int64(m), nil
}

func (m *Money) Scan(value interface{}) error {
	if value == nil {
		*m = 0
		return nil
	}

	switch v := value.(type) {
	case int64:
		*m = Money(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return err
		}
		*m = Money(n)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*m = Money(n)
	default:
		return fmt.Errorf("cannot scan type %T into Money", value)
	}
	return nil
}
