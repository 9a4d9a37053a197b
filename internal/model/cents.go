package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Cents is a fixed-point currency amount in integer cents. Portal costs and
// saved costs are compared in cents so that exact-match reconciliation does
// not depend on float representation.
type Cents int64

// ParseCents parses a currency string as rendered by the portal or the
// spreadsheet: optional "$", optional thousands separators, up to two
// decimal digits ("$1,234.5" parses as 123450).
func ParseCents(s string) (Cents, error) {
	clean := strings.TrimSpace(s)
	clean = strings.ReplaceAll(clean, "$", "")
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.ReplaceAll(clean, " ", "")
	if clean == "" {
		return 0, eris.New("model: empty amount")
	}

	neg := false
	if strings.HasPrefix(clean, "-") {
		neg = true
		clean = clean[1:]
	}

	whole, frac, _ := strings.Cut(clean, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}

	var total Cents
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, eris.Errorf("model: invalid amount %q", s)
		}
		total = total*10 + Cents(r-'0')
	}
	if neg {
		total = -total
	}
	return total, nil
}

// CentsFromFloat converts a two-decimal float amount, rounding half away
// from zero.
func CentsFromFloat(f float64) Cents {
	if f < 0 {
		return Cents(f*100 - 0.5)
	}
	return Cents(f*100 + 0.5)
}

// Float64 returns the amount in currency units.
func (c Cents) Float64() float64 {
	return float64(c) / 100
}

// String renders the amount with two decimals and no separators.
func (c Cents) String() string {
	v := c
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
