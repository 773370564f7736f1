// Package core provides money parsing and formatting utilities.
//
// Amounts are carried as decimal.Decimal end to end; floats only appear when
// handing a value to the locale printer.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Hundred is the percentage base.
var Hundred = decimal.NewFromInt(100)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// ParseAmount converts a user supplied amount to a decimal rounded to cents.
//
// It accepts a dot (12.34) or a comma (12,34) decimal separator. When both
// appear, the pt-BR convention applies: dots group thousands and the comma is
// the decimal separator (1.234,56). Signs are rejected, zero is allowed.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("12.345")   -> 12.35 (half-up)
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// FormatCurrency renders an amount as Brazilian reais, e.g. "R$ 1.234,50".
func FormatCurrency(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "R$ " + brl.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

// Percent returns part/whole × 100, or zero when whole is not positive.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(Hundred)
}
