// Package utils provides shared formatting and retry helpers.
package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatDollars formats an amount as "$12,345.67"; negatives as "-$12.30".
func FormatDollars(amount decimal.Decimal) string {
	negative := amount.IsNegative()
	str := amount.Abs().StringFixed(2)
	parts := strings.SplitN(str, ".", 2)

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// FormatDollarsRaw formats an amount as "$" followed by the number with two
// decimals and its own sign, e.g. "$150.50" or "$-12.30".
func FormatDollarsRaw(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// FormatSignedDollars formats a P/L figure with an explicit "+" for gains.
func FormatSignedDollars(amount decimal.Decimal) string {
	if amount.IsPositive() {
		return "+" + FormatDollars(amount)
	}
	return FormatDollars(amount)
}

// RoundPercent rounds a percentage to a whole number, half away from zero.
func RoundPercent(pct decimal.Decimal) int64 {
	return pct.Round(0).IntPart()
}

// Ratio returns part/whole*100, or zero when whole is zero.
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// FormatLots formats a volume in lots with two decimals.
func FormatLots(volume decimal.Decimal) string {
	return volume.StringFixed(2)
}

// groupThousands inserts commas into an unsigned integer string.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
