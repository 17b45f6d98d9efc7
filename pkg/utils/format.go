package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatPrice formats a price with two decimals and thousands separators,
// e.g. 1234.5 -> "1,234.50".
func FormatPrice(v float64) string {
	neg := v < 0
	s := fmt.Sprintf("%.2f", math.Abs(v))
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// FormatPercent formats a percentage with an explicit sign, e.g. "+1.25%".
func FormatPercent(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	if pct == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
