package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParsePrice reads a price written by a person: "12,50", "R$ 1.234,56", "1,234.56", "9.9".
// When both separators occur the last one is the decimal separator; a lone comma is decimal.
// A lone dot is decimal too, except in an "R$" amount where it is followed by exactly three
// digits: "R$ 1.234" is 1234 while "1.234" stays 1.234.
func ParsePrice(raw string) (float64, bool) {
	inReais := strings.Contains(raw, "R$")

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case inReais && lastDot >= 0 && len(s)-lastDot-1 == 3:
		s = strings.Replace(s, ".", "", 1)
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// FormatCurrency formats an amount as Brazilian Real.
// Example: 1234.5 -> "R$ 1.234,50"
func FormatCurrency(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	formatted := fmt.Sprintf("%.2f", amount)

	parts := strings.Split(formatted, ".")
	integerPart := parts[0]
	decimalPart := parts[1]

	// Thousands separators
	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}

	return sign + "R$ " + strings.Join(groups, ".") + "," + decimalPart
}
