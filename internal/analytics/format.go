package analytics

import (
	"math"
	"strconv"
	"strings"
)

// Number formatting follows pt-BR convention: dot thousand separators,
// comma decimals.

// FormatNumber renders a value with two decimals, or none for whole
// numbers.
func FormatNumber(v float64) string {
	decimals := 2
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		decimals = 0
	}
	return groupDigits(strconv.FormatFloat(v, 'f', decimals, 64))
}

// FormatCurrency renders a value as Brazilian reais, always with two
// decimals.
func FormatCurrency(v float64) string {
	return "R$ " + groupDigits(strconv.FormatFloat(v, 'f', 2, 64))
}

// FormatPercent renders a percentage with one decimal place.
func FormatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.Replace(s, ".", ",", 1) + "%"
}

// groupDigits rewrites a plain decimal string ("-1234.56") with pt-BR
// separators ("-1.234,56").
func groupDigits(s string) string {
	var sb strings.Builder
	if strings.HasPrefix(s, "-") {
		sb.WriteByte('-')
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(d)
	}
	if fracPart != "" {
		sb.WriteByte(',')
		sb.WriteString(fracPart)
	}
	return sb.String()
}
