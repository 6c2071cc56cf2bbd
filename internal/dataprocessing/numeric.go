package dataprocessing

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumber coerces a loan field to a float the way the HMDA consumers
// always have: leading whitespace is skipped and the longest decimal prefix
// is parsed, so "360" and "4.25%" both succeed while "Exempt", "NA" and ""
// fail. Infinite and NaN results are failures.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	end := numericPrefixLen(s)
	if end == 0 {
		return 0, false
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// numericPrefixLen returns the length of the longest prefix of s matching
// [+-]?(digits[.digits]|.digits)([eE][+-]?digits)?
func numericPrefixLen(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	intDigits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		intDigits++
	}

	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
			fracDigits++
		}
		if intDigits > 0 || fracDigits > 0 {
			i = j
		}
	}

	if intDigits == 0 && fracDigits == 0 {
		return 0
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expDigits := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			expDigits++
		}
		if expDigits > 0 {
			i = j
		}
	}

	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// ParseIncome reads a census income cell. Unlike loan fields the whole cell
// must be numeric; empty cells are rejected.
func ParseIncome(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Round2 rounds half up to two decimal places using the shortest decimal
// representation of v, so 1.005 rounds to 1.01.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
