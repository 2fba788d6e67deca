package moodle

import (
	"fmt"
	"strconv"
	"strings"
)

// CleanPercent normalizes a Moodle percentage cell ("84,21%") into a plain
// decimal string ("84.21"). Empty cells become "0".
func CleanPercent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0"
	}
	s = strings.ReplaceAll(s, ",", ".")
	return strings.ReplaceAll(s, "%", "")
}

// CleanNumber trims a numeric cell. Empty cells become "0".
func CleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0"
	}
	return s
}

// ParseFloat parses a metric leniently: decimal commas, percent signs and
// surrounding spaces are accepted, anything unparsable yields 0.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, ",", "."), "%", ""))
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseInt parses a count leniently, truncating fractional values.
func ParseInt(s string) int {
	return int(ParseFloat(s))
}

// normMetric renders a value for signature comparison: numbers with two
// decimals, everything else lower-cased.
func normMetric(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(strings.ReplaceAll(s, ",", "."), "%", "")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fmt.Sprintf("%.2f", f)
	}
	return strings.ToLower(s)
}

func normFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
