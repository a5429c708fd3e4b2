package core

// convert.go provides conversion helpers for raw survey cell values.
//
// These functions handle the messy reality of field tablet exports:
//   - Excel formula prefixes (="value")
//   - Surrounding quotes and whitespace
//   - Blank coordinates and counts
//   - Free-text comments containing apostrophes
//
// Parsers return an ok flag instead of an error when the caller is expected
// to record a diagnostic and continue.

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		idx[key] = i
	}
	return idx
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding double quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"`)
}

// GetCell returns the cleaned value of a named column, or "" when the column
// is absent or the row is short.
func GetCell(row []string, idx HeaderIndex, name string) string {
	pos, ok := idx[strings.ToLower(name)]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// ParseNumber parses a decimal number, tolerating thousands separators.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseCoord parses a latitude or longitude. Blank values are 0 and valid.
func ParseCoord(s string) (float64, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, true
	}
	return ParseNumber(s)
}

// ParseYesNo parses a Yes/No field value.
func ParseYesNo(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		return true, true
	case "no", "n", "false", "0", "":
		return false, true
	}
	return false, false
}

// MaxTreeCount is the largest tree count accepted for one slot.
const MaxTreeCount = 10000

// ParseCount parses a raw tree count. Blank and "0" report skip=true.
// Negative, non-integral or implausibly large values are an error.
func ParseCount(raw string) (n int, skip bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return 0, true, nil
	}
	n, err = strconv.Atoi(raw)
	if err != nil {
		f, ok := ParseNumber(raw)
		if !ok || f != math.Trunc(f) {
			return 0, false, fmt.Errorf("invalid tree count %q", raw)
		}
		if math.Abs(f) > MaxTreeCount {
			return 0, false, fmt.Errorf("tree count %q exceeds %d", raw, MaxTreeCount)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, false, fmt.Errorf("negative tree count %q", raw)
	}
	if n > MaxTreeCount {
		return 0, false, fmt.Errorf("tree count %q exceeds %d", raw, MaxTreeCount)
	}
	if n == 0 {
		return 0, true, nil
	}
	return n, false, nil
}

// StripApostrophes removes single quotes from free-text comments.
func StripApostrophes(s string) string {
	return strings.ReplaceAll(s, "'", "")
}

// FoldID returns the case-folded form of a project id used for
// case-insensitive comparison.
func FoldID(id string) string {
	return cases.Fold().String(strings.TrimSpace(id))
}
