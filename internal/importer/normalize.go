package importer

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var numericPattern = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)

// CleanCell trims a raw cell and strips the artifacts spreadsheet exports
// leave behind: the ="..." formula wrapper and stray surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// cleanName trims and collapses inner whitespace runs.
func cleanName(s string) string {
	return strings.Join(strings.Fields(CleanCell(s)), " ")
}

// parsePrice returns ok=false when the cell holds something that is not a
// number after symbol stripping. Blank cells parse to zero.
func parsePrice(raw string) (decimal.Decimal, bool) {
	s := CleanCell(raw)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "", "\u00a0", "").Replace(s)
	if s == "" {
		return decimal.Zero, true
	}
	if negative {
		s = "-" + strings.TrimPrefix(s, "-")
	}
	return parseNumber(s)
}

// parseQuantity treats blank and unreadable cells as zero.
func parseQuantity(raw string) decimal.Decimal {
	s := strings.ReplaceAll(CleanCell(raw), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, ok := parseNumber(s)
	if !ok {
		return decimal.Zero
	}
	return d
}

func parseNumber(s string) (decimal.Decimal, bool) {
	if !numericPattern.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
