package insights

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// formatCompactNumber renders a dollar amount the way insight copy shows it:
// 1,500,000 -> "1.5M", 180,000 -> "180K", 999 -> "999". A trailing ".0" on
// the millions form is stripped.
func formatCompactNumber(v float64) string {
	switch {
	case v >= 1_000_000:
		s := strconv.FormatFloat(v/1_000_000, 'f', 1, 64)
		s = strings.TrimSuffix(s, ".0")
		return s + "M"
	case v >= 1_000:
		return strconv.FormatFloat(math.Round(v/1_000), 'f', 0, 64) + "K"
	default:
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	}
}

var financialPattern = regexp.MustCompile(`\$(\d+(?:\.\d+)?)([KM])?`)

// parseFinancialValue extracts the dollar figure from impact copy such as
// "~$180K/year estimated impact". It exists only to derive sort keys, so a
// missing or malformed value parses as 0 rather than erroring.
func parseFinancialValue(s string) float64 {
	m := financialPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch m[2] {
	case "K":
		v *= 1_000
	case "M":
		v *= 1_000_000
	}
	return v
}

func estimatedImpact(annual float64) string {
	return fmt.Sprintf("~$%s/year estimated impact", formatCompactNumber(annual))
}

func revenueAtRisk(annual float64) string {
	return fmt.Sprintf("~$%s/year revenue at risk", formatCompactNumber(annual))
}
