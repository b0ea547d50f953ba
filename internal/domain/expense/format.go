package expense

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "₱"

var weekOrdinals = []string{"First", "Second", "Third", "Fourth", "Fifth"}

// FormatCurrency renders amount with the currency symbol and two decimals.
func FormatCurrency(amount decimal.Decimal) string {
	return CurrencySymbol + amount.StringFixed(2)
}

// ParseAmount reads a user-typed amount such as "₱ 23", "$23.2" or "23.00".
// Everything but digits and dots is ignored; anything unparsable is zero.
func ParseAmount(input string) decimal.Decimal {
	var b strings.Builder
	for _, r := range input {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	normalized := b.String()

	// Keep the longest leading prefix that parses, so "1.2.3" reads as 1.2.
	if i := strings.Index(normalized, "."); i >= 0 {
		if j := strings.Index(normalized[i+1:], "."); j >= 0 {
			normalized = normalized[:i+1+j]
		}
	}
	normalized = strings.TrimSuffix(normalized, ".")
	if normalized == "" || normalized == "." {
		return decimal.Zero
	}
	if strings.HasPrefix(normalized, ".") {
		normalized = "0" + normalized
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatShortDate renders t as "Jan 14".
func FormatShortDate(t time.Time) string {
	return t.Format("Jan 2")
}

// MonthLabel renders t as "January 2026".
func MonthLabel(t time.Time) string {
	return t.Format("January 2006")
}

// WeekLabel names the week of the month t falls in, e.g. "First Week of Jan, 2026".
func WeekLabel(t time.Time) string {
	i := (t.Day() - 1) / 7
	if i >= len(weekOrdinals) {
		i = len(weekOrdinals) - 1
	}
	return fmt.Sprintf("%s Week of %s", weekOrdinals[i], t.Format("Jan, 2006"))
}

// DateKey renders t as "2026-01-14", for grouping rows by day.
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
