package expense

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AllCategories is the filter value matching every category.
const AllCategories = "ALL"

// Period is a half-open time range [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayRange returns the calendar day containing t in loc.
func DayRange(t time.Time, loc *time.Location) Period {
	start := startOfDay(t, loc)
	return Period{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekRange returns the Monday-to-Sunday week containing t in loc.
func WeekRange(t time.Time, loc *time.Location) Period {
	day := startOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return Period{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthRange returns the calendar month containing t in loc.
func MonthRange(t time.Time, loc *time.Location) Period {
	day := startOfDay(t, loc)
	start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// InPeriod returns the rows created inside p, keeping their order.
func InPeriod(rows []Expense, p Period) []Expense {
	out := make([]Expense, 0, len(rows))
	for _, e := range rows {
		if p.Contains(e.CreatedAt) {
			out = append(out, e)
		}
	}
	return out
}

// Total sums the amounts of the rows created inside p.
func Total(rows []Expense, p Period) decimal.Decimal {
	total := decimal.Zero
	for _, e := range rows {
		if p.Contains(e.CreatedAt) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// CategoryShare is one slice of a category breakdown.
type CategoryShare struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
	// Percent of the period total, 0 to 100, rounded to one decimal.
	Percent decimal.Decimal `json:"percent"`
}

// CategoryBreakdown groups the rows in p by category label.
// Categories totalling zero are left out. Largest amount first, then by label.
func CategoryBreakdown(rows []Expense, p Period) []CategoryShare {
	index := make(map[string]int)
	var shares []CategoryShare
	total := decimal.Zero

	for _, e := range rows {
		if !p.Contains(e.CreatedAt) {
			continue
		}
		label := e.CategoryLabel()
		i, ok := index[label]
		if !ok {
			i = len(shares)
			index[label] = i
			shares = append(shares, CategoryShare{Category: label, Amount: decimal.Zero})
		}
		shares[i].Amount = shares[i].Amount.Add(e.Amount)
		shares[i].Count++
		total = total.Add(e.Amount)
	}

	shares = slices.DeleteFunc(shares, func(c CategoryShare) bool { return c.Amount.IsZero() })
	hundred := decimal.NewFromInt(100)
	for i := range shares {
		if total.IsZero() {
			break
		}
		shares[i].Percent = shares[i].Amount.Div(total).Mul(hundred).Round(1)
	}

	slices.SortFunc(shares, func(a, b CategoryShare) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	return shares
}

// Filter keeps the rows matching category and search.
// An empty category or AllCategories matches everything. search is matched
// case-insensitively against the description and the category label.
func Filter(rows []Expense, category, search string) []Expense {
	category = strings.TrimSpace(category)
	needle := strings.ToLower(strings.TrimSpace(search))

	out := make([]Expense, 0, len(rows))
	for _, e := range rows {
		if category != "" && category != AllCategories && !strings.EqualFold(e.CategoryLabel(), category) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.Description), needle) &&
			!strings.Contains(strings.ToLower(e.CategoryLabel()), needle) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// DayTotal is one calendar day's spending.
type DayTotal struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// DailyTotals totals each calendar day of p, oldest first. Days without
// expenses are included with a zero total.
func DailyTotals(rows []Expense, p Period) []DayTotal {
	in := InPeriod(rows, p)
	var days []DayTotal
	for start := p.Start; start.Before(p.End); start = start.AddDate(0, 0, 1) {
		day := Period{Start: start, End: start.AddDate(0, 0, 1)}
		days = append(days, DayTotal{Date: DateKey(start), Total: Total(in, day)})
	}
	return days
}

// Summary is the dashboard view of a user's expenses.
type Summary struct {
	Today           decimal.Decimal `json:"today"`
	Week            decimal.Decimal `json:"week"`
	Month           decimal.Decimal `json:"month"`
	WeekRange       Period          `json:"weekRange"`
	MonthRange      Period          `json:"monthRange"`
	WeekDays        []DayTotal      `json:"weekDays"`
	ByCategoryWeek  []CategoryShare `json:"byCategoryWeek"`
	ByCategoryMonth []CategoryShare `json:"byCategoryMonth"`
}

// Summarize computes the totals for the day, week and month containing now.
func Summarize(rows []Expense, now time.Time, loc *time.Location) Summary {
	day := DayRange(now, loc)
	week := WeekRange(now, loc)
	month := MonthRange(now, loc)

	return Summary{
		Today:           Total(rows, day),
		Week:            Total(rows, week),
		Month:           Total(rows, month),
		WeekRange:       week,
		MonthRange:      month,
		WeekDays:        DailyTotals(rows, week),
		ByCategoryWeek:  CategoryBreakdown(rows, week),
		ByCategoryMonth: CategoryBreakdown(rows, month),
	}
}
