package accounting

import (
	"strings"
	"unicode"

	"cifra/internal/calendar"
	"cifra/internal/core"
)

const (
	incomeCategoryID   = "income"
	incomeCategoryName = "Income"
	uncategorized      = "Uncategorized"
)

// WeeklyCashFlow lays the journal of (year, month) out week by week. Income
// entries share one heading; expenses are grouped by category in order of
// first appearance. Transfers and entries dated outside the month are left
// out. month is 0-based.
func WeeklyCashFlow(summary *core.AccountingSummary, year, month int, cal *calendar.Context) core.WeeklyCashFlow {
	out := core.WeeklyCashFlow{
		Weeks:      cal.WeeksOfMonth(year, month),
		Categories: []core.WeeklyCategory{},
	}
	if summary == nil || len(out.Weeks) == 0 {
		return out
	}

	income := core.WeeklyCategory{ID: incomeCategoryID, Name: incomeCategoryName, Items: []core.WeeklyItem{}}
	var expenses []*core.WeeklyCategory
	byName := make(map[string]*core.WeeklyCategory)

	for _, e := range summary.JournalEntries {
		local := e.CreatedAt.In(cal.Location())
		if local.Year() != year || int(local.Month())-1 != month {
			continue
		}
		item := core.WeeklyItem{
			ID:          e.ID,
			Description: e.Description,
			Amount:      e.Amount,
			WeekID:      cal.WeekID(local),
			CreatedAt:   e.CreatedAt,
			Category:    e.Category,
		}
		switch e.Type {
		case core.Income:
			item.Account = accountName(e.AccountTo)
			income.Items = append(income.Items, item)
		case core.Expense:
			item.Account = accountName(e.AccountFrom)
			name := strings.TrimSpace(e.Category.Name)
			if name == "" {
				name = uncategorized
			}
			cat, ok := byName[name]
			if !ok {
				cat = &core.WeeklyCategory{ID: "expense-" + slug(name), Name: name}
				byName[name] = cat
				expenses = append(expenses, cat)
			}
			cat.Items = append(cat.Items, item)
		}
	}

	out.Categories = append(out.Categories, income)
	for _, c := range expenses {
		out.Categories = append(out.Categories, *c)
	}
	return out
}

func accountName(ref *core.AccountRef) string {
	if ref == nil {
		return ""
	}
	return ref.Name
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
