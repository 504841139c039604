// Package calendar is the explicit formatting context passed to the
// transforms: the clock, the time zone and the locale of the user.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"cifra/internal/core"
)

// DefaultLocale is used when no locale is configured.
var DefaultLocale = language.AmericanEnglish

// Context carries the clock, location and locale of one user. It is
// immutable and safe for concurrent use.
type Context struct {
	now     func() time.Time
	loc     *time.Location
	locale  language.Tag
	printer *message.Printer
}

// Option configures a Context.
type Option func(*Context)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.now = now }
}

// WithLocation sets the time zone dates are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(c *Context) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithLocale sets the locale used for number formatting.
func WithLocale(tag language.Tag) Option {
	return func(c *Context) { c.locale = tag }
}

// New creates a Context. Defaults: time.Now, UTC, DefaultLocale.
func New(opts ...Option) *Context {
	c := &Context{now: time.Now, loc: time.UTC, locale: DefaultLocale}
	for _, opt := range opts {
		opt(c)
	}
	c.printer = message.NewPrinter(c.locale)
	return c
}

// ParseLocale parses a BCP 47 tag such as "en-US" or "es_PE". The empty
// string yields DefaultLocale.
func ParseLocale(s string) (language.Tag, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", "-"))
	if s == "" {
		return DefaultLocale, nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("parse locale %q: %w", s, err)
	}
	return tag, nil
}

// LoadLocation wraps time.LoadLocation, mapping "" to UTC.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// Now returns the current time in the context's location.
func (c *Context) Now() time.Time { return c.now().In(c.loc) }

// Location returns the context's time zone.
func (c *Context) Location() *time.Location { return c.loc }

// Locale returns the context's locale.
func (c *Context) Locale() language.Tag { return c.locale }

// MonthsSinceYearStart is the number of months elapsed this year counting
// the current one: 1 in January, 12 in December.
func (c *Context) MonthsSinceYearStart() int {
	return int(c.Now().Month())
}

// CurrentPeriod returns the current year and 0-based month.
func (c *Context) CurrentPeriod() (year, month int) {
	now := c.Now()
	return now.Year(), int(now.Month()) - 1
}

// IsCurrentMonth reports whether (year, month) is the month in progress.
// month is 0-based.
func (c *Context) IsCurrentMonth(year, month int) bool {
	y, m := c.CurrentPeriod()
	return y == year && m == month
}

// FormatAmount formats d with two fraction digits and the locale's
// grouping and decimal separators.
func (c *Context) FormatAmount(d decimal.Decimal) string {
	return c.printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(),
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2)))
}

// FormatDate formats t as a calendar date in the context's location.
func (c *Context) FormatDate(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

func (c *Context) date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, c.loc)
}

// WeeksOfMonth splits a month into Monday-start weeks clipped to the first
// and last day of the month. month is 0-based.
func (c *Context) WeeksOfMonth(year, month int) []core.Week {
	first := c.date(year, time.Month(month+1), 1)
	last := first.AddDate(0, 1, -1)

	// back up to the Monday on or before the first day
	offset := (int(first.Weekday()) + 6) % 7
	start := first.AddDate(0, 0, -offset)

	var weeks []core.Week
	for n := 1; !start.After(last); n++ {
		ws, we := start, start.AddDate(0, 0, 6)
		if ws.Before(first) {
			ws = first
		}
		if we.After(last) {
			we = last
		}
		weeks = append(weeks, core.Week{
			ID:        ws.Format("2006-01-02"),
			Number:    n,
			DateRange: ws.Format("02 January") + " - " + we.Format("02 January"),
			Start:     ws,
			End:       we,
		})
		start = start.AddDate(0, 0, 7)
	}
	return weeks
}

// WeekID returns the ID of the week of t's month that contains t.
func (c *Context) WeekID(t time.Time) string {
	t = t.In(c.loc)
	day := c.date(t.Year(), t.Month(), t.Day())
	for _, w := range c.WeeksOfMonth(t.Year(), int(t.Month())-1) {
		if !day.Before(w.Start) && !day.After(w.End) {
			return w.ID
		}
	}
	return c.date(t.Year(), t.Month(), 1).Format("2006-01-02")
}
