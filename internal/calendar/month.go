// Package calendar builds the month grid shown next to the event list.
package calendar

import (
	"strconv"
	"time"

	"evcal/internal/model"
)

// Day is one cell of the grid.
type Day struct {
	Date     string // YYYY-MM-DD
	Day      int
	InMonth  bool // false for leading/trailing days of adjacent months
	Marked   bool // at least one event on this date
	Selected bool // equals the form's date field
	Today    bool
}

// MonthView is a month laid out as full weeks.
type MonthView struct {
	Year     int
	Month    time.Month
	Weekdays []string
	Weeks    [][]Day
}

// Title returns e.g. "October 2024".
func (v MonthView) Title() string {
	return v.Month.String() + " " + strconv.Itoa(v.Year)
}

// Key returns the month as "YYYY-MM".
func (v MonthView) Key() string {
	return time.Date(v.Year, v.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (v MonthView) Prev() string {
	return time.Date(v.Year, v.Month-1, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (v MonthView) Next() string {
	return time.Date(v.Year, v.Month+1, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Options controls grid construction.
type Options struct {
	// WeekStart is time.Monday or time.Sunday.
	WeekStart time.Weekday
	// Marked is the set of dates that carry a dot.
	Marked []string
	// Selected is the currently chosen date, if any.
	Selected string
	// Today is used to flag the current day. Zero means no day is flagged.
	Today time.Time
}

// Month lays out year/month as weeks of seven days, padded with days of the
// neighbouring months.
func Month(year int, month time.Month, opts Options) MonthView {
	if opts.WeekStart != time.Sunday {
		opts.WeekStart = time.Monday
	}

	marked := make(map[string]bool, len(opts.Marked))
	for _, d := range opts.Marked {
		marked[d] = true
	}
	today := ""
	if !opts.Today.IsZero() {
		today = model.FormatDate(opts.Today)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) - int(opts.WeekStart) + 7) % 7
	cur := first.AddDate(0, 0, -offset)

	view := MonthView{
		Year:     year,
		Month:    month,
		Weekdays: weekdayNames(opts.WeekStart),
	}
	for {
		week := make([]Day, 7)
		for i := range week {
			date := model.FormatDate(cur)
			week[i] = Day{
				Date:     date,
				Day:      cur.Day(),
				InMonth:  cur.Month() == month,
				Marked:   marked[date],
				Selected: date == opts.Selected,
				Today:    date == today,
			}
			cur = cur.AddDate(0, 0, 1)
		}
		view.Weeks = append(view.Weeks, week)
		if cur.Month() != month {
			break
		}
	}
	return view
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

// ParseWeekStart maps the config value to a weekday; anything but "sunday"
// means Monday.
func ParseWeekStart(s string) time.Weekday {
	if s == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

func weekdayNames(start time.Weekday) []string {
	names := make([]string, 7)
	for i := range names {
		names[i] = time.Weekday((int(start) + i) % 7).String()[:3]
	}
	return names
}
