package model

import "time"

// DateLayout is the day format used for Event.Date ("YYYY-MM-DD").
const DateLayout = "2006-01-02"

// Event is a single calendar entry. ID is assigned by the store on creation.
// Date is expected in DateLayout form but is not validated: the calendar
// grid always supplies it, manual entry may not.
type Event struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

// Draft is the input for creating an Event.
type Draft struct {
	Title string `json:"title" yaml:"title"`
	Date  string `json:"date" yaml:"date"`
}

// FormatDate renders t as a DateLayout string in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a DateLayout string in loc. A nil loc means time.Local.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, s, loc)
}
