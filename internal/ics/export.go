package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// ExportOptions describes the generated VCALENDAR.
type ExportOptions struct {
	// Name is published as X-WR-CALNAME.
	Name string
	// Domain scopes event UIDs so two installations do not collide.
	Domain string
	// Now stamps DTSTAMP. Zero means time.Now().
	Now time.Time
}

// EventUID returns the stable UID used for ev in exported feeds.
func EventUID(domain string, id int) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(domain+"/"+strconv.Itoa(id))).String() + "@" + domain
}

// Export renders events as an iCalendar feed of all-day VEVENTs. Events
// whose date is not YYYY-MM-DD are skipped.
func Export(events []model.Event, opts ExportOptions) string {
	if opts.Domain == "" {
		opts.Domain = "evcal.local"
	}
	if opts.Name == "" {
		opts.Name = "evcal"
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//evcal//event screen//EN")
	cal.SetXWRCalName(opts.Name)

	for _, ev := range events {
		day, err := time.Parse(model.DateLayout, ev.Date)
		if err != nil {
			appLog.Warn("ics export skipped event", "id", ev.ID, "date", ev.Date)
			continue
		}
		vev := cal.AddEvent(EventUID(opts.Domain, ev.ID))
		vev.SetDtStampTime(now.UTC())
		vev.SetSummary(ev.Title)
		vev.SetAllDayStartAt(day)
		vev.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}

	return cal.Serialize()
}
