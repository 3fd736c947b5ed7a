package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation decides which calendar day a timed occurrence falls on.
	// Nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd is the inclusive window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// Occurrence is one dated instance ready to become an event.
type Occurrence struct {
	SourceID string
	UID      string
	Title    string
	Date     string
	Start    time.Time
}

// ExpandResult lists occurrences sorted by start, plus the UIDs that hit the
// per-event cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// ExpandDates turns parsed VEVENTs into dated occurrences inside the window.
// Single events, RRULE series, EXDATE removals and RECURRENCE-ID overrides
// are handled. A multi-day event yields its first day only.
func ExpandDates(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uids := make([]string, 0)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, ok := baseByUID[ev.UID]; !ok {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			result.Occurrences = append(result.Occurrences, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("ics expand truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		return result.Occurrences[i].Start.Before(result.Occurrences[j].Start)
	})
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	lo, hi := cfg.RangeStart, cfg.RangeEnd
	if ev.AllDay {
		lo = dateOnly(lo.In(cfg.DisplayLocation))
		hi = dateOnly(hi.In(cfg.DisplayLocation))
	}

	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, lo, hi) {
			return nil, false
		}
		if o, ok := findOverride(overrides, ev.Start); ok {
			ev = o
		}
		return []Occurrence{makeOccurrence(ev, ev.Start, cfg.DisplayLocation)}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(lo.In(loc), hi.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		base := ev
		if o, ok := findOverride(overrides, start); ok {
			base = o
			start = o.Start
		}
		out = append(out, makeOccurrence(base, start, cfg.DisplayLocation))
	}
	return out, hitCap
}

func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence keeps the calendar day of all-day events as written;
// timed events take the day they fall on in displayLoc.
func makeOccurrence(ev ParsedEvent, start time.Time, displayLoc *time.Location) Occurrence {
	day := start
	if !ev.AllDay {
		day = start.In(displayLoc)
	}
	return Occurrence{
		SourceID: ev.Source.ID,
		UID:      ev.UID,
		Title:    ev.Summary,
		Date:     day.Format(model.DateLayout),
		Start:    start,
	}
}

// overlaps treats end as exclusive, so an all-day event ending at lo's
// midnight is not in the window.
func overlaps(start, end, lo, hi time.Time) bool {
	if start.After(hi) {
		return false
	}
	if !start.Before(lo) {
		return true
	}
	return end.After(lo)
}
