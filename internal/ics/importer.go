package ics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/store"
)

// Importer copies occurrences from subscribed feeds into the store.
//
// An occurrence is created only when no event with the same title and date
// exists yet, so repeated runs do not duplicate entries and an event the
// user edited away is imported again as a new one.
type Importer struct {
	Fetcher *Fetcher
	Store   store.Store
	Sources []Source

	Location     *time.Location
	HorizonDays  int
	BackfillDays int

	// Now defaults to time.Now.
	Now func() time.Time

	// mu serializes Run; the list-then-create dedup is not atomic.
	mu sync.Mutex
}

// ImportResult summarizes one Run.
type ImportResult struct {
	Sources     int
	Parsed      int
	Occurrences int
	Created     int
	Skipped     int
}

// Run performs one import pass. Source-level failures are collected in the
// returned error while the remaining sources are still imported. Concurrent
// calls run one after another.
func (im *Importer) Run(ctx context.Context) (ImportResult, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	var res ImportResult
	if len(im.Sources) == 0 {
		return res, nil
	}

	now := time.Now
	if im.Now != nil {
		now = im.Now
	}
	loc := im.Location
	if loc == nil {
		loc = time.Local
	}
	horizon := im.HorizonDays
	if horizon <= 0 {
		horizon = 30
	}

	fetched, fetchErr := im.Fetcher.FetchAll(ctx, im.Sources)
	errs := []error{fetchErr}
	res.Sources = len(fetched)

	var parsed []ParsedEvent
	for _, fr := range fetched {
		evs, err := ParseICS(fr.Source, fr.Body)
		if err != nil {
			appLog.Error("ics import: parse failed", err, "id", fr.Source.ID)
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, evs...)
	}
	res.Parsed = len(parsed)

	today := now().In(loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -im.BackfillDays)
	expanded, err := ExpandDates(parsed, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      start,
		RangeEnd:        start.AddDate(0, 0, horizon+im.BackfillDays),
	})
	if err != nil {
		return res, err
	}
	res.Occurrences = len(expanded.Occurrences)

	existing, err := im.Store.List(ctx)
	if err != nil {
		return res, fmt.Errorf("ics import: list events: %w", err)
	}
	seen := make(map[model.Draft]bool, len(existing))
	for _, ev := range existing {
		seen[model.Draft{Title: ev.Title, Date: ev.Date}] = true
	}

	for _, occ := range expanded.Occurrences {
		d := model.Draft{Title: occ.Title, Date: occ.Date}
		if seen[d] {
			res.Skipped++
			continue
		}
		if _, err := im.Store.Create(ctx, d); err != nil {
			return res, fmt.Errorf("ics import: create %q: %w", d.Title, err)
		}
		seen[d] = true
		res.Created++
	}

	appLog.Info("ics import completed",
		"sources", res.Sources,
		"parsed", res.Parsed,
		"occurrences", res.Occurrences,
		"created", res.Created,
		"skipped", res.Skipped,
	)
	return res, errors.Join(errs...)
}
