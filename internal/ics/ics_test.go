package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"evcal/internal/model"
	"evcal/internal/store"
)

var sampleFeed = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//test//EN",
	"BEGIN:VEVENT",
	"UID:single@test",
	"DTSTAMP:20241001T000000Z",
	"SUMMARY:Launch",
	"DTSTART;VALUE=DATE:20241015",
	"DTEND;VALUE=DATE:20241016",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:timed@test",
	"DTSTAMP:20241001T000000Z",
	"SUMMARY:Call",
	"DTSTART:20241020T230000Z",
	"DTEND:20241020T233000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly@test",
	"DTSTAMP:20241001T000000Z",
	"SUMMARY:Yoga",
	"DTSTART;VALUE=DATE:20241001",
	"RRULE:FREQ=WEEKLY;COUNT=4",
	"EXDATE;VALUE=DATE:20241008",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly@test",
	"DTSTAMP:20241001T000000Z",
	"SUMMARY:Yoga (moved)",
	"RECURRENCE-ID;VALUE=DATE:20241015",
	"DTSTART;VALUE=DATE:20241016",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"DTSTAMP:20241001T000000Z",
	"SUMMARY:No uid",
	"DTSTART;VALUE=DATE:20241001",
	"END:VEVENT",
	"END:VCALENDAR",
	"",
}, "\r\n")

var october = ExpandConfig{
	DisplayLocation: time.UTC,
	RangeStart:      time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC),
	RangeEnd:        time.Date(2024, time.October, 31, 0, 0, 0, 0, time.UTC),
}

func parseSample(t *testing.T) []ParsedEvent {
	t.Helper()
	evs, err := ParseICS(Source{ID: "sample"}, []byte(sampleFeed))
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	return evs
}

func TestParseICS(t *testing.T) {
	evs := parseSample(t)
	if len(evs) != 4 {
		t.Fatalf("len = %d, want 4 (event without UID skipped)", len(evs))
	}

	launch := evs[0]
	if launch.UID != "single@test" || launch.Summary != "Launch" || !launch.AllDay {
		t.Errorf("launch = %+v", launch)
	}
	if got := launch.Start.Format(model.DateLayout); got != "2024-10-15" {
		t.Errorf("launch start = %s", got)
	}

	call := evs[1]
	if call.AllDay {
		t.Error("timed event flagged all-day")
	}
	if !call.Start.Equal(time.Date(2024, time.October, 20, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("call start = %s", call.Start)
	}

	yoga := evs[2]
	if yoga.RawRRule != "FREQ=WEEKLY;COUNT=4" || len(yoga.ExDates) != 1 {
		t.Errorf("yoga = %+v", yoga)
	}

	moved := evs[3]
	if !moved.IsOverride || moved.Recurrence == nil {
		t.Fatalf("override not detected: %+v", moved)
	}
	if !moved.End.Equal(moved.Start.AddDate(0, 0, 1)) {
		t.Errorf("all-day without DTEND: end = %s", moved.End)
	}
}

func TestParseICSEmpty(t *testing.T) {
	if _, err := ParseICS(Source{ID: "x"}, nil); err == nil {
		t.Error("ParseICS(nil) err = nil")
	}
}

func TestExpandDates(t *testing.T) {
	res, err := ExpandDates(parseSample(t), october)
	if err != nil {
		t.Fatalf("ExpandDates: %v", err)
	}

	want := []struct{ title, date string }{
		{"Yoga", "2024-10-01"},
		{"Launch", "2024-10-15"},
		{"Yoga (moved)", "2024-10-16"},
		{"Call", "2024-10-20"},
		{"Yoga", "2024-10-22"},
	}
	if len(res.Occurrences) != len(want) {
		t.Fatalf("occurrences = %+v", res.Occurrences)
	}
	for i, w := range want {
		got := res.Occurrences[i]
		if got.Title != w.title || got.Date != w.date {
			t.Errorf("occ[%d] = %s %s, want %s %s", i, got.Title, got.Date, w.title, w.date)
		}
	}
}

func TestExpandDatesDisplayZone(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	cfg := october
	cfg.DisplayLocation = seoul

	res, err := ExpandDates(parseSample(t), cfg)
	if err != nil {
		t.Fatalf("ExpandDates: %v", err)
	}
	for _, occ := range res.Occurrences {
		if occ.UID == "timed@test" && occ.Date != "2024-10-21" {
			t.Errorf("call date in KST = %s, want 2024-10-21", occ.Date)
		}
		if occ.UID == "single@test" && occ.Date != "2024-10-15" {
			t.Errorf("all-day date shifted to %s", occ.Date)
		}
	}
}

func TestExpandDatesWindowAndCap(t *testing.T) {
	cfg := october
	cfg.RangeStart = time.Date(2024, time.October, 16, 0, 0, 0, 0, time.UTC)

	res, err := ExpandDates(parseSample(t), cfg)
	if err != nil {
		t.Fatalf("ExpandDates: %v", err)
	}
	if len(res.Occurrences) != 2 {
		t.Errorf("occurrences = %+v, want Call and Yoga", res.Occurrences)
	}
	for _, occ := range res.Occurrences {
		if occ.Date < "2024-10-16" {
			t.Errorf("occurrence %s %s before window", occ.Title, occ.Date)
		}
	}

	capped := october
	capped.MaxOccurrencesPerEvent = 1
	res, err = ExpandDates(parseSample(t), capped)
	if err != nil {
		t.Fatalf("ExpandDates: %v", err)
	}
	if len(res.TruncatedEvents) != 1 || res.TruncatedEvents[0] != "weekly@test" {
		t.Errorf("TruncatedEvents = %v", res.TruncatedEvents)
	}

	cfg.RangeEnd = cfg.RangeStart.Add(-time.Hour)
	if _, err := ExpandDates(nil, cfg); err == nil {
		t.Error("inverted range err = nil")
	}
}

func TestExport(t *testing.T) {
	events := []model.Event{
		{ID: 1, Title: "Birthday Party", Date: "2024-10-29"},
		{ID: 2, Title: "Someday", Date: "tomorrow"},
	}
	out := Export(events, ExportOptions{Name: "Family", Domain: "example.org"})

	if !strings.Contains(out, "X-WR-CALNAME:Family") {
		t.Errorf("missing calendar name:\n%s", out)
	}
	if strings.Contains(out, "Someday") {
		t.Errorf("event with malformed date exported:\n%s", out)
	}

	parsed, err := ParseICS(Source{ID: "export"}, []byte(out))
	if err != nil {
		t.Fatalf("ParseICS(export): %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("parsed = %+v", parsed)
	}
	ev := parsed[0]
	if ev.Summary != "Birthday Party" || !ev.AllDay || ev.Start.Format(model.DateLayout) != "2024-10-29" {
		t.Errorf("parsed = %+v", ev)
	}
	if ev.UID != EventUID("example.org", 1) {
		t.Errorf("UID = %s", ev.UID)
	}
}

func TestEventUIDStable(t *testing.T) {
	if EventUID("a", 1) != EventUID("a", 1) {
		t.Error("UID not deterministic")
	}
	if EventUID("a", 1) == EventUID("a", 2) || EventUID("a", 1) == EventUID("b", 1) {
		t.Error("UID collision")
	}
}

func TestFetcherHTTPCache(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "remote", URL: srv.URL + "/feed.ics?token=secret"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	if err != nil || first.FromCache || string(first.Body) != sampleFeed {
		t.Fatalf("first fetch = %v, %v", first.FromCache, err)
	}

	second, err := f.FetchOne(ctx, src)
	if err != nil || !second.FromCache || string(second.Body) != sampleFeed {
		t.Fatalf("304 fetch = %v, %v", second.FromCache, err)
	}

	status.Store(http.StatusInternalServerError)
	third, err := f.FetchOne(ctx, src)
	if err != nil || !third.FromCache {
		t.Fatalf("500 fetch = %v, %v", third.FromCache, err)
	}

	fresh := NewFetcher(t.TempDir(), srv.Client())
	if _, err := fresh.FetchOne(ctx, src); err == nil {
		t.Error("500 without cache err = nil")
	}
}

func TestFetchAllCollectsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.ics")
	if err := os.WriteFile(path, []byte(sampleFeed), 0o600); err != nil {
		t.Fatal(err)
	}
	f := NewFetcher(t.TempDir(), nil)

	res, err := f.FetchAll(context.Background(), []Source{
		{ID: "local", URL: "file://" + path},
		{ID: "missing", URL: "file://" + path + ".nope"},
		{ID: "empty"},
	})
	if len(res) != 1 || res[0].Source.ID != "local" {
		t.Errorf("results = %+v", res)
	}
	if err == nil || !strings.Contains(err.Error(), "missing") || !strings.Contains(err.Error(), "empty") {
		t.Errorf("err = %v", err)
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://calendar.example.com/private/abc.ics?token=1")
	if got != "https://calendar.example.com/...(redacted)" {
		t.Errorf("redactURL = %s", got)
	}
	if redactURL("not a url") != "ics://...(redacted)" {
		t.Errorf("redactURL(bad) = %s", redactURL("not a url"))
	}
}

func TestImporter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "feed.ics")
	if err := os.WriteFile(path, []byte(sampleFeed), 0o600); err != nil {
		t.Fatal(err)
	}

	mem := store.NewMemory(model.Event{ID: 1, Title: "Launch", Date: "2024-10-15"})
	im := &Importer{
		Fetcher:     NewFetcher(t.TempDir(), nil),
		Store:       mem,
		Sources:     []Source{{ID: "local", URL: "file://" + path}},
		Location:    time.UTC,
		HorizonDays: 30,
		Now: func() time.Time {
			return time.Date(2024, time.October, 1, 8, 0, 0, 0, time.UTC)
		},
	}

	res, err := im.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Occurrences != 5 || res.Created != 4 || res.Skipped != 1 {
		t.Errorf("first run = %+v", res)
	}
	evs, _ := mem.List(ctx)
	if len(evs) != 5 {
		t.Fatalf("store len = %d, want 5", len(evs))
	}
	if evs[1].Title != "Yoga" || evs[1].Date != "2024-10-01" {
		t.Errorf("first imported = %+v", evs[1])
	}

	res, err = im.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Created != 0 || res.Skipped != 5 {
		t.Errorf("second run = %+v", res)
	}
}

func TestImporterConcurrentRunsDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "feed.ics")
	if err := os.WriteFile(path, []byte(sampleFeed), 0o600); err != nil {
		t.Fatal(err)
	}

	mem := store.NewMemory()
	im := &Importer{
		Fetcher:     NewFetcher(t.TempDir(), nil),
		Store:       mem,
		Sources:     []Source{{ID: "local", URL: "file://" + path}},
		Location:    time.UTC,
		HorizonDays: 30,
		Now: func() time.Time {
			return time.Date(2024, time.October, 1, 8, 0, 0, 0, time.UTC)
		},
	}

	const runs = 8
	var wg sync.WaitGroup
	var created atomic.Int64
	for range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := im.Run(ctx)
			if err != nil {
				t.Errorf("Run: %v", err)
			}
			created.Add(int64(res.Created))
		}()
	}
	wg.Wait()

	evs, _ := mem.List(ctx)
	if len(evs) != 5 || created.Load() != 5 {
		t.Errorf("store len = %d, created = %d; want 5, 5", len(evs), created.Load())
	}
}

func TestImporterNoSources(t *testing.T) {
	im := &Importer{Store: store.NewMemory()}
	res, err := im.Run(context.Background())
	if err != nil || res != (ImportResult{}) {
		t.Errorf("Run = %+v, %v", res, err)
	}
}
