// Package screen implements the event screen: a list of events, a month
// calendar that fills the date field, and a title/date form that either
// creates a new event or updates the selected one.
//
// The screen never patches its list. After every mutation it reloads the
// full collection from the store.
package screen

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

// Mode is the form's submit mode, derived only from the selection.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// Label returns the submit button text for m.
func (m Mode) Label() string {
	if m == ModeUpdate {
		return "Update Event"
	}
	return "Add Event"
}

// Options tunes behavior left open by the interaction model.
type Options struct {
	// ClearSelectionOnDelete clears the selection and both form fields when
	// the selected event is deleted from the list. Off by default: the
	// selection and fields stay as they were.
	ClearSelectionOnDelete bool
}

// State is a copy of everything the screen renders.
type State struct {
	Events      []model.Event `json:"events"`
	Selected    *model.Event  `json:"selected,omitempty"`
	Title       string        `json:"title"`
	Date        string        `json:"date"`
	Mode        Mode          `json:"mode"`
	SubmitLabel string        `json:"submit_label"`
	MarkedDates []string      `json:"marked_dates"`
}

// Screen holds the transient view state. Its methods are safe to call from
// several goroutines; they are serialized so the screen behaves like a
// single UI thread.
type Screen struct {
	store store.Store
	opts  Options

	mu       sync.Mutex
	events   []model.Event
	selected *model.Event
	title    string
	date     string
}

func New(st store.Store, opts Options) *Screen {
	return &Screen{store: st, opts: opts}
}

// Load replaces the list with the store's current collection.
func (s *Screen) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload(ctx)
}

// TapDay fills the date field from a calendar tap. Title and selection are
// left alone.
func (s *Screen) TapDay(day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.date = model.FormatDate(day)
}

func (s *Screen) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// SetDate sets the date field verbatim; manual entry is not validated.
func (s *Screen) SetDate(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.date = date
}

// Submit creates or updates depending on the mode. It reports whether a
// mutation was issued: with an empty title or date it does nothing.
func (s *Screen) Submit(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.title == "" || s.date == "" {
		return false, nil
	}

	if s.selected == nil {
		ev, err := s.store.Create(ctx, model.Draft{Title: s.title, Date: s.date})
		if err != nil {
			return false, fmt.Errorf("screen: create: %w", err)
		}
		appLog.Debug("screen created event", "id", ev.ID, "date", ev.Date)
	} else {
		ev := model.Event{ID: s.selected.ID, Title: s.title, Date: s.date}
		_, err := s.store.Update(ctx, ev)
		switch {
		case errors.Is(err, store.ErrNotFound):
			appLog.Debug("screen update target gone", "id", ev.ID)
		case err != nil:
			return false, fmt.Errorf("screen: update %d: %w", ev.ID, err)
		default:
			appLog.Debug("screen updated event", "id", ev.ID, "date", ev.Date)
		}
	}

	if err := s.reload(ctx); err != nil {
		return true, err
	}
	s.selected = nil
	s.title = ""
	s.date = ""
	return true, nil
}

// Edit selects ev and copies its title and date into the form, overwriting
// whatever was typed.
func (s *Screen) Edit(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edit(ev)
}

// EditByID selects the event with id from the current list. It reports
// false when the list has no such event.
func (s *Screen) EditByID(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.ID == id {
			s.edit(ev)
			return true
		}
	}
	return false
}

func (s *Screen) edit(ev model.Event) {
	sel := ev
	s.selected = &sel
	s.title = ev.Title
	s.date = ev.Date
}

// Delete removes id from the store and reloads. A missing id is ignored.
func (s *Screen) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("screen: delete %d: %w", id, err)
	}
	if s.opts.ClearSelectionOnDelete && s.selected != nil && s.selected.ID == id {
		s.selected = nil
		s.title = ""
		s.date = ""
	}
	return s.reload(ctx)
}

func (s *Screen) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode()
}

func (s *Screen) mode() Mode {
	if s.selected != nil {
		return ModeUpdate
	}
	return ModeCreate
}

func (s *Screen) SubmitLabel() string {
	return s.Mode().Label()
}

// MarkedDates returns the distinct dates of the listed events, in list
// order. A date shared by several events appears once.
func (s *Screen) MarkedDates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markedDates(s.events)
}

func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Events:      make([]model.Event, len(s.events)),
		Title:       s.title,
		Date:        s.date,
		Mode:        s.mode(),
		MarkedDates: markedDates(s.events),
	}
	copy(st.Events, s.events)
	st.SubmitLabel = st.Mode.Label()
	if s.selected != nil {
		sel := *s.selected
		st.Selected = &sel
	}
	return st
}

// reload must be called with s.mu held.
func (s *Screen) reload(ctx context.Context) error {
	evs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("screen: load events: %w", err)
	}
	s.events = evs
	return nil
}

func markedDates(evs []model.Event) []string {
	seen := make(map[string]bool, len(evs))
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		if ev.Date == "" || seen[ev.Date] {
			continue
		}
		seen[ev.Date] = true
		out = append(out, ev.Date)
	}
	return out
}
