package store

import (
	"context"
	"sync"

	"evcal/internal/model"
)

var _ Store = (*Memory)(nil)

// Memory is the in-process Store. State lives as long as the handle.
//
// Ids come from a counter that only moves forward, so an id freed by Delete
// is never handed out again.
type Memory struct {
	mu     sync.RWMutex
	events []model.Event
	lastID int
}

// NewMemory returns a Memory holding seed as-is. The id counter continues
// after the largest seeded id.
func NewMemory(seed ...model.Event) *Memory {
	m := &Memory{events: make([]model.Event, 0, len(seed))}
	for _, ev := range seed {
		m.events = append(m.events, ev)
		if ev.ID > m.lastID {
			m.lastID = ev.ID
		}
	}
	return m
}

func (m *Memory) List(_ context.Context) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Event, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *Memory) Create(_ context.Context, d model.Draft) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastID++
	ev := model.Event{ID: m.lastID, Title: d.Title, Date: d.Date}
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *Memory) Update(_ context.Context, ev model.Event) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(ev.ID)
	if i < 0 {
		return ev, ErrNotFound
	}
	m.events[i] = ev
	return ev, nil
}

func (m *Memory) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	m.events = append(m.events[:i], m.events[i+1:]...)
	return nil
}

// indexOf must be called with m.mu held.
func (m *Memory) indexOf(id int) int {
	for i, ev := range m.events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}
