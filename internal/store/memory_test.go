package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"evcal/internal/model"
)

func mustList(t *testing.T, s Store) []model.Event {
	t.Helper()
	evs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return evs
}

func TestMemoryCreateKeepsOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	titles := []string{"A", "B", "C", "D"}
	for _, title := range titles {
		ev, err := m.Create(ctx, model.Draft{Title: title, Date: "2024-01-01"})
		if err != nil {
			t.Fatalf("Create(%s): %v", title, err)
		}
		if ev.ID == 0 {
			t.Errorf("Create(%s) id = 0", title)
		}
	}

	evs := mustList(t, m)
	if len(evs) != len(titles) {
		t.Fatalf("len = %d, want %d", len(evs), len(titles))
	}
	for i, ev := range evs {
		if ev.Title != titles[i] {
			t.Errorf("evs[%d].Title = %q, want %q", i, ev.Title, titles[i])
		}
	}
}

func TestMemoryCreateVisibleInList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ev, err := m.Create(ctx, model.Draft{Title: "Dentist", Date: "2024-03-04"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	evs := mustList(t, m)
	if len(evs) != 1 || evs[0] != ev {
		t.Errorf("List = %+v, want [%+v]", evs, ev)
	}
}

func TestMemoryCreateAcceptsEmptyFields(t *testing.T) {
	m := NewMemory()
	ev, err := m.Create(context.Background(), model.Draft{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ev.ID != 1 || ev.Title != "" || ev.Date != "" {
		t.Errorf("ev = %+v", ev)
	}
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(
		model.Event{ID: 1, Title: "A", Date: "2024-01-01"},
		model.Event{ID: 2, Title: "B", Date: "2024-01-02"},
		model.Event{ID: 3, Title: "C", Date: "2024-01-03"},
	)

	want := model.Event{ID: 2, Title: "B2", Date: "2024-02-02"}
	got, err := m.Update(ctx, want)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got != want {
		t.Errorf("Update returned %+v, want %+v", got, want)
	}

	evs := mustList(t, m)
	if evs[1] != want {
		t.Errorf("evs[1] = %+v, want %+v (position preserved)", evs[1], want)
	}
	if len(evs) != 3 {
		t.Errorf("len = %d, want 3", len(evs))
	}
}

func TestMemoryUpdateMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(model.Event{ID: 1, Title: "A", Date: "2024-01-01"})
	before := mustList(t, m)

	in := model.Event{ID: 99, Title: "X", Date: "2024-09-09"}
	got, err := m.Update(ctx, in)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got != in {
		t.Errorf("Update returned %+v, want input %+v", got, in)
	}
	if after := mustList(t, m); !reflect.DeepEqual(before, after) {
		t.Errorf("List changed: %+v -> %+v", before, after)
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(
		model.Event{ID: 1, Title: "A", Date: "2024-01-01"},
		model.Event{ID: 2, Title: "B", Date: "2024-01-02"},
	)

	if err := m.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	evs := mustList(t, m)
	if len(evs) != 1 || evs[0].ID != 2 {
		t.Fatalf("List = %+v, want only id 2", evs)
	}

	if err := m.Delete(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(42) err = %v, want ErrNotFound", err)
	}
	if got := mustList(t, m); !reflect.DeepEqual(got, evs) {
		t.Errorf("List changed after missing delete: %+v", got)
	}
}

func TestMemoryDeleteTwice(t *testing.T) {
	ctx := context.Background()
	once := NewMemory(model.Event{ID: 1, Title: "A"}, model.Event{ID: 2, Title: "B"})
	twice := NewMemory(model.Event{ID: 1, Title: "A"}, model.Event{ID: 2, Title: "B"})

	_ = once.Delete(ctx, 1)
	_ = twice.Delete(ctx, 1)
	_ = twice.Delete(ctx, 1)

	if a, b := mustList(t, once), mustList(t, twice); !reflect.DeepEqual(a, b) {
		t.Errorf("once = %+v, twice = %+v", a, b)
	}
}

func TestMemoryIdsNotReused(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(model.Event{ID: 1, Title: "A", Date: "2024-01-01"})

	b, _ := m.Create(ctx, model.Draft{Title: "B", Date: "2024-01-02"})
	if b.ID != 2 {
		t.Fatalf("B id = %d, want 2", b.ID)
	}
	if n := len(mustList(t, m)); n != 2 {
		t.Fatalf("len = %d, want 2", n)
	}

	if err := m.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	evs := mustList(t, m)
	if len(evs) != 1 || evs[0].ID != 2 {
		t.Fatalf("List = %+v, want [id 2]", evs)
	}

	c, _ := m.Create(ctx, model.Draft{Title: "C", Date: "2024-01-03"})
	if c.ID != 3 {
		t.Errorf("C id = %d, want 3", c.ID)
	}
	seen := map[int]bool{}
	for _, ev := range mustList(t, m) {
		if seen[ev.ID] {
			t.Errorf("duplicate id %d", ev.ID)
		}
		seen[ev.ID] = true
	}
}

func TestMemoryListIsSnapshot(t *testing.T) {
	m := NewMemory(model.Event{ID: 1, Title: "A"})
	evs := mustList(t, m)
	evs[0].Title = "mutated"

	if got := mustList(t, m)[0].Title; got != "A" {
		t.Errorf("stored title = %q, want A", got)
	}
}

func TestSeed(t *testing.T) {
	m := NewMemory()
	if err := Seed(context.Background(), m, DefaultSeed()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	evs := mustList(t, m)
	if len(evs) != 3 {
		t.Fatalf("len = %d, want 3", len(evs))
	}
	for i, ev := range evs {
		if ev.ID != i+1 {
			t.Errorf("evs[%d].ID = %d, want %d", i, ev.ID, i+1)
		}
	}
	if evs[2].Date != "2024-10-31" {
		t.Errorf("last seed date = %q", evs[2].Date)
	}
}
