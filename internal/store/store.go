// Package store holds the event collection behind a small CRUD contract.
//
// Every operation takes a context so call sites do not change when the
// in-memory backend is swapped for a persistent one (see internal/sqlite).
package store

import (
	"context"
	"errors"
	"fmt"

	"evcal/internal/model"
)

// ErrNotFound is returned by Update and Delete when no event has the given id.
// The collection is left unchanged in that case.
var ErrNotFound = errors.New("event not found")

type Store interface {
	// List returns the full collection in insertion order.
	List(ctx context.Context) ([]model.Event, error)
	// Create assigns a fresh id, appends and returns the stored event.
	Create(ctx context.Context, d model.Draft) (model.Event, error)
	// Update replaces the event with ev.ID in place and returns ev.
	Update(ctx context.Context, ev model.Event) (model.Event, error)
	// Delete removes the event with the given id.
	Delete(ctx context.Context, id int) error
}

// DefaultSeed is the collection a fresh store starts with when the config
// does not provide one.
func DefaultSeed() []model.Draft {
	return []model.Draft{
		{Title: "Birthday Party", Date: "2024-10-29"},
		{Title: "Work Meeting", Date: "2024-10-30"},
		{Title: "Family Dinner", Date: "2024-10-31"},
	}
}

// Seed creates drafts through st in order.
func Seed(ctx context.Context, st Store, drafts []model.Draft) error {
	for _, d := range drafts {
		if _, err := st.Create(ctx, d); err != nil {
			return fmt.Errorf("store: seed %q: %w", d.Title, err)
		}
	}
	return nil
}
