package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"evcal/internal/model"
	"evcal/internal/store"
)

const DriverName = "sqlite3"

var _ store.Store = (*Storage)(nil)

// Storage is a store.Store persisted in a sqlite database.
type Storage struct {
	db *sqlx.DB
}

type eventRow struct {
	ID    int    `db:"id"`
	Title string `db:"title"`
	Date  string `db:"date"`
}

func (r eventRow) Convert() model.Event {
	return model.Event{ID: r.ID, Title: r.Title, Date: r.Date}
}

// NewStorage wraps db and runs the migrations.
func NewStorage(ctx context.Context, db *sql.DB) (*Storage, error) {
	s := &Storage{
		db: sqlx.NewDb(db, DriverName),
	}
	if err := s.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

// Open opens (creating if needed) the database file at path.
func Open(ctx context.Context, path string) (*Storage, error) {
	db, err := sql.Open(DriverName, path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	s, err := NewStorage(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Empty reports whether the events table has never held a row.
func (s *Storage) Empty(ctx context.Context) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM events`)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	// sqlite_sequence only has a row once AUTOINCREMENT handed out an id.
	var seq int
	err = s.db.GetContext(ctx, &seq, `SELECT COUNT(*) FROM sqlite_sequence WHERE name = 'events'`)
	if err != nil {
		return false, err
	}
	return seq == 0, nil
}

func (s *Storage) List(ctx context.Context) ([]model.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, title, date FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list events: %w", err)
	}
	res := make([]model.Event, len(rows))
	for i, r := range rows {
		res[i] = r.Convert()
	}
	return res, nil
}

func (s *Storage) Create(ctx context.Context, d model.Draft) (model.Event, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (title, date) VALUES (?, ?)
	`, d.Title, d.Date)
	if err != nil {
		return model.Event{}, fmt.Errorf("sqlite: create event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Event{}, fmt.Errorf("sqlite: create event: %w", err)
	}
	return model.Event{ID: int(id), Title: d.Title, Date: d.Date}, nil
}

func (s *Storage) Update(ctx context.Context, ev model.Event) (model.Event, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET title = ?, date = ? WHERE id = ?
	`, ev.Title, ev.Date, ev.ID)
	if err != nil {
		return ev, fmt.Errorf("sqlite: update event %d: %w", ev.ID, err)
	}
	if err := requireRow(res); err != nil {
		return ev, err
	}
	return ev, nil
}

func (s *Storage) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete event %d: %w", id, err)
	}
	return requireRow(res)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
