// Package storage archives restrained-ensemble runs in a SQLite database,
// one row per session plus one row per window rotation per replica. The
// archive is for offline comparison of runs; nothing in the hot path
// touches it.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Session is one archived run.
type Session struct {
	ID        string //a uuid, assigned by the runner
	Label     string
	CreatedAt time.Time
	Replicas  int
	Steps     int
	Params    string //the run's parameter file, as YAML text
}

// Rotation is one archived window rotation.
type Rotation struct {
	SessionID string
	Replica   int
	Window    int
	Time      float64
	Mean      float64 //mean of the raw samples the rotation consumed
	Std       float64
	JS        float64   //divergence of the window to the experimental reference
	Histogram []float64 //the ensemble-averaged window
}

// Store is an open archive.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at path and makes sure the
// schema is in place.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("storage: a database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			created_at TEXT NOT NULL,
			replicas INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			params TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rotations (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			replica INTEGER NOT NULL,
			window INTEGER NOT NULL,
			time REAL NOT NULL,
			mean REAL NOT NULL,
			std REAL NOT NULL,
			js REAL NOT NULL,
			histogram TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS rotations_session ON rotations(session_id)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession inserts (or, on a repeated ID, updates) a session row.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label, created_at, replicas, steps, params)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			created_at = excluded.created_at,
			replicas = excluded.replicas,
			steps = excluded.steps,
			params = excluded.params
	`, sess.ID, sess.Label, sess.CreatedAt.UTC().Format(time.RFC3339Nano),
		sess.Replicas, sess.Steps, sess.Params)
	return err
}

// AddRotation appends one rotation row.
func (s *Store) AddRotation(ctx context.Context, r Rotation) error {
	hist, err := json.Marshal(r.Histogram)
	if err != nil {
		return fmt.Errorf("storage: encoding histogram: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rotations (session_id, replica, window, time, mean, std, js, histogram)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.SessionID, r.Replica, r.Window, r.Time, r.Mean, r.Std, r.JS, string(hist))
	return err
}

// Sessions lists every archived session, newest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, created_at, replicas, steps, params
		FROM sessions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var sess Session
		var created string
		if err := rows.Scan(&sess.ID, &sess.Label, &created, &sess.Replicas, &sess.Steps, &sess.Params); err != nil {
			return nil, err
		}
		sess.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("storage: bad timestamp in session %s: %w", sess.ID, err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Rotations fetches every rotation of one session, in insertion order.
func (s *Store) Rotations(ctx context.Context, sessionID string) ([]Rotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, replica, window, time, mean, std, js, histogram
		FROM rotations WHERE session_id = ? ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rotation
	for rows.Next() {
		var r Rotation
		var hist string
		if err := rows.Scan(&r.SessionID, &r.Replica, &r.Window, &r.Time, &r.Mean, &r.Std, &r.JS, &hist); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(hist), &r.Histogram); err != nil {
			return nil, fmt.Errorf("storage: bad histogram in session %s window %d: %w", r.SessionID, r.Window, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the archive.
func (s *Store) Close() error {
	return s.db.Close()
}
