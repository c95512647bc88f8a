// Package store persists the station's durable state in SQLite:
// calibration corners (so a session can resume without re-tapping the
// grid), session records, and a journal of workflow events. The database
// is operational state, not an archive; the schema is managed by embedded
// migrations.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/forgeworks/gridstation/internal/grid"
)

type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the station database at path and brings
// the schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate station database: %w", err)
	}
	return s, nil
}

// SaveCalibration records a new calibration. Earlier rows are kept for
// audit; LoadCalibration returns the most recent.
func (s *Store) SaveCalibration(cal *grid.Calibration) error {
	_, err := s.Exec(
		`INSERT INTO calibration (corner_ax, corner_ay, corner_bx, corner_by) VALUES (?, ?, ?, ?)`,
		cal.CornerA.X, cal.CornerA.Y, cal.CornerB.X, cal.CornerB.Y,
	)
	if err != nil {
		return fmt.Errorf("failed to save calibration: %w", err)
	}
	return nil
}

// LoadCalibration rebuilds the most recently saved calibration. Returns
// (nil, nil) when no calibration has ever been saved.
func (s *Store) LoadCalibration() (*grid.Calibration, error) {
	var ax, ay, bx, by float64
	err := s.QueryRow(
		`SELECT corner_ax, corner_ay, corner_bx, corner_by FROM calibration ORDER BY id DESC LIMIT 1`,
	).Scan(&ax, &ay, &bx, &by)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load calibration: %w", err)
	}
	return grid.Calibrate(grid.Point{X: ax, Y: ay}, grid.Point{X: bx, Y: by})
}

// CreateSession records the start of a workflow session and returns its id.
func (s *Store) CreateSession(targets []grid.Cell) (string, error) {
	id := uuid.New().String()
	targetJSON, err := json.Marshal(targets)
	if err != nil {
		return "", fmt.Errorf("failed to encode targets: %w", err)
	}
	_, err = s.Exec(
		`INSERT INTO sessions (session_id, started_at, targets) VALUES (?, ?, ?)`,
		id, time.Now().UTC().Unix(), string(targetJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// CompleteSession stamps a session as finished.
func (s *Store) CompleteSession(sessionID string) error {
	_, err := s.Exec(
		`UPDATE sessions SET completed_at = ? WHERE session_id = ?`,
		time.Now().UTC().Unix(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return nil
}

// WorkflowEvent is one journal row: a command issued or a verification
// reached during a session.
type WorkflowEvent struct {
	SessionID string
	ItemIndex int
	MarkerID  *int
	Kind      string
	Cell      *grid.Cell
	Timestamp time.Time
}

// RecordEvent appends a workflow event to the journal.
func (s *Store) RecordEvent(evt WorkflowEvent) error {
	var markerID any
	if evt.MarkerID != nil {
		markerID = *evt.MarkerID
	}
	var row, col any
	if evt.Cell != nil {
		row, col = evt.Cell.Row, evt.Cell.Col
	}
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.Exec(
		`INSERT INTO workflow_events (session_id, item_index, marker_id, kind, cell_row, cell_col, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.SessionID, evt.ItemIndex, markerID, evt.Kind, row, col, ts.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record workflow event: %w", err)
	}
	return nil
}

// Events returns the journal for one session in insertion order.
func (s *Store) Events(sessionID string) ([]WorkflowEvent, error) {
	rows, err := s.Query(
		`SELECT session_id, item_index, marker_id, kind, cell_row, cell_col, timestamp
		 FROM workflow_events WHERE session_id = ? ORDER BY event_id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow events: %w", err)
	}
	defer rows.Close()

	var events []WorkflowEvent
	for rows.Next() {
		var evt WorkflowEvent
		var markerID sql.NullInt64
		var row, col sql.NullInt64
		var ts int64
		if err := rows.Scan(&evt.SessionID, &evt.ItemIndex, &markerID, &evt.Kind, &row, &col, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan workflow event: %w", err)
		}
		if markerID.Valid {
			id := int(markerID.Int64)
			evt.MarkerID = &id
		}
		if row.Valid && col.Valid {
			evt.Cell = &grid.Cell{Row: int(row.Int64), Col: int(col.Int64)}
		}
		evt.Timestamp = time.Unix(ts, 0).UTC()
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
