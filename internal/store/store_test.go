package store

import (
	"path/filepath"
	"testing"

	"github.com/forgeworks/gridstation/internal/grid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "station.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func TestMigrationsApply(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if dirty {
		t.Error("schema is dirty after fresh migration")
	}
	if version != 1 {
		t.Errorf("schema version = %d, want 1", version)
	}
}

func TestCalibrationRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// No calibration yet.
	cal, err := s.LoadCalibration()
	if err != nil {
		t.Fatalf("LoadCalibration failed: %v", err)
	}
	if cal != nil {
		t.Fatal("LoadCalibration returned a calibration from an empty store")
	}

	want, err := grid.Calibrate(grid.Point{X: 100, Y: 100}, grid.Point{X: 500, Y: 500})
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if err := s.SaveCalibration(want); err != nil {
		t.Fatalf("SaveCalibration failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Calibration survives reopening the store.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.LoadCalibration()
	if err != nil {
		t.Fatalf("LoadCalibration after reopen failed: %v", err)
	}
	if got == nil {
		t.Fatal("calibration lost across reopen")
	}
	if got.XEdges != want.XEdges || got.YEdges != want.YEdges {
		t.Errorf("reloaded edges = %v/%v, want %v/%v", got.XEdges, got.YEdges, want.XEdges, want.YEdges)
	}
}

func TestLoadCalibrationReturnsLatest(t *testing.T) {
	s := openTestStore(t)

	first, _ := grid.Calibrate(grid.Point{X: 0, Y: 0}, grid.Point{X: 640, Y: 480})
	second, _ := grid.Calibrate(grid.Point{X: 100, Y: 100}, grid.Point{X: 500, Y: 500})
	if err := s.SaveCalibration(first); err != nil {
		t.Fatalf("SaveCalibration failed: %v", err)
	}
	if err := s.SaveCalibration(second); err != nil {
		t.Fatalf("SaveCalibration failed: %v", err)
	}

	got, err := s.LoadCalibration()
	if err != nil {
		t.Fatalf("LoadCalibration failed: %v", err)
	}
	if got.CornerA != (grid.Point{X: 100, Y: 100}) {
		t.Errorf("LoadCalibration returned older calibration: %+v", got.CornerA)
	}
}

func TestSessionAndEventJournal(t *testing.T) {
	s := openTestStore(t)

	targets := []grid.Cell{{Row: 4, Col: 1}, {Row: 2, Col: 1}}
	sessionID, err := s.CreateSession(targets)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if sessionID == "" {
		t.Fatal("CreateSession returned empty id")
	}

	markerID := 1
	cell := grid.Cell{Row: 4, Col: 1}
	events := []WorkflowEvent{
		{SessionID: sessionID, ItemIndex: 0, MarkerID: &markerID, Kind: "pickup", Cell: &cell},
		{SessionID: sessionID, ItemIndex: 0, MarkerID: &markerID, Kind: "verified", Cell: &cell},
		{SessionID: sessionID, ItemIndex: 0, Kind: "release"},
	}
	for _, evt := range events {
		if err := s.RecordEvent(evt); err != nil {
			t.Fatalf("RecordEvent(%s) failed: %v", evt.Kind, err)
		}
	}

	got, err := s.Events(sessionID)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Events returned %d rows, want 3", len(got))
	}
	if got[0].Kind != "pickup" || got[1].Kind != "verified" || got[2].Kind != "release" {
		t.Errorf("event order = %s,%s,%s", got[0].Kind, got[1].Kind, got[2].Kind)
	}
	if got[0].MarkerID == nil || *got[0].MarkerID != 1 {
		t.Errorf("pickup marker id = %v, want 1", got[0].MarkerID)
	}
	if got[2].Cell != nil {
		t.Errorf("release event carries cell %v, want none", got[2].Cell)
	}

	if err := s.CompleteSession(sessionID); err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}
}
