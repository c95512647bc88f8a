// Command stationdb inspects a station database: migration state, stored
// calibration, past sessions, and the event journal for one session.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/forgeworks/gridstation/internal/store"
	"github.com/forgeworks/gridstation/internal/version"
)

func main() {
	var dbPath string
	var sessionID string
	var showCalibration bool

	flag.StringVar(&dbPath, "db", "station.db", "path to station sqlite db")
	flag.StringVar(&sessionID, "session", "", "dump the event journal for this session")
	flag.BoolVar(&showCalibration, "calibration", false, "show the active calibration")
	flag.Parse()

	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer st.Close()

	v, dirty, err := st.MigrateVersion()
	if err != nil {
		log.Fatalf("failed to read schema version: %v", err)
	}
	fmt.Printf("stationdb %s: schema version %d (dirty=%v)\n", version.Version, v, dirty)

	if showCalibration {
		cal, err := st.LoadCalibration()
		if err != nil {
			log.Fatalf("failed to load calibration: %v", err)
		}
		if cal == nil {
			fmt.Println("no calibration stored")
		} else {
			fmt.Printf("calibration: %v to %v\n", cal.CornerA, cal.CornerB)
		}
	}

	if sessionID == "" {
		return
	}

	events, err := st.Events(sessionID)
	if err != nil {
		log.Fatalf("failed to read events: %v", err)
	}
	if len(events) == 0 {
		fmt.Printf("no events for session %s\n", sessionID)
		return
	}

	fmt.Printf("\n%d events for session %s:\n", len(events), sessionID)
	for _, evt := range events {
		line := fmt.Sprintf("  %s item=%d %-9s", evt.Timestamp.Format("2006-01-02 15:04:05"), evt.ItemIndex, evt.Kind)
		if evt.MarkerID != nil {
			line += fmt.Sprintf(" marker=%d", *evt.MarkerID)
		}
		if evt.Cell != nil {
			line += fmt.Sprintf(" cell=%s", evt.Cell)
		}
		fmt.Println(line)
	}
}
