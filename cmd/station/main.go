// Command station runs one pick-and-place session: it consumes detector
// frames, drives the workflow orchestrator, and speaks the actuator's
// serial protocol. Without a serial port it runs in test mode, computing
// every command without delivering any.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os/signal"
	"sync"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/forgeworks/gridstation/internal/config"
	"github.com/forgeworks/gridstation/internal/protocol"
	"github.com/forgeworks/gridstation/internal/serialmux"
	"github.com/forgeworks/gridstation/internal/store"
	"github.com/forgeworks/gridstation/internal/version"
	"github.com/forgeworks/gridstation/internal/vision"
	"github.com/forgeworks/gridstation/internal/workflow"
)

var (
	configPath = flag.String("config", "station.json", "Path to the station config file")
	portFlag   = flag.String("port", "", "Serial port override (defaults to the configured preferred port)")
	dbFlag     = flag.String("db", "", "Database path override")
	framesAddr = flag.String("frames", ":9750", "UDP listen address for detector frames")
	fixtures   = flag.String("fixtures", "", "Replay frames from a JSON-lines fixture file instead of UDP")
)

func main() {
	flag.Parse()
	log.Printf("gridstation %s (%s)", version.Version, version.GitSHA)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *portFlag != "" {
		cfg.PreferredPort = portFlag
	}
	if *dbFlag != "" {
		cfg.DBPath = dbFlag
	}

	st, err := store.Open(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("failed to open station database: %v", err)
	}
	defer st.Close()

	if names, err := serialmux.ListPorts(); err == nil {
		log.Printf("serial ports available: %v", names)
	}
	mux := serialmux.Connect(cfg.GetPreferredPort(), serialmux.PortOptions{BaudRate: cfg.GetBaudRate()})
	defer mux.Close()

	var src vision.Source
	if *fixtures != "" {
		src, err = vision.OpenFixtures(*fixtures, cfg.GetSendInterval())
	} else {
		src, err = vision.ListenUDP(*framesAddr)
	}
	if err != nil {
		log.Fatalf("failed to open frame source: %v", err)
	}
	defer src.Close()

	sessionID, err := st.CreateSession(cfg.Targets)
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}
	log.Printf("session %s: %d targets, dwell %s, link up=%v", sessionID, len(cfg.Targets), cfg.GetDwell(), mux.Linked())

	width, height := cfg.GetFrameSize()
	orch := workflow.New(workflow.Config{
		SessionID:    sessionID,
		Targets:      cfg.Targets,
		Dwell:        cfg.GetDwell(),
		SendInterval: cfg.GetSendInterval(),
		FrameWidth:   width,
		FrameHeight:  height,
	}, mux, st, nil)

	// A calibration persisted by an earlier session carries over; otherwise
	// the workflow stays frozen until the operator taps two corners.
	if cal, err := st.LoadCalibration(); err != nil {
		log.Printf("failed to load calibration: %v", err)
	} else if cal != nil {
		orch.SetCalibration(cal)
		log.Printf("restored calibration %v to %v", cal.CornerA, cal.CornerB)
	} else {
		log.Print("no stored calibration; waiting for corner taps")
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to inbound actuator lines and log status transitions
	wg.Add(1)
	go func() {
		defer wg.Done()
		watchActuator(ctx, mux)
	}()

	// frame loop: one orchestrator tick per detector envelope
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop()
		runFrames(ctx, src, orch, st)
	}()

	wg.Wait()

	frames, sends, missed, empty := orch.Stats().Snapshot()
	log.Printf("session %s stopped: %d frames (%d empty), %d sends, %d missed", sessionID, frames, empty, sends, missed)
}

// watchActuator logs inbound actuator lines until ctx is done or the mux
// closes the subscription channel.
func watchActuator(ctx context.Context, mux serialmux.SerialMuxInterface) {
	id, c := mux.Subscribe()
	defer mux.Unsubscribe(id)
	for {
		select {
		case payload, ok := <-c:
			if !ok {
				log.Print("subscribe routine terminated")
				return
			}
			handleActuatorLine(payload)
		case <-ctx.Done():
			log.Print("subscribe routine terminated")
			return
		}
	}
}

// handleActuatorLine logs one inbound line from the actuator firmware.
func handleActuatorLine(payload string) {
	status, ok := protocol.ParseStatusLine(payload)
	if !ok {
		return
	}
	log.Printf("actuator: %s", status.Text)
}

// runFrames pumps detector envelopes into the orchestrator until the
// session completes, the source drains, or ctx is cancelled. Completed
// sessions are marked in the store before returning.
func runFrames(ctx context.Context, src vision.Source, orch *workflow.Orchestrator, st *store.Store) {
	for {
		env, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Print("frame source drained")
			} else if !errors.Is(err, context.Canceled) {
				log.Printf("frame source failed: %v", err)
			}
			return
		}

		if env.Tap != nil {
			cal, err := orch.TapCorner(*env.Tap)
			if err != nil {
				log.Printf("calibration tap rejected: %v", err)
			} else if cal != nil {
				if err := st.SaveCalibration(cal); err != nil {
					log.Printf("failed to persist calibration: %v", err)
				}
			}
		}

		orch.Tick(env.Frame)

		if orch.Done() {
			if err := st.CompleteSession(orch.Status().SessionID); err != nil {
				log.Printf("failed to mark session complete: %v", err)
			}
			log.Print("all items placed and verified")
			return
		}
	}
}
