// Package workflow drives the multi-item pick-and-place session: it
// consumes per-frame detector observations, decides when an item has
// arrived at staging, commands the actuator, verifies placement through
// the dwell verifier, and advances through the queued targets.
package workflow

import (
	"time"

	"github.com/forgeworks/gridstation/internal/grid"
	"github.com/forgeworks/gridstation/internal/monitoring"
	"github.com/forgeworks/gridstation/internal/protocol"
	"github.com/forgeworks/gridstation/internal/store"
	"github.com/forgeworks/gridstation/internal/verify"
	"github.com/forgeworks/gridstation/internal/vision"
)

// StagingCell is where a new item must first be observed to begin its
// workflow. Fixed by the station hardware.
var StagingCell = grid.Cell{Row: 0, Col: 0}

// ItemStatus tracks one queued item through its lifecycle.
type ItemStatus string

const (
	StatusAwaitingArrival ItemStatus = "awaiting_arrival"
	StatusPickupIssued    ItemStatus = "pickup_issued"
	StatusTracking        ItemStatus = "tracking"
	StatusVerified        ItemStatus = "verified"
	StatusComplete        ItemStatus = "complete"
)

// Sender is the slice of the serial mux the orchestrator needs.
type Sender interface {
	SendCommand(string) error
	Linked() bool
}

// Journal receives workflow events for persistence. May be nil.
type Journal interface {
	RecordEvent(store.WorkflowEvent) error
}

// Config is the immutable session configuration.
type Config struct {
	SessionID    string
	Targets      []grid.Cell
	Dwell        time.Duration
	SendInterval time.Duration
	FrameWidth   int
	FrameHeight  int
}

// Orchestrator is the per-session state machine. It is owned and mutated
// by the frame loop only; observations are read once per Tick and
// discarded.
type Orchestrator struct {
	cfg     Config
	sender  Sender
	journal Journal
	now     func() time.Time

	verifier *verify.PositionVerifier
	stats    monitoring.TickStats

	cal        *grid.Calibration
	tapPending []grid.Point

	itemIndex    int
	status       ItemStatus
	activeMarker int
	hasActive    bool
	consumed     map[int]bool
	done         bool

	// outbound rate limiting: critical commands queue until the interval
	// allows them; the latest stream candidate is replaced every frame.
	pending   []protocol.Message
	candidate *protocol.Message
	lastSend  time.Time
	sentOnce  bool

	lastLog time.Time
}

// New creates an orchestrator for one session. A nil clock defaults to
// time.Now; a nil journal disables persistence.
func New(cfg Config, sender Sender, journal Journal, clock func() time.Time) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		cfg:      cfg,
		sender:   sender,
		journal:  journal,
		now:      clock,
		verifier: verify.New(cfg.Dwell, clock),
		status:   StatusAwaitingArrival,
		consumed: make(map[int]bool),
	}
}

// SetCalibration installs an existing calibration, e.g. one persisted
// from an earlier session.
func (o *Orchestrator) SetCalibration(cal *grid.Calibration) {
	o.cal = cal
}

// Calibrated reports whether a calibration is installed.
func (o *Orchestrator) Calibrated() bool { return o.cal != nil }

// TapCorner feeds one operator-selected corner pixel. The first tap is
// held; the second completes a calibration, which is installed and
// returned so the caller can persist it. A degenerate pair (corners
// sharing an axis) discards both taps and returns the error. Tapping
// after a calibration exists starts a recalibration.
func (o *Orchestrator) TapCorner(p grid.Point) (*grid.Calibration, error) {
	o.tapPending = append(o.tapPending, p)
	if len(o.tapPending) < 2 {
		return nil, nil
	}

	a, b := o.tapPending[0], o.tapPending[1]
	o.tapPending = nil
	cal, err := grid.Calibrate(a, b)
	if err != nil {
		return nil, err
	}
	o.cal = cal
	monitoring.Logf("grid calibrated: x=%v y=%v", cal.XEdges, cal.YEdges)
	return cal, nil
}

// Done reports whether every queued item has completed and every queued
// command has been delivered. The final release may outlive its item when
// the limiter or a write failure holds it back, so the session stays
// non-terminal until the queue drains.
func (o *Orchestrator) Done() bool { return o.done && len(o.pending) == 0 }

// Tick processes one frame of observations. All observation-driven
// transitions and at most one outbound send happen here; the method never
// blocks on timing.
func (o *Orchestrator) Tick(frame vision.Frame) {
	o.stats.Frame()
	if o.done {
		// No more workflow transitions, but undelivered commands (the
		// final release) still drain through the limiter.
		o.flush()
		return
	}

	// Without calibration the workflow is frozen: no commands, no state
	// changes. Raw-quantized positions are still logged so the operator
	// can line up the camera before tapping corners.
	if o.cal == nil {
		o.logUncalibrated(frame)
		return
	}

	switch o.status {
	case StatusAwaitingArrival:
		o.tickAwaitingArrival(frame)
	case StatusPickupIssued, StatusTracking:
		o.tickTracking(frame)
	}

	o.flush()
}

func (o *Orchestrator) tickAwaitingArrival(frame vision.Frame) {
	best, ok := frame.BestMarker()
	if !ok {
		o.stats.EmptyFrame()
		return
	}
	cell := o.cal.QuantizeCalibrated(best.Center)
	if !cell.Resolved() {
		return
	}

	if cell == StagingCell && !o.consumed[best.ID] {
		o.beginPickup(best.ID)
		return
	}

	// No pickup active: stream the best candidate's position.
	msg := protocol.MarkerUpdate(best.ID, cell)
	o.candidate = &msg
}

// beginPickup fires the AwaitingArrival -> PickupIssued transition: the
// marker id is consumed for the whole session so a plate left at staging
// can never re-trigger.
func (o *Orchestrator) beginPickup(markerID int) {
	target := o.cfg.Targets[o.itemIndex]

	o.activeMarker = markerID
	o.hasActive = true
	o.consumed[markerID] = true
	o.verifier.SetTarget(target)
	o.status = StatusPickupIssued

	o.queueCommand(protocol.Pickup(markerID, target))
	o.record("pickup", &markerID, &target)
	monitoring.Logf("item %d: pickup issued for marker %d -> %v", o.itemIndex, markerID, target)
}

func (o *Orchestrator) tickTracking(frame vision.Frame) {
	if frame.Blob == nil {
		// Lost tracking for this frame. The verifier only resets on an
		// observed wrong cell, so a dropout mid-dwell is decided by the
		// next observed frame.
		o.stats.EmptyFrame()
		return
	}
	o.status = StatusTracking

	cell := o.cal.QuantizeCalibrated(frame.Blob.Center)
	if o.verifier.Update(cell) {
		o.completeItem(cell)
		return
	}

	if cell.Resolved() {
		msg := protocol.PositionHeartbeat(o.activeMarker, cell)
		o.candidate = &msg
	}
}

// completeItem fires Tracking -> Verified: release is issued exactly once
// per item, then the queue advances or the session terminates.
func (o *Orchestrator) completeItem(cell grid.Cell) {
	o.status = StatusVerified
	o.candidate = nil
	o.queueCommand(protocol.Release())

	marker := o.activeMarker
	o.record("verified", &marker, &cell)
	o.record("release", &marker, nil)
	monitoring.Logf("item %d: placement verified at %v, releasing", o.itemIndex, cell)

	if o.itemIndex+1 < len(o.cfg.Targets) {
		o.itemIndex++
		o.status = StatusAwaitingArrival
		o.hasActive = false
		o.verifier.Reset()
		return
	}
	o.done = true
	o.status = StatusComplete
	monitoring.Logf("session %s complete: %d items placed", o.cfg.SessionID, len(o.cfg.Targets))
}

func (o *Orchestrator) logUncalibrated(frame vision.Frame) {
	best, ok := frame.BestMarker()
	if !ok {
		return
	}
	// Throttle to the send interval cadence so the log is readable at
	// frame rate. Kept separate from the command limiter: a log line must
	// never delay the first command after calibration completes.
	if !o.lastLog.IsZero() && o.now().Sub(o.lastLog) < o.cfg.SendInterval {
		return
	}
	o.lastLog = o.now()
	raw := grid.QuantizeRaw(best.Center, o.cfg.FrameWidth, o.cfg.FrameHeight)
	monitoring.Logf("calibration pending: marker %d near %v (uncalibrated)", best.ID, raw)
}

// queueCommand enqueues a must-deliver command (pickup/release). Unlike
// stream candidates it survives rate limiting and send failures until
// delivered.
func (o *Orchestrator) queueCommand(msg protocol.Message) {
	o.pending = append(o.pending, msg)
}

// flush sends at most one outbound line per tick, spacing sends by the
// configured interval regardless of frame rate. Queued commands take
// priority over the stream candidate; a skipped candidate is simply
// dropped since a fresher one arrives next frame.
func (o *Orchestrator) flush() {
	if len(o.pending) == 0 && o.candidate == nil {
		return
	}
	if o.sentOnce && o.now().Sub(o.lastSend) < o.cfg.SendInterval {
		o.candidate = nil
		return
	}

	fromQueue := len(o.pending) > 0
	var msg protocol.Message
	if fromQueue {
		msg = o.pending[0]
	} else {
		msg = *o.candidate
	}
	o.candidate = nil

	err := o.sender.SendCommand(msg.Encode())
	o.lastSend = o.now()
	o.sentOnce = true
	if err != nil {
		// Missed tick: log and move on. Commands stay queued for a later
		// tick; nothing is retried within this one.
		o.stats.MissedSend()
		monitoring.Logf("missed tick: failed to send %s: %v", msg.Kind, err)
		return
	}
	o.stats.Send()
	if fromQueue {
		o.pending = o.pending[1:]
	}
}

func (o *Orchestrator) record(kind string, markerID *int, cell *grid.Cell) {
	if o.journal == nil {
		return
	}
	evt := store.WorkflowEvent{
		SessionID: o.cfg.SessionID,
		ItemIndex: o.itemIndex,
		MarkerID:  markerID,
		Kind:      kind,
		Cell:      cell,
	}
	if err := o.journal.RecordEvent(evt); err != nil {
		monitoring.Logf("failed to journal %s event: %v", kind, err)
	}
}

// Snapshot is a point-in-time view of the session for status reporting.
type Snapshot struct {
	SessionID    string
	Calibrated   bool
	TestMode     bool
	Done         bool
	ItemIndex    int
	ItemTotal    int
	ItemStatus   ItemStatus
	ActiveMarker *int
	Progress     float64
	ConsumedIDs  int
}

// Status returns the current session snapshot.
func (o *Orchestrator) Status() Snapshot {
	snap := Snapshot{
		SessionID:   o.cfg.SessionID,
		Calibrated:  o.cal != nil,
		TestMode:    !o.sender.Linked(),
		Done:        o.Done(),
		ItemIndex:   o.itemIndex,
		ItemTotal:   len(o.cfg.Targets),
		ItemStatus:  o.status,
		Progress:    o.verifier.Progress(),
		ConsumedIDs: len(o.consumed),
	}
	if o.hasActive {
		marker := o.activeMarker
		snap.ActiveMarker = &marker
	}
	return snap
}

// Stats exposes the per-tick counters.
func (o *Orchestrator) Stats() *monitoring.TickStats { return &o.stats }
