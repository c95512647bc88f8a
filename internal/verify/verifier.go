// Package verify implements the dwell-based position verifier: an item is
// confirmed placed only after the tracked payload occupies the target cell
// for an unbroken minimum duration.
package verify

import (
	"time"

	"github.com/forgeworks/gridstation/internal/grid"
)

// PositionVerifier confirms sustained occupancy of a target cell. It is
// polled once per frame and never sleeps; elapsed time is measured with
// the monotonic reading carried by time.Time, so wall-clock adjustments
// cannot corrupt the dwell comparison.
type PositionVerifier struct {
	requiredDwell time.Duration
	now           func() time.Time

	target     grid.Cell
	hasTarget  bool
	dwellStart time.Time
	dwelling   bool
	verified   bool
}

// New creates a verifier requiring the given unbroken dwell. A nil clock
// defaults to time.Now; tests inject a fake.
func New(requiredDwell time.Duration, clock func() time.Time) *PositionVerifier {
	if clock == nil {
		clock = time.Now
	}
	return &PositionVerifier{
		requiredDwell: requiredDwell,
		now:           clock,
	}
}

// SetTarget replaces the target cell and starts a fresh verification
// cycle: any dwell progress and any previous verification are discarded.
func (v *PositionVerifier) SetTarget(cell grid.Cell) {
	v.target = cell
	v.hasTarget = true
	v.dwelling = false
	v.verified = false
}

// Update feeds one frame's observed cell and reports whether the target is
// verified. Once verified it keeps returning true with no side effects
// until the next SetTarget or Reset. A single off-target or unresolved
// frame restarts the dwell clock; there is no partial credit.
func (v *PositionVerifier) Update(observed grid.Cell) bool {
	if v.verified {
		return true
	}
	if !v.hasTarget {
		return false
	}

	if !observed.Resolved() || observed != v.target {
		v.dwelling = false
		return false
	}

	now := v.now()
	if !v.dwelling {
		v.dwellStart = now
		v.dwelling = true
		return false
	}
	if now.Sub(v.dwellStart) >= v.requiredDwell {
		v.verified = true
		return true
	}
	return false
}

// Verified reports whether the current cycle has completed.
func (v *PositionVerifier) Verified() bool { return v.verified }

// Target returns the current target cell and whether one is set.
func (v *PositionVerifier) Target() (grid.Cell, bool) { return v.target, v.hasTarget }

// Progress reports dwell completion in [0,1]: 0 with no dwell in
// progress, 1 once verified.
func (v *PositionVerifier) Progress() float64 {
	if v.verified {
		return 1
	}
	if !v.dwelling {
		return 0
	}
	if v.requiredDwell <= 0 {
		return 1
	}
	frac := float64(v.now().Sub(v.dwellStart)) / float64(v.requiredDwell)
	return min(1, frac)
}

// Reset clears the target, dwell progress, and verified flag.
func (v *PositionVerifier) Reset() {
	v.hasTarget = false
	v.dwelling = false
	v.verified = false
}
