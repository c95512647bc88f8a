// Package vision defines the observation records produced by the external
// detector each frame. Marker and blob extraction (contour centroids,
// fiducial decoding) happens outside this module; the station consumes
// only the resulting records.
package vision

import (
	"context"

	"github.com/forgeworks/gridstation/internal/grid"
)

// MarkerObservation is one decoded fiducial marker seen in a frame.
type MarkerObservation struct {
	ID     int        `json:"id"`
	Center grid.Point `json:"center"`
	Area   float64    `json:"area"`
}

// BlobObservation is the largest qualifying colour blob in a frame. It
// tracks the effector/payload position while an item is in transit.
type BlobObservation struct {
	Center grid.Point `json:"center"`
	Area   float64    `json:"area"`
}

// Frame bundles everything the detector extracted from a single capture.
// Observations are transient: the workflow reads them once and discards
// them.
type Frame struct {
	Markers []MarkerObservation `json:"markers,omitempty"`
	Blob    *BlobObservation    `json:"blob,omitempty"` // nil when no qualifying blob was found
	Width   int                 `json:"width"`
	Height  int                 `json:"height"`
}

// Detector is the contract the external vision pipeline fulfils. Detect
// blocks on frame capture; a nil error with an empty Frame means the
// detector saw nothing this frame.
type Detector interface {
	Detect(ctx context.Context) (Frame, error)
}

// BestMarker returns the largest-area marker in the frame, the closest and
// clearest candidate when several are visible. Returns false when the
// frame has no markers.
func (f Frame) BestMarker() (MarkerObservation, bool) {
	if len(f.Markers) == 0 {
		return MarkerObservation{}, false
	}
	best := f.Markers[0]
	for _, m := range f.Markers[1:] {
		if m.Area > best.Area {
			best = m
		}
	}
	return best, true
}
