// Package grid maps pixel coordinates from the overhead camera onto the
// fixed 5x5 physical grid. Two quantizers are provided: a raw variant that
// assumes the frame fully spans the grid and clamps every point into range,
// and a calibrated variant that uses operator-selected corner points and
// reports points outside the calibrated area as unresolved.
package grid

import "fmt"

// Size is the number of cells per grid axis. The station hardware is a
// fixed 5x5 grid; other sizes are rejected at configuration time.
const Size = 5

// Point is a pixel coordinate in the camera frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Cell identifies one grid cell. Row and Col are in [0, Size-1] when the
// cell is resolved.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Unresolved is the sentinel returned by QuantizeCalibrated for points
// that fall outside the calibrated grid area.
var Unresolved = Cell{Row: -1, Col: -1}

// Resolved reports whether c identifies a real grid cell.
func (c Cell) Resolved() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

func (c Cell) String() string {
	if !c.Resolved() {
		return "unresolved"
	}
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Calibration holds the cell boundary coordinates derived from two
// operator-selected corner pixels. XEdges and YEdges each contain Size+1
// strictly increasing values; cell (r,c) spans the half-open intervals
// [XEdges[c], XEdges[c+1]) x [YEdges[r], YEdges[r+1]).
type Calibration struct {
	CornerA Point `json:"corner_a"`
	CornerB Point `json:"corner_b"`

	XEdges [Size + 1]float64 `json:"x_edges"`
	YEdges [Size + 1]float64 `json:"y_edges"`
}

// Calibrate builds a Calibration from two corner pixels. The corners may
// be given in any order; they are normalized so CornerA is the (min,min)
// corner and CornerB the (max,max) corner. The corners must differ in both
// axes or the grid would be degenerate.
func Calibrate(a, b Point) (*Calibration, error) {
	if a.X == b.X || a.Y == b.Y {
		return nil, fmt.Errorf("calibration corners must differ in both axes: got (%v,%v) and (%v,%v)", a.X, a.Y, b.X, b.Y)
	}

	lo := Point{X: min(a.X, b.X), Y: min(a.Y, b.Y)}
	hi := Point{X: max(a.X, b.X), Y: max(a.Y, b.Y)}

	cal := &Calibration{CornerA: lo, CornerB: hi}
	for i := 0; i <= Size; i++ {
		cal.XEdges[i] = lo.X + (hi.X-lo.X)*float64(i)/Size
		cal.YEdges[i] = lo.Y + (hi.Y-lo.Y)*float64(i)/Size
	}
	return cal, nil
}

// QuantizeCalibrated maps a pixel inside the calibrated area to its cell.
// Intervals are lower-inclusive, so a point exactly on an interior
// boundary belongs to the higher-indexed cell. Points outside
// [edge[0], edge[Size]) in either axis return Unresolved; they are never
// clamped, since clamping near the grid edge would misreport cell
// identity.
func (cal *Calibration) QuantizeCalibrated(p Point) Cell {
	col, ok := locate(p.X, cal.XEdges)
	if !ok {
		return Unresolved
	}
	row, ok := locate(p.Y, cal.YEdges)
	if !ok {
		return Unresolved
	}
	return Cell{Row: row, Col: col}
}

// locate finds i such that edges[i] <= v < edges[i+1].
func locate(v float64, edges [Size + 1]float64) (int, bool) {
	if v < edges[0] || v >= edges[Size] {
		return 0, false
	}
	for i := 1; i <= Size; i++ {
		if v < edges[i] {
			return i - 1, true
		}
	}
	return 0, false
}

// QuantizeRaw maps a pixel to a cell assuming the frame fully spans the
// grid. Out-of-range points are clamped into [0, Size-1], so the result is
// always resolved. Used only before a calibration exists.
func QuantizeRaw(p Point, frameWidth, frameHeight int) Cell {
	col := int(p.X / (float64(frameWidth) / Size))
	row := int(p.Y / (float64(frameHeight) / Size))

	col = max(0, min(col, Size-1))
	row = max(0, min(row, Size-1))

	return Cell{Row: row, Col: col}
}
