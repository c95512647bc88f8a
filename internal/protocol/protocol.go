// Package protocol defines the line-oriented ASCII command protocol spoken
// to the actuator controller over serial. Every outbound message is a
// single newline-terminated line:
//
//	<id>,<row>,<col>\n        marker update / position heartbeat
//	PICKUP,<id>,<row>,<col>\n pickup command
//	RELEASE\n                 release command
//
// The actuator replies with free-form status lines which are logged but
// carry no workflow semantics.
package protocol

import (
	"fmt"
	"strings"

	"github.com/forgeworks/gridstation/internal/grid"
)

// Kind discriminates the outbound message types.
type Kind string

const (
	KindMarkerUpdate      Kind = "marker_update"
	KindPositionHeartbeat Kind = "position_heartbeat"
	KindPickup            Kind = "pickup"
	KindRelease           Kind = "release"
)

// Message is one outbound command line before encoding.
type Message struct {
	Kind     Kind
	MarkerID int
	Cell     grid.Cell
}

// MarkerUpdate reports the best candidate marker's cell while no pickup is
// active.
func MarkerUpdate(markerID int, cell grid.Cell) Message {
	return Message{Kind: KindMarkerUpdate, MarkerID: markerID, Cell: cell}
}

// PositionHeartbeat reports the tracked payload cell during transit.
func PositionHeartbeat(markerID int, cell grid.Cell) Message {
	return Message{Kind: KindPositionHeartbeat, MarkerID: markerID, Cell: cell}
}

// Pickup commands the actuator to collect the identified item and carry it
// toward its destination.
func Pickup(markerID int, target grid.Cell) Message {
	return Message{Kind: KindPickup, MarkerID: markerID, Cell: target}
}

// Release commands the actuator to drop the verified item.
func Release() Message {
	return Message{Kind: KindRelease}
}

// Encode renders the message as its wire line, including the trailing
// newline.
func (m Message) Encode() string {
	switch m.Kind {
	case KindPickup:
		return fmt.Sprintf("PICKUP,%d,%d,%d\n", m.MarkerID, m.Cell.Row, m.Cell.Col)
	case KindRelease:
		return "RELEASE\n"
	default:
		return fmt.Sprintf("%d,%d,%d\n", m.MarkerID, m.Cell.Row, m.Cell.Col)
	}
}

// StatusLine is a sanitized inbound line from the actuator.
type StatusLine struct {
	Text string
}

// ParseStatusLine trims transport framing from an inbound actuator line.
// Empty lines return false; the actuator idles silently between status
// reports.
func ParseStatusLine(raw string) (StatusLine, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return StatusLine{}, false
	}
	return StatusLine{Text: text}, true
}
