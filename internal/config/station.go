// Package config loads and validates the station configuration. Session
// targets and tuning values live in a JSON file; fields omitted from the
// file keep their defaults, so partial configs are safe. Validation is the
// one place an invalid target specification is fatal: every destination
// cell is range-checked before a session may start.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgeworks/gridstation/internal/grid"
)

// Default tuning values. The dwell and send interval mirror the actuator
// firmware's placement hold time and the camera's 10 Hz stream rate.
const (
	DefaultDwellSeconds   = 5.0
	DefaultSendIntervalMs = 100
	DefaultBaudRate       = 115200
	DefaultFrameWidth     = 640
	DefaultFrameHeight    = 480
	DefaultDBPath         = "station.db"
)

// StationConfig represents the root configuration for a pick-and-place
// session. Pointer fields distinguish "unset" from zero so the JSON file
// only needs to name the values it overrides.
type StationConfig struct {
	// Targets is the ordered list of destination cells, one per queued
	// item. Required.
	Targets []grid.Cell `json:"targets"`

	// Dwell and transport tuning
	DwellSeconds   *float64 `json:"dwell_seconds,omitempty"`
	SendIntervalMs *int     `json:"send_interval_ms,omitempty"`

	// Serial link
	PreferredPort *string `json:"preferred_port,omitempty"`
	BaudRate      *int    `json:"baud_rate,omitempty"`

	// Camera frame geometry used by the raw (pre-calibration) quantizer
	FrameWidth  *int `json:"frame_width,omitempty"`
	FrameHeight *int `json:"frame_height,omitempty"`

	// GridSize is accepted for explicitness but must equal 5; the station
	// hardware is a fixed 5x5 grid.
	GridSize *int `json:"grid_size,omitempty"`

	// DBPath is the SQLite database used for calibration persistence and
	// the session journal.
	DBPath *string `json:"db_path,omitempty"`
}

// Load reads and validates a StationConfig from a JSON file.
func Load(path string) (*StationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &StationConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values can start a session.
func (c *StationConfig) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target cell is required")
	}
	for i, target := range c.Targets {
		if !target.Resolved() {
			return fmt.Errorf("target %d out of range: %v (rows and cols must be in [0,%d])", i, target, grid.Size-1)
		}
	}

	if c.GridSize != nil && *c.GridSize != grid.Size {
		return fmt.Errorf("unsupported grid size %d: the station grid is fixed at %d", *c.GridSize, grid.Size)
	}

	if c.DwellSeconds != nil && *c.DwellSeconds <= 0 {
		return fmt.Errorf("dwell_seconds must be positive, got %f", *c.DwellSeconds)
	}
	if c.SendIntervalMs != nil && *c.SendIntervalMs <= 0 {
		return fmt.Errorf("send_interval_ms must be positive, got %d", *c.SendIntervalMs)
	}
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}

	return nil
}

// GetDwell returns the required dwell as a duration.
func (c *StationConfig) GetDwell() time.Duration {
	seconds := DefaultDwellSeconds
	if c.DwellSeconds != nil {
		seconds = *c.DwellSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}

// GetSendInterval returns the minimum spacing between outbound commands.
func (c *StationConfig) GetSendInterval() time.Duration {
	ms := DefaultSendIntervalMs
	if c.SendIntervalMs != nil {
		ms = *c.SendIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

// GetPreferredPort returns the configured port name, empty when unset.
func (c *StationConfig) GetPreferredPort() string {
	if c.PreferredPort != nil {
		return *c.PreferredPort
	}
	return ""
}

// GetBaudRate returns the serial baud rate.
func (c *StationConfig) GetBaudRate() int {
	if c.BaudRate != nil {
		return *c.BaudRate
	}
	return DefaultBaudRate
}

// GetFrameSize returns the camera frame dimensions for the raw quantizer.
func (c *StationConfig) GetFrameSize() (width, height int) {
	width, height = DefaultFrameWidth, DefaultFrameHeight
	if c.FrameWidth != nil {
		width = *c.FrameWidth
	}
	if c.FrameHeight != nil {
		height = *c.FrameHeight
	}
	return width, height
}

// GetDBPath returns the SQLite database path.
func (c *StationConfig) GetDBPath() string {
	if c.DBPath != nil {
		return *c.DBPath
	}
	return DefaultDBPath
}
