package serialmux

import (
	"fmt"
	"slices"

	"go.bug.st/serial"

	"github.com/forgeworks/gridstation/internal/monitoring"
)

// ListPorts returns the system's enumerated serial port names.
var ListPorts = serial.GetPortsList

// SelectPort picks the port to use: the preferred name when it is present
// among the enumerated ports, otherwise the first enumerated port. An
// empty result with nil error means no ports exist and the caller should
// fall back to the disabled mux (test mode).
func SelectPort(preferred string) (string, error) {
	names, err := ListPorts()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	if len(names) == 0 {
		return "", nil
	}
	if preferred != "" && slices.Contains(names, preferred) {
		return preferred, nil
	}
	if preferred != "" {
		monitoring.Logf("preferred port %q not found, using %q (available: %v)", preferred, names[0], names)
	}
	return names[0], nil
}

// NewRealSerialMux creates a SerialMux instance backed by a real serial
// port at the given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewSerialMux[serial.Port](port), nil
}

// Connect resolves the actuator link for this session: the preferred port
// when available, else the first enumerated port, else the disabled mux so
// the workflow can run without hardware. Open failures also degrade to the
// disabled mux rather than aborting the session.
func Connect(preferred string, opts PortOptions) SerialMuxInterface {
	path, err := SelectPort(preferred)
	if err != nil || path == "" {
		if err != nil {
			monitoring.Logf("serial port enumeration failed: %v; running in test mode", err)
		} else {
			monitoring.Logf("no serial ports found; running in test mode")
		}
		return NewDisabledSerialMux()
	}

	mux, err := NewRealSerialMux(path, opts)
	if err != nil {
		monitoring.Logf("failed to open serial port %s: %v; running in test mode", path, err)
		return NewDisabledSerialMux()
	}
	monitoring.Logf("actuator link open on %s", path)
	return mux
}
