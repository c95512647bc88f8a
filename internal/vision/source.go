package vision

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/forgeworks/gridstation/internal/grid"
)

// Envelope is one unit of detector output on the wire: the frame plus any
// operator input captured alongside it. Taps carry the corner pixels the
// operator selected for calibration.
type Envelope struct {
	Frame Frame       `json:"frame"`
	Tap   *grid.Point `json:"tap,omitempty"`
}

// Source delivers detector envelopes to the frame loop. Next blocks until
// an envelope arrives, the source is exhausted (io.EOF), or ctx is done.
type Source interface {
	Next(ctx context.Context) (Envelope, error)
	Close() error
}

// UDPSource receives envelopes as JSON datagrams from the external vision
// process. One datagram is one frame; malformed datagrams are skipped.
type UDPSource struct {
	conn net.PacketConn
	buf  []byte
}

// ListenUDP opens a UDP frame source on addr.
func ListenUDP(addr string) (*UDPSource, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for frames on %s: %w", addr, err)
	}
	return &UDPSource{conn: conn, buf: make([]byte, 64*1024)}, nil
}

// Addr returns the bound listen address.
func (s *UDPSource) Addr() net.Addr { return s.conn.LocalAddr() }

func (s *UDPSource) Next(ctx context.Context) (Envelope, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Envelope{}, err
		}
		// Short read deadlines keep the loop responsive to cancellation.
		if err := s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
			return Envelope{}, err
		}
		n, _, err := s.conn.ReadFrom(s.buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return Envelope{}, err
		}
		var env Envelope
		if err := json.Unmarshal(s.buf[:n], &env); err != nil {
			continue
		}
		return env, nil
	}
}

func (s *UDPSource) Close() error { return s.conn.Close() }

// FixtureSource replays envelopes from a JSON-lines fixture file at a
// fixed cadence. Used in dev mode, where no camera process is running.
type FixtureSource struct {
	envelopes []Envelope
	interval  time.Duration
	pos       int
}

// OpenFixtures loads a fixture file. Blank lines and lines starting with
// '#' are skipped.
func OpenFixtures(path string, interval time.Duration) (*FixtureSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	defer f.Close()

	src := &FixtureSource{interval: interval}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var env Envelope
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			return nil, fmt.Errorf("bad fixture on line %d: %w", line, err)
		}
		src.envelopes = append(src.envelopes, env)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fixtures file: %w", err)
	}
	return src, nil
}

func (s *FixtureSource) Next(ctx context.Context) (Envelope, error) {
	if s.pos >= len(s.envelopes) {
		return Envelope{}, io.EOF
	}
	if s.pos > 0 {
		select {
		case <-time.After(s.interval):
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
	env := s.envelopes[s.pos]
	s.pos++
	return env, nil
}

func (s *FixtureSource) Close() error { return nil }
