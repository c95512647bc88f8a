package monitoring

import "sync"

// TickStats counts per-frame outcomes across a session. Frames are
// processed on a single loop goroutine but stats may be read from a
// status/debug context, so access is locked.
type TickStats struct {
	mu          sync.Mutex
	frames      uint64
	sends       uint64
	missedSends uint64
	emptyFrames uint64
}

// Frame records one processed frame.
func (s *TickStats) Frame() {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

// Send records a successful outbound command.
func (s *TickStats) Send() {
	s.mu.Lock()
	s.sends++
	s.mu.Unlock()
}

// MissedSend records a tick whose outbound command failed to deliver.
func (s *TickStats) MissedSend() {
	s.mu.Lock()
	s.missedSends++
	s.mu.Unlock()
}

// EmptyFrame records a frame with no usable observations.
func (s *TickStats) EmptyFrame() {
	s.mu.Lock()
	s.emptyFrames++
	s.mu.Unlock()
}

// Snapshot returns the current counter values.
func (s *TickStats) Snapshot() (frames, sends, missedSends, emptyFrames uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.sends, s.missedSends, s.emptyFrames
}
