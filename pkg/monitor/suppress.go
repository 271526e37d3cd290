package monitor

import (
	"sync"
	"time"
)

// Suppressor limits repeated alerts during one low-battery episode.
//
// An episode starts with the first in-band cycle and ends with the first
// cycle outside the band. With RepeatAfter == 0 every in-band cycle alerts.
// With RepeatAfter == N the first cycle of an episode alerts, then the next
// N in-band cycles are suppressed, and so on.
type Suppressor struct {
	RepeatAfter int

	mu               sync.Mutex
	inEpisode        bool
	cyclesSinceAlert int
	lastAlertedAt    time.Time
}

func NewSuppressor(repeatAfter int) *Suppressor {
	if repeatAfter < 0 {
		repeatAfter = 0
	}
	return &Suppressor{RepeatAfter: repeatAfter}
}

// Allow records the decision of one cycle and reports whether it should alert.
func (s *Suppressor) Allow(low bool, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !low {
		s.inEpisode = false
		s.cyclesSinceAlert = 0
		return false
	}

	if !s.inEpisode || s.cyclesSinceAlert >= s.RepeatAfter {
		s.inEpisode = true
		s.cyclesSinceAlert = 0
		s.lastAlertedAt = now
		return true
	}

	s.cyclesSinceAlert++
	return false
}

// LastAlertedAt returns when Allow last returned true.
func (s *Suppressor) LastAlertedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAlertedAt
}
