package monitor

import (
	"sync"
	"time"
)

// History records the last N cycle reports.
type History struct {
	MaxRecordCount int
	reports        []CycleReport
	mu             *sync.Mutex
}

// NewHistory returns a new History. A non-positive size keeps one report.
func NewHistory(maxRecordCount int) *History {
	if maxRecordCount < 1 {
		maxRecordCount = 1
	}
	return &History{
		MaxRecordCount: maxRecordCount,
		reports:        make([]CycleReport, 0),
		mu:             &sync.Mutex{},
	}
}

// Add adds a new report, dropping the oldest one when full.
func (h *History) Add(r CycleReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.reports) >= h.MaxRecordCount {
		h.reports = h.reports[1:]
	}
	h.reports = append(h.reports, r)
}

// Clear removes all reports.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reports = make([]CycleReport, 0)
}

// Records returns a copy of the reports, oldest first.
func (h *History) Records() []CycleReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]CycleReport, len(h.reports))
	copy(out, h.reports)
	return out
}

// Last returns the most recent report.
func (h *History) Last() (CycleReport, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.reports) == 0 {
		return CycleReport{}, false
	}
	return h.reports[len(h.reports)-1], true
}

// Since returns the reports started within the last duration, oldest first.
func (h *History) Since(last time.Duration) []CycleReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := len(h.reports)
	for i > 0 && time.Since(h.reports[i-1].StartedAt) <= last {
		i--
	}
	out := make([]CycleReport, len(h.reports)-i)
	copy(out, h.reports[i:])
	return out
}
