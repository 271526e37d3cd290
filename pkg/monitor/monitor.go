// Package monitor runs battery check cycles and the manual test trigger.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battnotify/pkg/alert"
	"github.com/charlie0129/battnotify/pkg/battery"
	"github.com/charlie0129/battnotify/pkg/events"
	"github.com/charlie0129/battnotify/pkg/scheduler"
	"github.com/charlie0129/battnotify/pkg/threshold"
)

// DefaultMessageFormat is used when no message format is configured.
const DefaultMessageFormat = "Battery is at %d%%. Please plug in the charger!"

// CycleReport describes one battery check.
type CycleReport struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	// Percentage is battery.Unknown when the level could not be read.
	Percentage int    `json:"percentage"`
	ReadError  string `json:"readError,omitempty"`
	// Decision is true when the percentage was inside the band.
	Decision   bool            `json:"decision"`
	Suppressed bool            `json:"suppressed,omitempty"`
	EventID    string          `json:"eventId,omitempty"`
	Outcomes   []alert.Outcome `json:"outcomes,omitempty"`
}

// Alerted reports whether the cycle dispatched an alert.
func (r CycleReport) Alerted() bool { return r.EventID != "" }

type Option func(*Monitor)

// WithMessageFormat sets the alert text. The format takes the percentage as
// its only verb.
func WithMessageFormat(format string) Option {
	return func(m *Monitor) {
		if format != "" {
			m.messageFormat = format
		}
	}
}

// WithRepeatAfterCycles configures alert suppression, see Suppressor.
func WithRepeatAfterCycles(n int) Option {
	return func(m *Monitor) { m.suppressor = NewSuppressor(n) }
}

func WithHistory(h *History) Option {
	return func(m *Monitor) { m.history = h }
}

func WithEventHub(h *events.EventHub) Option {
	return func(m *Monitor) { m.hub = h }
}

// Monitor runs one read, decide, dispatch cycle at a time.
type Monitor struct {
	reader        battery.Reader
	band          threshold.Band
	channels      []alert.Channel
	messageFormat string
	suppressor    *Suppressor
	history       *History
	hub           *events.EventHub

	mu sync.Mutex
}

func New(reader battery.Reader, band threshold.Band, channels []alert.Channel, opts ...Option) *Monitor {
	m := &Monitor{
		reader:        reader,
		band:          band,
		channels:      channels,
		messageFormat: DefaultMessageFormat,
		suppressor:    NewSuppressor(0),
		history:       NewHistory(50),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) Band() threshold.Band { return m.band }

func (m *Monitor) History() *History { return m.history }

// LastAlertedAt returns when a cycle last dispatched an alert, or the zero
// time if none has.
func (m *Monitor) LastAlertedAt() time.Time { return m.suppressor.LastAlertedAt() }

// ChannelNames returns the names of the configured channels, in dispatch order.
func (m *Monitor) ChannelNames() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Task adapts RunCycle to the scheduler. The task never fails: channel
// errors are part of the report, not of the job.
func (m *Monitor) Task(ctx context.Context) scheduler.TaskFunc {
	return func() error {
		m.RunCycle(ctx)
		return nil
	}
}

// RunCycle reads the battery once and alerts through every channel if the
// level is low. Concurrent calls wait for each other.
func (m *Monitor) RunCycle(ctx context.Context) CycleReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := CycleReport{
		ID:         uuid.NewString(),
		StartedAt:  time.Now().Round(0),
		Percentage: battery.Unknown,
	}
	logger := logrus.WithField("cycle", report.ID)

	defer func() {
		report.Duration = time.Since(report.StartedAt)
		m.history.Add(report)
		m.hub.Publish(events.CycleCompleted, report)
	}()

	p, err := m.reader.Read()
	if err != nil || p == battery.Unknown {
		if err == nil {
			err = battery.ErrUnavailable
		}
		report.ReadError = err.Error()
		logger.WithError(err).Debug("battery level unknown, not alerting")
		return report
	}
	report.Percentage = p

	report.Decision = m.band.Decide(p)
	if !m.suppressor.Allow(report.Decision, report.StartedAt) {
		report.Suppressed = report.Decision
		logger.WithFields(logrus.Fields{
			"percentage": p,
			"band":       m.band.String(),
			"suppressed": report.Suppressed,
		}).Debug("no alert this cycle")
		return report
	}

	ev := alert.NewEvent(p, m.messageFormat)
	report.EventID = ev.ID
	report.Outcomes = alert.Dispatch(ctx, m.channels, ev)

	logger.WithFields(logrus.Fields{
		"percentage": p,
		"event":      ev.ID,
		"channels":   len(report.Outcomes),
		"failed":     alert.Failed(report.Outcomes),
	}).Info("low battery alert dispatched")

	return report
}
