// Package alert delivers low-battery alerts through independent channels.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one low-battery alert, shared by every channel of a dispatch.
type Event struct {
	ID         string    `json:"id"`
	Percentage int       `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	// Test is set for events built by the manual test trigger.
	Test bool `json:"test,omitempty"`
}

// NewEvent builds an Event for percentage. messageFormat takes the
// percentage as its only verb.
func NewEvent(percentage int, messageFormat string) Event {
	return Event{
		ID:         uuid.NewString(),
		Percentage: percentage,
		Timestamp:  time.Now().Round(0),
		Message:    fmt.Sprintf(messageFormat, percentage),
	}
}

// Channel is a delivery mechanism. Implementations must be safe for
// concurrent use and keep no state between deliveries.
type Channel interface {
	// Name returns the channel identifier used in logs and outcomes.
	Name() string
	// Deliver attempts one delivery of ev.
	Deliver(ctx context.Context, ev Event) error
}

// Enabler is implemented by channels that can be switched off by configuration.
// A disabled channel is skipped and counts as a success.
type Enabler interface {
	Enabled() bool
}

// ErrorKind classifies channel failures.
type ErrorKind string

const (
	KindDelivery     ErrorKind = "delivery"
	KindPlayback     ErrorKind = "playback"
	KindNotification ErrorKind = "notification"
	KindPanic        ErrorKind = "panic"
)

// ChannelError is the error returned by every channel in this package.
type ChannelError struct {
	Channel string
	Kind    ErrorKind
	// StatusCode is the HTTP status for delivery errors, 0 otherwise.
	StatusCode int
	Err        error
}

func (e *ChannelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error: status %d: %v", e.Channel, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Channel, e.Kind, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Outcome is the result of one channel in one dispatch.
type Outcome struct {
	Channel  string        `json:"channel"`
	Success  bool          `json:"success"`
	Skipped  bool          `json:"skipped,omitempty"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Title is the short headline used by notifications and subjects.
func (e Event) Title() string {
	if e.Test {
		return "battnotify test"
	}
	return fmt.Sprintf("Low battery (%d%%)", e.Percentage)
}
