package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battnotify/pkg/alert"
	"github.com/charlie0129/battnotify/pkg/battery"
	"github.com/charlie0129/battnotify/pkg/config"
	"github.com/charlie0129/battnotify/pkg/events"
)

// TestMessage is sent to Telegram by the manual test trigger.
const TestMessage = "🔋 Test message: battery notifier is working!"

var ErrMissingCredentials = errors.New("both the telegram bot token and chat id are required")

// TestResult is the outcome of one manual test.
type TestResult struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"startedAt"`
	Outcomes  []alert.Outcome `json:"outcomes"`
}

// Tester plays the alert sound and sends a test message with credentials
// supplied by the caller, which may not have been saved yet.
type Tester struct {
	sound    alert.Channel
	telegram alert.TelegramOptions
	hub      *events.EventHub
}

func NewTester(sound alert.Channel, telegram alert.TelegramOptions, hub *events.EventHub) *Tester {
	return &Tester{sound: sound, telegram: telegram, hub: hub}
}

// Run requires complete credentials. The sound and the message are
// delivered concurrently.
func (t *Tester) Run(ctx context.Context, creds config.Credentials) (TestResult, error) {
	if !creds.Complete() {
		return TestResult{}, ErrMissingCredentials
	}

	channels := []alert.Channel{}
	if t.sound != nil {
		channels = append(channels, t.sound)
	}
	channels = append(channels, alert.NewTelegram(alert.StaticCredentials(creds), t.telegram))

	ev := alert.Event{
		ID:         uuid.NewString(),
		Percentage: battery.Unknown,
		Timestamp:  time.Now().Round(0),
		Message:    TestMessage,
		Test:       true,
	}

	res := TestResult{
		ID:        ev.ID,
		StartedAt: ev.Timestamp,
		Outcomes:  alert.Dispatch(ctx, channels, ev),
	}

	logrus.WithFields(logrus.Fields{
		"test":   res.ID,
		"chatID": creds.ChatID,
		"failed": alert.Failed(res.Outcomes),
	}).Info("test alert sent")

	t.hub.Publish(events.TestCompleted, res)
	return res, nil
}
