package types

import (
	"time"

	"github.com/charlie0129/battnotify/pkg/config"
	"github.com/charlie0129/battnotify/pkg/threshold"
)

// ConfigResponse is the response of GET /config. The token is masked.
type ConfigResponse struct {
	Telegram           config.Credentials `json:"telegram"`
	TelegramConfigured bool               `json:"telegramConfigured"`
	Band               threshold.Band     `json:"band"`
	JobName            string             `json:"jobName"`
	Interval           time.Duration      `json:"interval"`
	RepeatAfterCycles  int                `json:"repeatAfterCycles"`
	Channels           []string           `json:"channels"`
	// LastAlertedAt is unset until the first alert is dispatched.
	LastAlertedAt *time.Time `json:"lastAlertedAt,omitempty"`
}

// TestRequest is the body of POST /test.
type TestRequest struct {
	Token  string `json:"token"`
	ChatID string `json:"chatId"`
	// Save persists the credentials before testing them.
	Save bool `json:"save"`
}

// Credentials returns the credentials carried by the request.
func (r TestRequest) Credentials() config.Credentials {
	return config.Credentials{Token: r.Token, ChatID: r.ChatID}
}
