package alert

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Importance of a notification channel.
type Importance int

const (
	ImportanceDefault Importance = iota
	ImportanceHigh
)

// DefaultChannelID is the notification channel used for battery alerts.
const DefaultChannelID = "battery_alert_channel"

// ChannelSpec describes a notification channel: how its notifications look
// and sound. It is registered once at process start.
type ChannelSpec struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Importance  Importance `json:"importance"`
	// Sound is the custom sound file attached to the channel.
	Sound string `json:"sound,omitempty"`
	// Usage and ContentType describe the sound's audio attributes.
	Usage       string `json:"usage,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

var (
	channelsMu = &sync.RWMutex{}
	channels   = map[string]ChannelSpec{}
)

// RegisterChannel registers cs. Registering an existing ID keeps the
// existing registration and returns false.
func RegisterChannel(cs ChannelSpec) bool {
	channelsMu.Lock()
	defer channelsMu.Unlock()

	if _, ok := channels[cs.ID]; ok {
		return false
	}
	channels[cs.ID] = cs

	logrus.WithFields(logrus.Fields{
		"id":         cs.ID,
		"name":       cs.Name,
		"importance": cs.Importance,
		"sound":      cs.Sound,
	}).Debug("notification channel registered")
	return true
}

// LookupChannel returns the channel registered under id.
func LookupChannel(id string) (ChannelSpec, bool) {
	channelsMu.RLock()
	defer channelsMu.RUnlock()

	cs, ok := channels[id]
	return cs, ok
}

// NotificationOptions configure a Notification channel.
type NotificationOptions struct {
	// Command is notify-send (or compatible) or osascript.
	Command   string
	ChannelID string
	AppName   string
	// ExpireTime makes the notification dismiss itself.
	ExpireTime time.Duration
	Disabled   bool
}

// Notification posts a local desktop notification.
type Notification struct {
	opts NotificationOptions
}

var (
	_ Channel = &Notification{}
	_ Enabler = &Notification{}
)

func NewNotification(opts NotificationOptions) *Notification {
	if opts.ChannelID == "" {
		opts.ChannelID = DefaultChannelID
	}
	if opts.AppName == "" {
		opts.AppName = "battnotify"
	}
	return &Notification{opts: opts}
}

func (n *Notification) Name() string { return "notification" }

func (n *Notification) Enabled() bool { return !n.opts.Disabled && n.opts.Command != "" }

func (n *Notification) Deliver(ctx context.Context, ev Event) error {
	return n.Notify(ctx, ev.Percentage)
}

// Notify posts a high priority notification carrying percentage.
func (n *Notification) Notify(ctx context.Context, percentage int) error {
	cs, ok := LookupChannel(n.opts.ChannelID)
	if !ok {
		return &ChannelError{
			Channel: n.Name(),
			Kind:    KindNotification,
			Err:     fmt.Errorf("notification channel %q is not registered", n.opts.ChannelID),
		}
	}

	title := fmt.Sprintf("Low battery (%d%%)", percentage)
	body := "Please plug in the charger."
	args := notificationArgs(n.opts, cs, title, body)

	out, err := exec.CommandContext(ctx, n.opts.Command, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &ChannelError{Channel: n.Name(), Kind: KindNotification, Err: err}
	}

	return nil
}

func notificationArgs(opts NotificationOptions, cs ChannelSpec, title, body string) []string {
	if filepath.Base(opts.Command) == "osascript" {
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptQuote(body), appleScriptQuote(title))
		if cs.Sound != "" {
			name := strings.TrimSuffix(filepath.Base(cs.Sound), filepath.Ext(cs.Sound))
			script += " sound name " + appleScriptQuote(name)
		}
		return []string{"-e", script}
	}

	urgency := "normal"
	if cs.Importance >= ImportanceHigh {
		urgency = "critical"
	}

	args := []string{
		"--app-name=" + opts.AppName,
		"--urgency=" + urgency,
		"--category=" + cs.ID,
		"--icon=battery-caution",
	}
	if opts.ExpireTime > 0 {
		args = append(args, "--expire-time="+strconv.FormatInt(opts.ExpireTime.Milliseconds(), 10))
	}
	if cs.Sound != "" {
		args = append(args, "--hint=string:sound-file:"+cs.Sound)
	}
	return append(args, title, body)
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
