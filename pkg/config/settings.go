package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/charlie0129/battnotify/pkg/threshold"
)

// Settings are the daemon options. Unlike Provider values they are not
// changed at runtime.
type Settings struct {
	Monitor      MonitorSettings      `mapstructure:"monitor"`
	Alert        AlertSettings        `mapstructure:"alert"`
	Sound        SoundSettings        `mapstructure:"sound"`
	Notification NotificationSettings `mapstructure:"notification"`
	Telegram     TelegramSettings     `mapstructure:"telegram"`
	MQTT         MQTTSettings         `mapstructure:"mqtt"`
	SNS          SNSSettings          `mapstructure:"sns"`
	History      HistorySettings      `mapstructure:"history"`
}

// MonitorSettings configure the recurring battery check.
type MonitorSettings struct {
	JobName  string        `mapstructure:"job_name"`
	Interval time.Duration `mapstructure:"interval"`
}

// AlertSettings configure when and what to alert.
type AlertSettings struct {
	Lower int `mapstructure:"lower"`
	Upper int `mapstructure:"upper"`
	// RepeatAfterCycles is 0 to alert on every low cycle, or N to alert once
	// per low-battery episode and again every N further low cycles.
	RepeatAfterCycles int    `mapstructure:"repeat_after_cycles"`
	Message           string `mapstructure:"message"`
}

// SoundSettings configure the alert sound.
type SoundSettings struct {
	Enabled bool          `mapstructure:"enabled"`
	Player  string        `mapstructure:"player"`
	Args    []string      `mapstructure:"args"`
	File    string        `mapstructure:"file"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotificationSettings configure the local desktop notification.
type NotificationSettings struct {
	Enabled    bool          `mapstructure:"enabled"`
	Command    string        `mapstructure:"command"`
	ExpireTime time.Duration `mapstructure:"expire_time"`
}

// TelegramSettings configure the Telegram bot API client.
type TelegramSettings struct {
	BaseURL        string        `mapstructure:"base_url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
}

// MQTTSettings configure the optional MQTT channel. Empty Broker disables it.
type MQTTSettings struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	QoS      int    `mapstructure:"qos"`
}

// SNSSettings configure the optional AWS SNS channel. Empty TopicARN disables it.
type SNSSettings struct {
	Region   string `mapstructure:"region"`
	TopicARN string `mapstructure:"topic_arn"`
}

// HistorySettings configure the in-memory cycle history.
type HistorySettings struct {
	Size int `mapstructure:"size"`
}

// DefaultSoundPlayer returns the audio player used when none is configured.
func DefaultSoundPlayer() (player string, file string) {
	if runtime.GOOS == "darwin" {
		return "/usr/bin/afplay", "/System/Library/Sounds/Sosumi.aiff"
	}
	return "paplay", "/usr/share/sounds/freedesktop/stereo/alarm-clock-elapsed.oga"
}

// DefaultNotifyCommand returns the notification command for this platform.
func DefaultNotifyCommand() string {
	if runtime.GOOS == "darwin" {
		return "/usr/bin/osascript"
	}
	return "notify-send"
}

func setDefaults(v *viper.Viper) {
	player, file := DefaultSoundPlayer()

	v.SetDefault("monitor.job_name", "battery_check_work")
	v.SetDefault("monitor.interval", "15m")
	v.SetDefault("alert.lower", threshold.Default.Lower)
	v.SetDefault("alert.upper", threshold.Default.Upper)
	v.SetDefault("alert.repeat_after_cycles", 0)
	v.SetDefault("alert.message", "Battery is at %d%%. Please plug in the charger!")
	v.SetDefault("sound.enabled", true)
	v.SetDefault("sound.player", player)
	v.SetDefault("sound.args", []string{})
	v.SetDefault("sound.file", file)
	v.SetDefault("sound.timeout", "30s")
	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.command", DefaultNotifyCommand())
	v.SetDefault("notification.expire_time", "10s")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.connect_timeout", "10s")
	v.SetDefault("telegram.read_timeout", "10s")
	v.SetDefault("telegram.rate_per_second", 1.0)
	v.SetDefault("mqtt.topic", "battnotify/alerts")
	v.SetDefault("mqtt.client_id", "battnotify")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("sns.region", "us-east-1")
	v.SetDefault("history.size", 50)
}

// LoadSettings reads settings from path (optional) and BATTNOTIFY_* environment variables.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("battnotify")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BATTNOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		logrus.Debug("no settings file found, using defaults")
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Band returns the configured low-battery band.
func (s *Settings) Band() threshold.Band {
	return threshold.Band{Lower: s.Alert.Lower, Upper: s.Alert.Upper}
}

// Validate checks values that would make the daemon misbehave.
func (s *Settings) Validate() error {
	if err := s.Band().Validate(); err != nil {
		return fmt.Errorf("invalid alert band: %w", err)
	}
	if s.Monitor.Interval < time.Minute {
		return fmt.Errorf("monitor interval must be at least 1m, got %s", s.Monitor.Interval)
	}
	if err := ValidateMessageFormat(s.Alert.Message); err != nil {
		return fmt.Errorf("invalid alert message: %w", err)
	}
	if s.Alert.RepeatAfterCycles < 0 {
		return fmt.Errorf("repeat_after_cycles must not be negative, got %d", s.Alert.RepeatAfterCycles)
	}
	if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", s.MQTT.QoS)
	}
	return nil
}

// ValidateMessageFormat accepts an empty format or one with exactly one
// integer verb (%d or %v, optionally with flags and width) for the
// percentage. %% is a literal percent sign.
func ValidateMessageFormat(format string) error {
	if format == "" {
		return nil
	}

	verbs := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		if i < len(format) && format[i] == '%' {
			continue
		}
		for i < len(format) && strings.IndexByte("+-# 0123456789", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			return fmt.Errorf("%q ends with an incomplete verb", format)
		}
		if format[i] != 'd' && format[i] != 'v' {
			return fmt.Errorf("%q uses %%%c, only %%d takes the percentage", format, format[i])
		}
		verbs++
	}

	if verbs != 1 {
		return fmt.Errorf("%q must contain exactly one %%d for the percentage, found %d verbs", format, verbs)
	}
	return nil
}

func (s *Settings) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"jobName":           s.Monitor.JobName,
		"interval":          s.Monitor.Interval.String(),
		"band":              s.Band().String(),
		"repeatAfterCycles": s.Alert.RepeatAfterCycles,
		"sound":             s.Sound.Enabled,
		"notification":      s.Notification.Enabled,
		"mqtt":              s.MQTT.Broker != "",
		"sns":               s.SNS.TopicARN != "",
	}
}
