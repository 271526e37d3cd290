// Package daemon runs the battery monitor and serves its HTTP API on a unix socket.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battnotify/pkg/alert"
	"github.com/charlie0129/battnotify/pkg/battery"
	"github.com/charlie0129/battnotify/pkg/config"
	"github.com/charlie0129/battnotify/pkg/scheduler"
)

// Options configure Run.
type Options struct {
	ConfigPath     string
	SettingsPath   string
	UnixSocketPath string
	// EnvFile is loaded into the environment before settings are read.
	// A missing file is ignored.
	EnvFile      string
	AllowNonRoot bool
}

// channelSet is every alert channel the daemon delivers to.
type channelSet struct {
	sound        *alert.Sound
	notification *alert.Notification
	telegram     *alert.Telegram
	mqtt         *alert.MQTT
	sns          *alert.SNS
}

func (cs channelSet) list() []alert.Channel {
	return []alert.Channel{cs.sound, cs.notification, cs.telegram, cs.mqtt, cs.sns}
}

// registerNotificationChannel declares the channel used for local
// notifications. It is safe to call more than once.
func registerNotificationChannel(settings *config.Settings) {
	alert.RegisterChannel(alert.ChannelSpec{
		ID:          alert.DefaultChannelID,
		Name:        "Battery Alert",
		Description: "Alerts when the battery level is low",
		Importance:  alert.ImportanceHigh,
		Sound:       settings.Sound.File,
		Usage:       "notification",
		ContentType: "sonification",
	})
}

func buildChannels(ctx context.Context, settings *config.Settings, conf config.Provider) (channelSet, error) {
	sns, err := alert.NewSNS(ctx, settings.SNS.Region, settings.SNS.TopicARN)
	if err != nil {
		return channelSet{}, err
	}

	return channelSet{
		sound: alert.NewSound(alert.SoundOptions{
			Player:   settings.Sound.Player,
			Args:     settings.Sound.Args,
			File:     settings.Sound.File,
			Timeout:  settings.Sound.Timeout,
			Disabled: !settings.Sound.Enabled,
			OnRelease: func(err error) {
				if err != nil {
					logrus.WithError(err).Debug("sound player exited with error")
				}
			},
		}),
		notification: alert.NewNotification(alert.NotificationOptions{
			Command:    settings.Notification.Command,
			ChannelID:  alert.DefaultChannelID,
			ExpireTime: settings.Notification.ExpireTime,
			Disabled:   !settings.Notification.Enabled,
		}),
		telegram: alert.NewTelegram(alert.ProviderCredentials(conf), telegramOptions(settings)),
		mqtt: alert.NewMQTT(alert.MQTTOptions{
			Broker:   settings.MQTT.Broker,
			Topic:    settings.MQTT.Topic,
			ClientID: settings.MQTT.ClientID,
			QoS:      byte(settings.MQTT.QoS),
		}),
		sns: sns,
	}, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err == nil {
		logrus.WithField("path", path).Info("environment file loaded")
	}
	return nil
}

func Run(opts Options) error {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return err
	}

	settings, err := config.LoadSettings(opts.SettingsPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	logrus.WithFields(settings.LogrusFields()).Info("settings loaded")

	conf, err := config.NewFile(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to parse config during startup: %w", err)
	}
	logrus.WithFields(conf.LogrusFields()).Info("config loaded")

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Info("config reloaded")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registerNotificationChannel(settings)

	channels, err := buildChannels(ctx, settings, conf)
	if err != nil {
		return fmt.Errorf("failed to set up alert channels: %w", err)
	}

	reader := battery.System{}
	s := newServer(ctx, conf, settings, reader, channels.list(), channels.sound)
	s.details = reader.Details

	if _, err := s.enqueueCheck(scheduler.Keep); err != nil {
		return err
	}

	// First check right away instead of one interval after startup.
	go s.monitor.RunCycle(ctx)

	srv := &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// A previous daemon that crashed leaves its socket behind.
	if _, err := os.Stat(opts.UnixSocketPath); err == nil {
		logrus.Warnf("removing stale socket %s", opts.UnixSocketPath)
		if err := os.Remove(opts.UnixSocketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", opts.UnixSocketPath)
	if err != nil {
		return err
	}

	if opts.AllowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", opts.UnixSocketPath)
		err = os.Chmod(opts.UnixSocketPath, 0777)
		if err != nil {
			return err
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("stopping scheduled jobs")
	s.registry.StopAll()
	cancel()

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	logrus.Info("closing mqtt connection")
	channels.mqtt.Close()

	logrus.Info("exiting")
	return nil
}
