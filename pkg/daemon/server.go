package daemon

import (
	"context"

	distbattery "github.com/distatus/battery"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battnotify/pkg/alert"
	"github.com/charlie0129/battnotify/pkg/battery"
	"github.com/charlie0129/battnotify/pkg/config"
	"github.com/charlie0129/battnotify/pkg/events"
	"github.com/charlie0129/battnotify/pkg/monitor"
	"github.com/charlie0129/battnotify/pkg/scheduler"
)

// server owns everything the HTTP handlers touch.
type server struct {
	ctx      context.Context
	conf     *config.File
	settings *config.Settings
	reader   battery.Reader
	details  func() (*distbattery.Battery, error)
	channels []alert.Channel
	monitor  *monitor.Monitor
	tester   *monitor.Tester
	registry *scheduler.Registry
	hub      *events.EventHub
}

// newServer wires the monitor, the test trigger and the job registry.
// sound may be nil, in which case the test trigger only sends the message.
func newServer(
	ctx context.Context,
	conf *config.File,
	settings *config.Settings,
	reader battery.Reader,
	channels []alert.Channel,
	sound alert.Channel,
) *server {
	hub := events.NewEventHub()

	registry := scheduler.NewRegistry()
	registry.OnError = func(data any) {
		logrus.WithField("error", data).Error("scheduled job failed")
	}

	return &server{
		ctx:      ctx,
		conf:     conf,
		settings: settings,
		reader:   reader,
		channels: channels,
		monitor: monitor.New(reader, settings.Band(), channels,
			monitor.WithMessageFormat(settings.Alert.Message),
			monitor.WithRepeatAfterCycles(settings.Alert.RepeatAfterCycles),
			monitor.WithHistory(monitor.NewHistory(settings.History.Size)),
			monitor.WithEventHub(hub),
		),
		tester:   monitor.NewTester(sound, telegramOptions(settings), hub),
		registry: registry,
		hub:      hub,
	}
}

// enqueueCheck registers the periodic battery check. With scheduler.Keep an
// already registered check is left alone.
func (s *server) enqueueCheck(policy scheduler.Policy) (*scheduler.Job, error) {
	return s.registry.EnqueueUniquePeriodic(
		s.settings.Monitor.JobName,
		s.settings.Monitor.Interval,
		policy,
		s.monitor.Task(s.ctx),
	)
}

func (s *server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", s.getConfig)
	router.PUT("/telegram", s.setTelegram)
	router.DELETE("/telegram", s.clearTelegram)
	router.GET("/battery", s.getBattery)
	router.GET("/band", s.getBand)
	router.GET("/history", s.getHistory)
	router.GET("/history/last", s.getLastCycle)
	router.GET("/jobs", s.getJobs)
	router.GET("/jobs/:name", s.getJob)
	router.DELETE("/jobs/:name", s.cancelJob)
	router.POST("/jobs/:name/skip", s.skipJob)
	router.POST("/check", s.runCheck)
	router.POST("/test", s.runTest)
	router.GET("/events", s.streamEvents)
	router.GET("/version", getVersion)

	return router
}

func telegramOptions(settings *config.Settings) alert.TelegramOptions {
	return alert.TelegramOptions{
		BaseURL:        settings.Telegram.BaseURL,
		ConnectTimeout: settings.Telegram.ConnectTimeout,
		ReadTimeout:    settings.Telegram.ReadTimeout,
		RatePerSecond:  settings.Telegram.RatePerSecond,
	}
}
