package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battnotify/pkg/battery"
	"github.com/charlie0129/battnotify/pkg/config"
	"github.com/charlie0129/battnotify/pkg/events"
	"github.com/charlie0129/battnotify/pkg/monitor"
	"github.com/charlie0129/battnotify/pkg/scheduler"
	"github.com/charlie0129/battnotify/pkg/types"
	"github.com/charlie0129/battnotify/pkg/version"
)

func abortWithError(c *gin.Context, status int, err error) {
	c.IndentedJSON(status, err.Error())
	_ = c.AbortWithError(status, err)
}

func (s *server) getConfig(c *gin.Context) {
	creds := s.conf.Credentials()
	resp := types.ConfigResponse{
		Telegram:           creds.Masked(),
		TelegramConfigured: creds.Complete(),
		Band:               s.monitor.Band(),
		JobName:            s.settings.Monitor.JobName,
		Interval:           s.settings.Monitor.Interval,
		RepeatAfterCycles:  s.settings.Alert.RepeatAfterCycles,
		Channels:           s.monitor.ChannelNames(),
	}
	if at := s.monitor.LastAlertedAt(); !at.IsZero() {
		resp.LastAlertedAt = &at
	}
	c.IndentedJSON(http.StatusOK, resp)
}

// saveCredentials persists creds and makes sure the periodic check exists.
func (s *server) saveCredentials(creds config.Credentials, source string) error {
	s.conf.SetCredentials(creds)
	if err := s.conf.Save(); err != nil {
		return err
	}

	if _, err := s.enqueueCheck(scheduler.Keep); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", s.settings.Monitor.JobName, err)
	}

	s.hub.Publish(events.CredentialsChanged, events.CredentialsChangedEvent{
		Configured: creds.Complete(),
		Source:     source,
		Ts:         time.Now().Unix(),
	})
	return nil
}

func (s *server) setTelegram(c *gin.Context) {
	var creds config.Credentials
	if err := c.BindJSON(&creds); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if !creds.Complete() {
		abortWithError(c, http.StatusBadRequest, monitor.ErrMissingCredentials)
		return
	}

	if err := s.saveCredentials(creds, "telegram"); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	logrus.WithField("token", config.MaskToken(creds.Token)).Info("telegram credentials saved")
	c.IndentedJSON(http.StatusCreated, "telegram credentials saved")
}

func (s *server) clearTelegram(c *gin.Context) {
	s.conf.SetCredentials(config.Credentials{})
	if err := s.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	s.hub.Publish(events.CredentialsChanged, events.CredentialsChangedEvent{
		Source: "telegram",
		Ts:     time.Now().Unix(),
	})

	logrus.Info("telegram credentials cleared")
	c.IndentedJSON(http.StatusOK, "telegram credentials cleared, remote messages are disabled")
}

func (s *server) getBattery(c *gin.Context) {
	status := types.BatteryStatus{Percentage: battery.Unknown}

	p, err := s.reader.Read()
	if err != nil {
		status.Error = err.Error()
	} else if p != battery.Unknown {
		status.Percentage = p
		status.Known = true
		status.Low = s.monitor.Band().Decide(p)
	}

	if s.details != nil {
		if bat, err := s.details(); err == nil {
			status.State = bat.State.String()
			status.Current = bat.Current
			status.Full = bat.Full
			status.Design = bat.Design
			status.ChargeRate = bat.ChargeRate
			status.Voltage = bat.Voltage
		} else {
			logrus.WithError(err).Debug("battery details unavailable")
		}
	}

	c.IndentedJSON(http.StatusOK, status)
}

func (s *server) getBand(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.monitor.Band())
}

func (s *server) getHistory(c *gin.Context) {
	since := c.Query("since")
	if since == "" {
		c.IndentedJSON(http.StatusOK, s.monitor.History().Records())
		return
	}

	d, err := time.ParseDuration(since)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("invalid since: %w", err))
		return
	}
	c.IndentedJSON(http.StatusOK, s.monitor.History().Since(d))
}

func (s *server) getLastCycle(c *gin.Context) {
	report, ok := s.monitor.History().Last()
	if !ok {
		abortWithError(c, http.StatusNotFound, errors.New("no checks recorded yet"))
		return
	}
	c.IndentedJSON(http.StatusOK, report)
}

func (s *server) getJobs(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.registry.Jobs())
}

func (s *server) getJob(c *gin.Context) {
	name := c.Param("name")
	job, ok := s.registry.Lookup(name)
	if !ok {
		abortWithError(c, http.StatusNotFound, fmt.Errorf("%w: %s", scheduler.ErrJobNotFound, name))
		return
	}
	c.IndentedJSON(http.StatusOK, job.Info())
}

// cancelJob stops a periodic job until the next credential save or daemon
// restart enqueues it again.
func (s *server) cancelJob(c *gin.Context) {
	name := c.Param("name")
	if !s.registry.Cancel(name) {
		abortWithError(c, http.StatusNotFound, fmt.Errorf("%w: %s", scheduler.ErrJobNotFound, name))
		return
	}
	c.IndentedJSON(http.StatusOK, fmt.Sprintf("job %s cancelled", name))
}

func (s *server) skipJob(c *gin.Context) {
	job, err := s.registry.Skip(c.Param("name"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrJobNotFound) {
			status = http.StatusNotFound
		}
		abortWithError(c, status, err)
		return
	}
	c.IndentedJSON(http.StatusOK, job.Info())
}

// runCheck runs one cycle right away. The cycle is not tied to the request,
// so a client hanging up does not cut an alert short.
func (s *server) runCheck(c *gin.Context) {
	report := s.monitor.RunCycle(s.ctx)
	c.IndentedJSON(http.StatusOK, report)
}

func (s *server) runTest(c *gin.Context) {
	var req types.TestRequest
	if err := c.BindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	creds := req.Credentials()
	if !creds.Complete() {
		abortWithError(c, http.StatusBadRequest, monitor.ErrMissingCredentials)
		return
	}

	if req.Save {
		if err := s.saveCredentials(creds, "test"); err != nil {
			logrus.Errorf("saveConfig failed: %v", err)
			abortWithError(c, http.StatusInternalServerError, err)
			return
		}
	}

	res, err := s.tester.Run(s.ctx, creds)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, monitor.ErrMissingCredentials) {
			status = http.StatusBadRequest
		}
		abortWithError(c, status, err)
		return
	}

	c.IndentedJSON(http.StatusOK, res)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
