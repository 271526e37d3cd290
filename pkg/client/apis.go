package client

import (
	"encoding/json"
	"net/url"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battnotify/pkg/config"
	"github.com/charlie0129/battnotify/pkg/monitor"
	"github.com/charlie0129/battnotify/pkg/scheduler"
	"github.com/charlie0129/battnotify/pkg/threshold"
	"github.com/charlie0129/battnotify/pkg/types"
)

func getJSON[T any](c *Client, path, what string) (*T, error) {
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s", what)
	}

	var v T
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return &v, nil
}

func (c *Client) GetConfig() (*types.ConfigResponse, error) {
	return getJSON[types.ConfigResponse](c, "/config", "config")
}

func (c *Client) SetTelegram(creds config.Credentials) (string, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	ret, err := c.Put("/telegram", string(payload))
	return unquote(ret), err
}

func (c *Client) ClearTelegram() (string, error) {
	ret, err := c.Delete("/telegram")
	return unquote(ret), err
}

func (c *Client) GetBattery() (*types.BatteryStatus, error) {
	return getJSON[types.BatteryStatus](c, "/battery", "battery status")
}

func (c *Client) GetBand() (*threshold.Band, error) {
	return getJSON[threshold.Band](c, "/band", "alert band")
}

// GetHistory returns recent cycle reports. A non-empty since (e.g. "1h")
// limits them to that window.
func (c *Client) GetHistory(since string) ([]monitor.CycleReport, error) {
	path := "/history"
	if since != "" {
		path += "?since=" + url.QueryEscape(since)
	}
	ret, err := getJSON[[]monitor.CycleReport](c, path, "history")
	if err != nil {
		return nil, err
	}
	return *ret, nil
}

// GetLastCycle returns the most recent cycle report. It returns ErrNotFound
// before the first check.
func (c *Client) GetLastCycle() (*monitor.CycleReport, error) {
	return getJSON[monitor.CycleReport](c, "/history/last", "last check")
}

func (c *Client) GetJobs() ([]scheduler.JobInfo, error) {
	ret, err := getJSON[[]scheduler.JobInfo](c, "/jobs", "jobs")
	if err != nil {
		return nil, err
	}
	return *ret, nil
}

func (c *Client) GetJob(name string) (*scheduler.JobInfo, error) {
	return getJSON[scheduler.JobInfo](c, "/jobs/"+url.PathEscape(name), "job "+name)
}

// CancelJob stops the periodic job called name.
func (c *Client) CancelJob(name string) (string, error) {
	ret, err := c.Delete("/jobs/" + url.PathEscape(name))
	return unquote(ret), err
}

// SkipJob postpones the next run of the job called name by one interval.
func (c *Client) SkipJob(name string) (*scheduler.JobInfo, error) {
	ret, err := c.Post("/jobs/"+url.PathEscape(name)+"/skip", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to skip job %s", name)
	}

	var info scheduler.JobInfo
	if err := json.Unmarshal([]byte(ret), &info); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal job")
	}
	return &info, nil
}

// Check asks the daemon to run one battery check now.
func (c *Client) Check() (*monitor.CycleReport, error) {
	ret, err := c.Post("/check", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to run check")
	}

	var report monitor.CycleReport
	if err := json.Unmarshal([]byte(ret), &report); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal cycle report")
	}
	return &report, nil
}

// Test plays the alert sound and sends a test message with creds. With save
// the daemon also stores creds.
func (c *Client) Test(creds config.Credentials, save bool) (*monitor.TestResult, error) {
	payload, err := json.Marshal(types.TestRequest{Token: creds.Token, ChatID: creds.ChatID, Save: save})
	if err != nil {
		return nil, err
	}

	ret, err := c.Post("/test", string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to run test")
	}

	var res monitor.TestResult
	if err := json.Unmarshal([]byte(ret), &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal test result")
	}
	return &res, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return unquote(ret), nil
}
