package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battnotify/pkg/alert"
	"github.com/charlie0129/battnotify/pkg/battery"
	"github.com/charlie0129/battnotify/pkg/config"
	"github.com/charlie0129/battnotify/pkg/events"
	"github.com/charlie0129/battnotify/pkg/monitor"
	"github.com/charlie0129/battnotify/pkg/scheduler"
	"github.com/charlie0129/battnotify/pkg/types"
	"github.com/charlie0129/battnotify/pkg/version"
)

type fakeTelegramAPI struct {
	*httptest.Server

	mu    sync.Mutex
	texts []string
}

func newFakeTelegramAPI(t *testing.T) *fakeTelegramAPI {
	api := &fakeTelegramAPI{}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.texts = append(api.texts, r.URL.Query().Get("text"))
		api.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(api.Close)
	return api
}

func (a *fakeTelegramAPI) Texts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...)
}

type testEnv struct {
	server   *server
	router   *gin.Engine
	conf     *config.File
	confPath string
	telegram *fakeTelegramAPI
}

func newTestEnv(t *testing.T, level int) *testEnv {
	t.Helper()

	api := newFakeTelegramAPI(t)
	settings := &config.Settings{
		Monitor:  config.MonitorSettings{JobName: "battery_check_work", Interval: 15 * time.Minute},
		Alert:    config.AlertSettings{Lower: 1, Upper: 19, Message: "Battery is at %d%%"},
		Telegram: config.TelegramSettings{BaseURL: api.URL},
		History:  config.HistorySettings{Size: 10},
	}

	confPath := filepath.Join(t.TempDir(), "battnotify.json")
	conf, err := config.NewFile(confPath)
	require.NoError(t, err)

	reader := battery.ReaderFunc(func() (int, error) {
		if level == battery.Unknown {
			return battery.Unknown, battery.ErrUnavailable
		}
		return level, nil
	})
	channels := []alert.Channel{
		alert.NewTelegram(alert.ProviderCredentials(conf), telegramOptions(settings)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := newServer(ctx, conf, settings, reader, channels, nil)
	t.Cleanup(func() {
		s.registry.StopAll()
		cancel()
	})

	return &testEnv{
		server:   s,
		router:   s.setupRoutes(),
		conf:     conf,
		confPath: confPath,
		telegram: api,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetConfigMasksToken(t *testing.T) {
	env := newTestEnv(t, 50)
	env.conf.SetCredentials(config.Credentials{Token: "123456:SECRET", ChatID: "42"})

	w := env.do(t, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "SECRET")

	resp := decode[types.ConfigResponse](t, w)
	assert.Equal(t, "123456:****", resp.Telegram.Token)
	assert.Equal(t, "42", resp.Telegram.ChatID)
	assert.True(t, resp.TelegramConfigured)
	assert.Equal(t, 1, resp.Band.Lower)
	assert.Equal(t, 19, resp.Band.Upper)
	assert.Equal(t, "battery_check_work", resp.JobName)
	assert.Equal(t, 15*time.Minute, resp.Interval)
	assert.Equal(t, []string{"telegram"}, resp.Channels)
}

func TestSetTelegramSavesAndEnqueues(t *testing.T) {
	env := newTestEnv(t, 50)

	w := env.do(t, http.MethodPut, "/telegram", `{"token":" 123:abc ","chatId":"42"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	reloaded, err := config.NewFile(env.confPath)
	require.NoError(t, err)
	assert.Equal(t, config.Credentials{Token: "123:abc", ChatID: "42"}, reloaded.Credentials())

	jobs := decode[[]scheduler.JobInfo](t, env.do(t, http.MethodGet, "/jobs", ""))
	require.Len(t, jobs, 1)
	assert.Equal(t, "battery_check_work", jobs[0].Name)
	assert.Equal(t, 15*time.Minute, jobs[0].Interval)

	// Saving again keeps the existing job.
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, "/telegram", `{"token":"123:abc","chatId":"43"}`).Code)
	again := decode[[]scheduler.JobInfo](t, env.do(t, http.MethodGet, "/jobs", ""))
	require.Len(t, again, 1)
	assert.Equal(t, jobs[0].EnqueuedAt.UnixNano(), again[0].EnqueuedAt.UnixNano())
}

func TestSetTelegramRejectsIncomplete(t *testing.T) {
	env := newTestEnv(t, 50)

	for _, body := range []string{`{"token":"123:abc"}`, `{"chatId":"42"}`, `{}`, `not json`} {
		w := env.do(t, http.MethodPut, "/telegram", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.False(t, env.conf.Credentials().Complete())
}

func TestClearTelegram(t *testing.T) {
	env := newTestEnv(t, 50)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, "/telegram", `{"token":"123:abc","chatId":"42"}`).Code)

	w := env.do(t, http.MethodDelete, "/telegram", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.Credentials{}, env.conf.Credentials())
}

func TestGetBattery(t *testing.T) {
	low := decode[types.BatteryStatus](t, newTestEnv(t, 15).do(t, http.MethodGet, "/battery", ""))
	assert.True(t, low.Known)
	assert.True(t, low.Low)
	assert.Equal(t, 15, low.Percentage)
	assert.Equal(t, "15%", low.Label())

	ok := decode[types.BatteryStatus](t, newTestEnv(t, 80).do(t, http.MethodGet, "/battery", ""))
	assert.False(t, ok.Low)

	unknown := decode[types.BatteryStatus](t, newTestEnv(t, battery.Unknown).do(t, http.MethodGet, "/battery", ""))
	assert.False(t, unknown.Known)
	assert.False(t, unknown.Low)
	assert.Equal(t, battery.Unknown, unknown.Percentage)
	assert.Equal(t, "--%", unknown.Label())
	assert.NotEmpty(t, unknown.Error)
}

func TestGetBand(t *testing.T) {
	w := newTestEnv(t, 50).do(t, http.MethodGet, "/band", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"lower":1,"upper":19}`, w.Body.String())
}

func TestRunCheckAndHistory(t *testing.T) {
	env := newTestEnv(t, 12)
	env.conf.SetCredentials(config.Credentials{Token: "123:abc", ChatID: "42"})

	w := env.do(t, http.MethodPost, "/check", "")
	require.Equal(t, http.StatusOK, w.Code)

	report := decode[monitor.CycleReport](t, w)
	assert.Equal(t, 12, report.Percentage)
	assert.True(t, report.Decision)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Success)
	assert.Equal(t, []string{"Battery is at 12%"}, env.telegram.Texts())

	history := decode[[]monitor.CycleReport](t, env.do(t, http.MethodGet, "/history", ""))
	require.Len(t, history, 1)
	assert.Equal(t, report.ID, history[0].ID)

	recent := decode[[]monitor.CycleReport](t, env.do(t, http.MethodGet, "/history?since=1h", ""))
	assert.Len(t, recent, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/history?since=yesterday", "").Code)
}

func TestLastCycleAndLastAlert(t *testing.T) {
	env := newTestEnv(t, 12)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/history/last", "").Code)
	assert.Nil(t, decode[types.ConfigResponse](t, env.do(t, http.MethodGet, "/config", "")).LastAlertedAt)

	report := decode[monitor.CycleReport](t, env.do(t, http.MethodPost, "/check", ""))

	w := env.do(t, http.MethodGet, "/history/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.ID, decode[monitor.CycleReport](t, w).ID)

	resp := decode[types.ConfigResponse](t, env.do(t, http.MethodGet, "/config", ""))
	require.NotNil(t, resp.LastAlertedAt)
	assert.True(t, resp.LastAlertedAt.Equal(report.StartedAt))
}

func TestJobRoutes(t *testing.T) {
	env := newTestEnv(t, 50)
	_, err := env.server.enqueueCheck(scheduler.Keep)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/jobs/battery_check_work", "")
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[scheduler.JobInfo](t, w)
	assert.Equal(t, 15*time.Minute, info.Interval)

	w = env.do(t, http.MethodPost, "/jobs/battery_check_work/skip", "")
	require.Equal(t, http.StatusOK, w.Code)
	skipped := decode[scheduler.JobInfo](t, w)
	assert.True(t, info.NextRun.Add(15*time.Minute).Equal(skipped.NextRun), "next run %v, skipped %v", info.NextRun, skipped.NextRun)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/jobs/battery_check_work", "").Code)
	assert.Empty(t, env.server.registry.Jobs())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/jobs/battery_check_work", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/jobs/battery_check_work", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/jobs/battery_check_work/skip", "").Code)
}

func TestRunCheckWithoutCredentialsSkipsTelegram(t *testing.T) {
	env := newTestEnv(t, 12)

	report := decode[monitor.CycleReport](t, env.do(t, http.MethodPost, "/check", ""))
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Skipped)
	assert.Empty(t, env.telegram.Texts())
}

func TestRunTest(t *testing.T) {
	env := newTestEnv(t, 50)

	w := env.do(t, http.MethodPost, "/test", `{"token":"123:abc","chatId":"42"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[monitor.TestResult](t, w)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].Success)
	assert.Equal(t, []string{monitor.TestMessage}, env.telegram.Texts())

	// Not saved, so nothing is persisted and no job is enqueued.
	assert.False(t, env.conf.Credentials().Complete())
	assert.Empty(t, env.server.registry.Jobs())
}

func TestRunTestSave(t *testing.T) {
	env := newTestEnv(t, 50)

	w := env.do(t, http.MethodPost, "/test", `{"token":"123:abc","chatId":"42","save":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	reloaded, err := config.NewFile(env.confPath)
	require.NoError(t, err)
	assert.Equal(t, "42", reloaded.Credentials().ChatID)
	assert.Len(t, env.server.registry.Jobs(), 1)
}

func TestRunTestMissingCredentials(t *testing.T) {
	env := newTestEnv(t, 50)

	w := env.do(t, http.MethodPost, "/test", `{"token":"","chatId":"42","save":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), monitor.ErrMissingCredentials.Error())
	assert.Empty(t, env.telegram.Texts())
	assert.Empty(t, env.server.registry.Jobs())
}

func TestGetVersion(t *testing.T) {
	w := newTestEnv(t, 50).do(t, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"`+version.Version+`"`, w.Body.String())
}

func TestStreamEvents(t *testing.T) {
	env := newTestEnv(t, 50)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return env.server.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	env.server.hub.Publish(events.CredentialsChanged, events.CredentialsChangedEvent{Configured: true, Source: "test", Ts: 1})

	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed early, got %v", got)
			}
			if line != "" {
				got = append(got, line)
			}
		case <-timeout:
			t.Fatalf("timed out waiting for event, got %v", got)
		}
	}

	assert.Equal(t, "event:"+events.CredentialsChanged, got[0])
	assert.True(t, strings.HasPrefix(got[1], "data:"))
	assert.Contains(t, got[1], `"configured":true`)
}
