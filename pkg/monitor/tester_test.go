package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battnotify/pkg/alert"
	"github.com/charlie0129/battnotify/pkg/config"
	"github.com/charlie0129/battnotify/pkg/events"
)

func TestTesterMissingCredentials(t *testing.T) {
	tester := NewTester(nil, alert.TelegramOptions{}, nil)

	for _, creds := range []config.Credentials{
		{},
		{Token: "123:abc"},
		{ChatID: "42"},
		{Token: "  ", ChatID: "42"},
	} {
		_, err := tester.Run(context.Background(), creds)
		assert.True(t, errors.Is(err, ErrMissingCredentials), "creds %+v", creds)
	}
}

func TestTesterSendsSoundAndMessage(t *testing.T) {
	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotChat = r.URL.Query().Get("chat_id")
		gotText = r.URL.Query().Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sound := &countingChannel{name: "sound"}
	hub := events.NewEventHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	tester := NewTester(sound, alert.TelegramOptions{BaseURL: srv.URL}, hub)
	res, err := tester.Run(context.Background(), config.Credentials{Token: "123:abc", ChatID: "42"})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "sound", res.Outcomes[0].Channel)
	assert.Equal(t, "telegram", res.Outcomes[1].Channel)
	assert.True(t, res.Outcomes[0].Success)
	assert.True(t, res.Outcomes[1].Success)
	assert.Equal(t, 1, sound.Calls())

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "42", gotChat)
	assert.Equal(t, TestMessage, gotText)

	select {
	case ev := <-sub:
		assert.Equal(t, events.TestCompleted, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("no test event published")
	}
}

func TestTesterReportsTelegramFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tester := NewTester(nil, alert.TelegramOptions{BaseURL: srv.URL}, nil)
	res, err := tester.Run(context.Background(), config.Credentials{Token: "123:abc", ChatID: "nope"})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 1)
	assert.False(t, res.Outcomes[0].Success)
	assert.Equal(t, alert.KindDelivery, res.Outcomes[0].Kind)
	assert.Contains(t, res.Outcomes[0].Error, "400")
}
