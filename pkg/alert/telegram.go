package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/charlie0129/battnotify/pkg/config"
)

const DefaultTelegramBaseURL = "https://api.telegram.org"

// CredentialsFunc returns the Telegram credentials to use for one send.
// It is called on every send, so saved changes take effect immediately.
type CredentialsFunc func() config.Credentials

// StaticCredentials always returns c.
func StaticCredentials(c config.Credentials) CredentialsFunc {
	return func() config.Credentials { return c }
}

// ProviderCredentials reads the credentials from p on every call.
func ProviderCredentials(p config.Provider) CredentialsFunc {
	return func() config.Credentials { return config.CredentialsFrom(p) }
}

// TelegramOptions configure a Telegram channel.
type TelegramOptions struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// RatePerSecond limits requests to the bot API. 0 means unlimited.
	RatePerSecond float64
}

// Telegram sends messages to a chat through the Telegram bot API.
// It is disabled, not failing, when token or chat id is missing.
type Telegram struct {
	creds   CredentialsFunc
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

var (
	_ Channel = &Telegram{}
	_ Enabler = &Telegram{}
)

func NewTelegram(creds CredentialsFunc, opts TelegramOptions) *Telegram {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultTelegramBaseURL
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	return &Telegram{
		creds:   creds,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client: &http.Client{
			// Upper bound for the whole exchange, including reading the body.
			Timeout: opts.ConnectTimeout + opts.ReadTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: opts.ConnectTimeout,
				}).DialContext,
				TLSHandshakeTimeout:   opts.ConnectTimeout,
				ResponseHeaderTimeout: opts.ReadTimeout,
			},
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Enabled() bool { return t.credentials().Complete() }

func (t *Telegram) Deliver(ctx context.Context, ev Event) error {
	return t.Send(ctx, ev.Message)
}

func (t *Telegram) credentials() config.Credentials {
	if t.creds == nil {
		return config.Credentials{}
	}
	c := t.creds()
	c.Token = strings.TrimSpace(c.Token)
	c.ChatID = strings.TrimSpace(c.ChatID)
	return c
}

// MessageURL returns the sendMessage URL for message.
func (t *Telegram) MessageURL(c config.Credentials, message string) string {
	return fmt.Sprintf("%s/bot%s/sendMessage?chat_id=%s&text=%s",
		t.baseURL, c.Token, c.ChatID, url.QueryEscape(message))
}

// Send posts message to the configured chat. It returns nil without any
// network call when the channel is disabled. It does not retry.
func (t *Telegram) Send(ctx context.Context, message string) error {
	c := t.credentials()
	if !c.Complete() {
		logrus.Debug("telegram credentials not set, skipping message")
		return nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return t.deliveryError(0, fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.MessageURL(c, message), nil)
	if err != nil {
		return t.deliveryError(0, fmt.Errorf("create request: %w", redactURLError(err)))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return t.deliveryError(0, fmt.Errorf("send message: %w", redactURLError(err)))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return t.deliveryError(resp.StatusCode, fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(b))))
	}

	// The body is not used, but draining it lets the connection be reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return t.deliveryError(0, fmt.Errorf("read response body: %w", err))
	}

	logrus.WithField("chatID", c.ChatID).Debug("telegram message sent")
	return nil
}

func (t *Telegram) deliveryError(status int, err error) error {
	return &ChannelError{Channel: t.Name(), Kind: KindDelivery, StatusCode: status, Err: err}
}

// redactURLError drops the request URL, which contains the bot token.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return fmt.Errorf("%s: timeout: %w", ue.Op, ue.Err)
		}
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
