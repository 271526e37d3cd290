package config

import "strings"

// Keys understood by Provider.
const (
	KeyTelegramToken  = "telegram_token"
	KeyTelegramChatID = "telegram_chat_id"
)

// Provider is a small key-value store for user-entered values such as the
// Telegram credentials. Reads and writes may happen concurrently.
type Provider interface {
	// GetString returns the value for key, or "" if it is not set.
	GetString(key string) string
	// SetString sets the value for key. An empty value removes it.
	SetString(key, value string)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}

// Credentials are the values needed to post to a Telegram chat.
type Credentials struct {
	Token  string `json:"token"`
	ChatID string `json:"chatId"`
}

// Complete reports whether both token and chat id are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.ChatID) != ""
}

// Masked returns a copy with most of the token hidden, for logs and API output.
func (c Credentials) Masked() Credentials {
	return Credentials{Token: MaskToken(c.Token), ChatID: c.ChatID}
}

// CredentialsFrom reads the Telegram credentials from p.
func CredentialsFrom(p Provider) Credentials {
	if p == nil {
		return Credentials{}
	}
	return Credentials{
		Token:  p.GetString(KeyTelegramToken),
		ChatID: p.GetString(KeyTelegramChatID),
	}
}

// MaskToken keeps the bot id part of a token and hides the secret.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if i := strings.IndexByte(token, ':'); i >= 0 {
		return token[:i+1] + "****"
	}
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
