package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battnotify/pkg/utils/ptr"
)

var _ Provider = &File{}

// File is a Provider backed by a JSON file.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

// RawFileConfig is the on-disk layout of File.
type RawFileConfig struct {
	TelegramToken  *string `json:"telegram_token,omitempty"`
	TelegramChatID *string `json:"telegram_chat_id,omitempty"`
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (f *File) field(key string) **string {
	switch key {
	case KeyTelegramToken:
		return &f.c.TelegramToken
	case KeyTelegramChatID:
		return &f.c.TelegramChatID
	default:
		return nil
	}
}

func (f *File) GetString(key string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	p := f.field(key)
	if p == nil {
		logrus.WithField("key", key).Warn("unknown config key")
		return ""
	}
	return ptr.Deref(*p, "")
}

func (f *File) SetString(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.c == nil {
		panic("config is nil")
	}

	p := f.field(key)
	if p == nil {
		logrus.WithField("key", key).Warn("unknown config key")
		return
	}

	value = strings.TrimSpace(value)
	if value == "" {
		*p = nil
		return
	}
	*p = ptr.To(value)
}

// Credentials returns the Telegram credentials as one consistent snapshot.
func (f *File) Credentials() Credentials {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		panic("config is nil")
	}

	return Credentials{
		Token:  ptr.Deref(f.c.TelegramToken, ""),
		ChatID: ptr.Deref(f.c.TelegramChatID, ""),
	}
}

// SetCredentials replaces both Telegram values at once.
func (f *File) SetCredentials(c Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.c == nil {
		panic("config is nil")
	}

	f.c.TelegramToken = nil
	f.c.TelegramChatID = nil
	if t := strings.TrimSpace(c.Token); t != "" {
		f.c.TelegramToken = ptr.To(t)
	}
	if id := strings.TrimSpace(c.ChatID); id != "" {
		f.c.TelegramChatID = ptr.To(id)
	}
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file is an empty config. Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// json.Decoder cannot tell an empty file apart from a broken one.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	// Exclusive so two concurrent saves never interleave their writes.
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	// Credentials are secrets, keep the file private.
	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	c := f.Credentials()
	return logrus.Fields{
		"telegramToken":  MaskToken(c.Token),
		"telegramChatID": c.ChatID,
		"telegramReady":  c.Complete(),
	}
}
