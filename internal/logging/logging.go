// Package logging provides structured logging setup for the bot.
package logging

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/config"
)

const (
	serviceName = "support-bot"
	redacted    = "[REDACTED]"
)

var baseLogger *logrus.Entry

// Fields is a shorthand alias for structured log fields.
type Fields = logrus.Fields

// Update identifies the Telegram update an entry belongs to. Zero values are
// left out of the entry.
type Update struct {
	ID     int64
	Kind   string
	UserID int64
	ChatID int64
}

// Fields returns the non-zero identifiers as log fields.
func (u Update) Fields() Fields {
	fields := Fields{}
	if u.ID != 0 {
		fields["update_id"] = u.ID
	}
	if u.Kind != "" {
		fields["kind"] = u.Kind
	}
	if u.UserID != 0 {
		fields["user_id"] = u.UserID
	}
	if u.ChatID != 0 {
		fields["chat_id"] = u.ChatID
	}
	return fields
}

// ForUpdate attaches the update identifiers to entry, or to the base logger
// when entry is nil.
func ForUpdate(entry *logrus.Entry, u Update) *logrus.Entry {
	if entry == nil {
		entry = ensureLogger()
	}
	return entry.WithFields(u.Fields())
}

// Setup configures the global logger using the provided runtime configuration.
// It applies environment-specific formatting, log level, default fields and
// scrubs the configured credentials from every entry.
func Setup(cfg config.Config) (*logrus.Entry, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(formatterForEnv(cfg.AppEnv))
	logger.AddHook(NewRedactHook(cfg.TelegramToken, cfg.SupabaseKey, cfg.WebhookSecret))

	baseLogger = logger.WithFields(logrus.Fields{
		"service": serviceName,
		"env":     cfg.AppEnv,
	})

	return baseLogger, nil
}

// Logger returns the configured base logger, initializing a default one if Setup
// has not been called (useful for early boot errors).
func Logger() *logrus.Entry {
	return ensureLogger()
}

// Info logs an informational message with optional structured fields.
func Info(msg string, fields logrus.Fields) {
	logWithFields(fields).Info(msg)
}

// Warn logs a warning message with optional structured fields.
func Warn(msg string, fields logrus.Fields) {
	logWithFields(fields).Warn(msg)
}

// Error logs an error message with optional structured fields.
func Error(msg string, fields logrus.Fields) {
	logWithFields(fields).Error(msg)
}

// RedactHook replaces known secrets in messages, errors and string fields.
// The Telegram SDK puts the bot token in request URLs, which then surface in
// transport errors.
type RedactHook struct {
	secrets []string
}

// NewRedactHook ignores empty secrets.
func NewRedactHook(secrets ...string) *RedactHook {
	h := &RedactHook{}
	for _, s := range secrets {
		if s = strings.TrimSpace(s); s != "" {
			h.secrets = append(h.secrets, s)
		}
	}
	return h
}

// Levels applies the hook to every level.
func (h *RedactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire scrubs the entry in place. logrus hands hooks a private copy of the
// field map, so the caller's entry is untouched.
func (h *RedactHook) Fire(entry *logrus.Entry) error {
	if len(h.secrets) == 0 {
		return nil
	}

	entry.Message = h.scrub(entry.Message)
	for key, value := range entry.Data {
		switch v := value.(type) {
		case string:
			entry.Data[key] = h.scrub(v)
		case error:
			if msg := v.Error(); h.scrub(msg) != msg {
				entry.Data[key] = errors.New(h.scrub(msg))
			}
		}
	}
	return nil
}

func (h *RedactHook) scrub(s string) string {
	for _, secret := range h.secrets {
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}

func logWithFields(fields logrus.Fields) *logrus.Entry {
	entry := ensureLogger()
	if len(fields) == 0 {
		return entry
	}

	return entry.WithFields(fields)
}

func ensureLogger() *logrus.Entry {
	if baseLogger != nil {
		return baseLogger
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(formatterForEnv(config.DefaultAppEnv))

	baseLogger = logger.WithFields(logrus.Fields{
		"service": serviceName,
		"env":     config.DefaultAppEnv,
	})

	return baseLogger
}

func formatterForEnv(appEnv string) logrus.Formatter {
	fieldMap := logrus.FieldMap{
		logrus.FieldKeyTime:  "ts",
		logrus.FieldKeyMsg:   "msg",
		logrus.FieldKeyLevel: "level",
	}

	if appEnv == config.EnvDevelopment {
		return &logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        time.RFC3339Nano,
			FieldMap:               fieldMap,
			DisableLevelTruncation: true,
		}
	}

	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap:        fieldMap,
	}
}

func parseLevel(value string) (logrus.Level, error) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", value, err)
	}

	return level, nil
}

// resetLogger clears the cached logger; used in tests.
func resetLogger() {
	baseLogger = nil
}
