package log

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const redacted = "[REDACTED]"

// NewLogger constructs a logrus logger configured with JSON output and the provided log level.
func NewLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.SetReportCaller(false)
	logger.SetLevel(logrus.InfoLevel)

	if level == "" {
		return logger, nil
	}

	parsedLevel, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, eris.Wrapf(err, "invalid log level: %s", level)
	}

	logger.SetLevel(parsedLevel)
	return logger, nil
}

// RedactionHook scrubs fixed secrets, such as the server-wide API key, from every entry.
type RedactionHook struct {
	secrets []string
}

// NewRedactionHook builds a hook for the non-empty secrets.
func NewRedactionHook(secrets ...string) *RedactionHook {
	hook := &RedactionHook{}
	for _, secret := range secrets {
		if trimmed := strings.TrimSpace(secret); trimmed != "" {
			hook.secrets = append(hook.secrets, trimmed)
		}
	}
	return hook
}

// Levels applies the hook to every level.
func (h *RedactionHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire replaces secrets in the message and in string fields.
func (h *RedactionHook) Fire(entry *logrus.Entry) error {
	if len(h.secrets) == 0 {
		return nil
	}

	entry.Message = h.scrub(entry.Message)
	for key, value := range entry.Data {
		switch v := value.(type) {
		case string:
			entry.Data[key] = h.scrub(v)
		case error:
			entry.Data[key] = h.scrub(v.Error())
		}
	}
	return nil
}

func (h *RedactionHook) scrub(text string) string {
	for _, secret := range h.secrets {
		text = strings.ReplaceAll(text, secret, redacted)
	}
	return text
}
