package db

import (
	"time"

	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// NewGormLogger routes gorm's warnings, errors and slow query reports to log. A missing row is
// the normal answer for a first-time visitor and is never reported. SQL is logged with
// placeholders so stored API keys never reach the log.
func NewGormLogger(log *logrus.Logger) gormlogger.Interface {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return gormlogger.New(gormWriter{entry: log.WithField("component", "gorm")}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})
}

type gormWriter struct {
	entry *logrus.Entry
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.entry.Warnf(format, args...)
}
