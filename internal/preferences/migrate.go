package preferences

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate applies the preferences schema using Gorm's AutoMigrate.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "preferences.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying preferences schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Preference{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("preferences schema migration failed")
		}
		return eris.Wrap(err, "auto migrating preferences schema")
	}

	return nil
}
