package preferences

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists visitor preferences.
type Repository interface {
	Get(ctx context.Context, visitorID string) (*Preference, error)
	Save(ctx context.Context, preference *Preference) error
}

// GormRepository stores preferences using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ Repository = (*GormRepository)(nil)

// NewRepository constructs a Gorm-backed repository.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

// Get returns the preference row for visitorID, or nil when the visitor has none.
func (r *GormRepository) Get(ctx context.Context, visitorID string) (*Preference, error) {
	trimmed := strings.TrimSpace(visitorID)
	if trimmed == "" {
		return nil, eris.New("visitor id is required")
	}

	var preference Preference
	err := r.db.WithContext(ctx).First(&preference, "visitor_id = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"visitor_id": trimmed}, err, "fetching preference")
		return nil, eris.Wrapf(err, "fetching preference for visitor %s", trimmed)
	}

	return &preference, nil
}

// Save inserts the preference or updates the existing row for the same visitor.
func (r *GormRepository) Save(ctx context.Context, preference *Preference) error {
	if preference == nil {
		return eris.New("preference is nil")
	}

	preference.VisitorID = strings.TrimSpace(preference.VisitorID)
	if preference.VisitorID == "" {
		return eris.New("preference visitor id is required")
	}

	db := r.db.WithContext(ctx)

	var err error
	if preference.ID != 0 {
		err = db.Save(preference).Error
	} else {
		err = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "visitor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"flavor_id", "api_key", "updated_at"}),
		}).Create(preference).Error
	}
	if err != nil {
		r.logError(logrus.Fields{"visitor_id": preference.VisitorID}, err, "saving preference")
		return eris.Wrapf(err, "saving preference for visitor %s", preference.VisitorID)
	}

	return nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
