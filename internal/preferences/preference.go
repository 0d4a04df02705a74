package preferences

import "gorm.io/gorm"

// Preference holds the settings a visitor chose for generated pages.
type Preference struct {
	gorm.Model
	VisitorID string `gorm:"size:64;uniqueIndex:idx_preferences_visitor;not null"`
	FlavorID  string `gorm:"size:64"`
	APIKey    string `gorm:"size:256"`
}

// TableName defines the table name for the Preference model.
func (Preference) TableName() string {
	return "preferences"
}

// HasAPIKey reports whether the visitor stored their own credential.
func (p *Preference) HasAPIKey() bool {
	return p != nil && p.APIKey != ""
}
