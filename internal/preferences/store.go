package preferences

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

type visitorContextKey struct{}

// ErrNoVisitor is returned when the request context carries no visitor id.
var ErrNoVisitor = eris.New("no visitor on request context")

// WithVisitorID attaches the visitor id to ctx.
func WithVisitorID(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorContextKey{}, visitorID)
}

// VisitorIDFromContext returns the visitor id attached to ctx, if any.
func VisitorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(visitorContextKey{}).(string); ok {
		return value
	}
	return ""
}

// Update describes a partial change to a visitor's preferences. Nil fields are left as they are.
type Update struct {
	FlavorID *string
	APIKey   *string
}

// Store reads and writes the preferences of the visitor bound to a request context.
type Store struct {
	repo   Repository
	logger *logrus.Logger
}

// NewStore wraps repo with request-context accessors.
func NewStore(repo Repository, logger *logrus.Logger) (*Store, error) {
	if repo == nil {
		return nil, eris.New("preferences repository is required")
	}
	return &Store{repo: repo, logger: logger}, nil
}

// Current returns the visitor's stored preference, or an empty one when nothing is stored yet.
func (s *Store) Current(ctx context.Context) (*Preference, error) {
	visitorID := VisitorIDFromContext(ctx)
	if visitorID == "" {
		return nil, ErrNoVisitor
	}

	preference, err := s.repo.Get(ctx, visitorID)
	if err != nil {
		return nil, eris.Wrap(err, "loading visitor preference")
	}
	if preference == nil {
		preference = &Preference{VisitorID: visitorID}
	}
	return preference, nil
}

// Apply merges update into the visitor's preference and persists it.
func (s *Store) Apply(ctx context.Context, update Update) (*Preference, error) {
	preference, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	if update.FlavorID != nil {
		preference.FlavorID = strings.ToLower(strings.TrimSpace(*update.FlavorID))
	}
	if update.APIKey != nil {
		preference.APIKey = strings.TrimSpace(*update.APIKey)
	}

	if err := s.repo.Save(ctx, preference); err != nil {
		return nil, eris.Wrap(err, "saving visitor preference")
	}
	return preference, nil
}

// FlavorFor returns the visitor's stored flavor id, or the empty string.
func (s *Store) FlavorFor(ctx context.Context) string {
	preference := s.lookup(ctx)
	if preference == nil {
		return ""
	}
	return preference.FlavorID
}

// CredentialFor returns the visitor's stored API key, or the empty string.
func (s *Store) CredentialFor(ctx context.Context) string {
	preference := s.lookup(ctx)
	if preference == nil {
		return ""
	}
	return preference.APIKey
}

// Credential lets the store act as a page credential source.
func (s *Store) Credential(ctx context.Context) string {
	return s.CredentialFor(ctx)
}

func (s *Store) lookup(ctx context.Context) *Preference {
	visitorID := VisitorIDFromContext(ctx)
	if visitorID == "" {
		return nil
	}

	preference, err := s.repo.Get(ctx, visitorID)
	if err != nil {
		if s.logger != nil {
			s.logger.WithField("error", err.Error()).WithField("visitor_id", visitorID).Warn("reading visitor preference failed")
		}
		return nil
	}
	return preference
}
