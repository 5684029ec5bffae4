package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jordanmellermagic/Sensus-API/internal/domain"
)

// ErrNotFound is returned when a referenced user or subscription does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary for user records, push subscriptions and
// per-channel notification preferences. Implementations serialize writes to a
// single record (single-statement upserts), which is what keeps the
// before/after snapshots used for change detection consistent.
type Store interface {
	// GetUser returns the record for userID or ErrNotFound.
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	// EnsureUser returns the record for userID, creating an empty one first
	// if it does not exist yet.
	EnsureUser(ctx context.Context, userID string) (*domain.User, error)
	// SaveUser upserts the whole record. Last write wins.
	SaveUser(ctx context.Context, u *domain.User) error
	// DeleteUser removes the record along with its subscriptions and
	// preferences. ErrNotFound when the record does not exist.
	DeleteUser(ctx context.Context, userID string) error

	SetPassword(ctx context.Context, userID, hash string) error
	// PasswordHash returns the stored bcrypt hash, which may be empty when
	// the user never registered a password.
	PasswordHash(ctx context.Context, userID string) (string, error)

	AddSubscription(ctx context.Context, sub *domain.Subscription) error
	ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error)
	DeleteSubscription(ctx context.Context, userID, subID string) error

	// Preferences returns the explicitly stored per-channel flags; channels
	// without a row default to enabled.
	Preferences(ctx context.Context, userID string) (map[string]bool, error)
	SetPreference(ctx context.Context, userID, channel string, enabled bool) error

	Close() error
}

// Open picks a backend from the DSN: postgres:// and postgresql:// URLs go to
// pgx, everything else is treated as a SQLite path (a sqlite:// prefix is
// stripped).
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	}
}

// NormalizeUserID trims the caller-supplied ID; IDs are otherwise opaque.
func NormalizeUserID(raw string) string {
	return strings.TrimSpace(raw)
}
