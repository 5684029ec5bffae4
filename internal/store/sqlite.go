package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/jordanmellermagic/Sensus-API/internal/domain"
)

// SQLiteStore implements Store on an embedded SQLite database, for
// single-binary deployments. Timestamps are stored as unix seconds.
type SQLiteStore struct{ db *sql.DB }

// OpenSQLite opens (or creates) the database at path, applies PRAGMAs, runs
// the embedded migrations and returns the store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, phone_number,
		       birth_year, birth_month, birth_day, address,
		       note_name, note_body, contact, url, screenshot, command,
		       data_updated_at, note_updated_at, screen_updated_at, command_updated_at,
		       created_at, updated_at
		FROM users
		WHERE id = ?`,
		userID,
	)
	u, err := scanUserUnix(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) EnsureUser(ctx context.Context, userID string) (*domain.User, error) {
	now := time.Now().UTC().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, created_at, updated_at,
			data_updated_at, note_updated_at, screen_updated_at, command_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		userID, now, now, now, now, now, now,
	)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func (s *SQLiteStore) SaveUser(ctx context.Context, u *domain.User) error {
	by, bm, bd := birthdayColumns(u.Data.Birthday)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, phone_number,
			birth_year, birth_month, birth_day, address,
			note_name, note_body, contact, url, screenshot, command,
			data_updated_at, note_updated_at, screen_updated_at, command_updated_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name         = excluded.first_name,
			last_name          = excluded.last_name,
			phone_number       = excluded.phone_number,
			birth_year         = excluded.birth_year,
			birth_month        = excluded.birth_month,
			birth_day          = excluded.birth_day,
			address            = excluded.address,
			note_name          = excluded.note_name,
			note_body          = excluded.note_body,
			contact            = excluded.contact,
			url                = excluded.url,
			screenshot         = excluded.screenshot,
			command            = excluded.command,
			data_updated_at    = excluded.data_updated_at,
			note_updated_at    = excluded.note_updated_at,
			screen_updated_at  = excluded.screen_updated_at,
			command_updated_at = excluded.command_updated_at,
			updated_at         = excluded.updated_at`,
		u.ID, u.Data.FirstName, u.Data.LastName, u.Data.PhoneNumber,
		by, bm, bd, u.Data.Address,
		u.Note.Name, u.Note.Body, u.Screen.Contact, u.Screen.URL,
		u.Screen.Screenshot, u.Command.Text,
		u.Data.UpdatedAt.UTC().Unix(), u.Note.UpdatedAt.UTC().Unix(),
		u.Screen.UpdatedAt.UTC().Unix(), u.Command.UpdatedAt.UTC().Unix(),
		u.CreatedAt.UTC().Unix(), u.UpdatedAt.UTC().Unix(),
	)
	return err
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetPassword(ctx context.Context, userID, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) PasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return hash, err
}

func (s *SQLiteStore) AddSubscription(ctx context.Context, sub *domain.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dhKey, sub.AuthKey,
		sub.DeviceName, sub.CreatedAt.UTC().Unix(),
	)
	return err
}

func (s *SQLiteStore) ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at
		FROM subscriptions
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var (
			sub     domain.Subscription
			created int64
		)
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.Endpoint,
			&sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &created,
		); err != nil {
			return nil, err
		}
		sub.CreatedAt = time.Unix(created, 0).UTC()
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) DeleteSubscription(ctx context.Context, userID, subID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE id = ? AND user_id = ?`, subID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Preferences(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, enabled FROM preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prefs := make(map[string]bool)
	for rows.Next() {
		var (
			channel string
			enabled int
		)
		if err := rows.Scan(&channel, &enabled); err != nil {
			return nil, err
		}
		prefs[channel] = enabled != 0
	}
	return prefs, rows.Err()
}

func (s *SQLiteStore) SetPreference(ctx context.Context, userID, channel string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, channel, enabled)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, channel) DO UPDATE SET enabled = excluded.enabled`,
		userID, channel, boolToInt(enabled),
	)
	return err
}

func scanUserUnix(row rowScanner) (*domain.User, error) {
	var (
		u                  domain.User
		by, bm, bd         sql.NullInt32
		dataUp, noteUp     int64
		screenUp, cmdUp    int64
		createdAt, updated int64
	)
	err := row.Scan(
		&u.ID, &u.Data.FirstName, &u.Data.LastName, &u.Data.PhoneNumber,
		&by, &bm, &bd, &u.Data.Address,
		&u.Note.Name, &u.Note.Body, &u.Screen.Contact, &u.Screen.URL,
		&u.Screen.Screenshot, &u.Command.Text,
		&dataUp, &noteUp, &screenUp, &cmdUp,
		&createdAt, &updated,
	)
	if err != nil {
		return nil, err
	}
	u.Data.Birthday = birthdayFromColumns(by, bm, bd)
	u.Data.UpdatedAt = time.Unix(dataUp, 0).UTC()
	u.Note.UpdatedAt = time.Unix(noteUp, 0).UTC()
	u.Screen.UpdatedAt = time.Unix(screenUp, 0).UTC()
	u.Command.UpdatedAt = time.Unix(cmdUp, 0).UTC()
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
