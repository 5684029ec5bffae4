package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jordanmellermagic/Sensus-API/internal/birthday"
	"github.com/jordanmellermagic/Sensus-API/internal/domain"
)

// PostgresStore implements Store on a pgx connection pool. The schema is
// applied out of band by cmd/migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const userColumns = `id, first_name, last_name, phone_number,
	birth_year, birth_month, birth_day, address,
	note_name, note_body, contact, url, screenshot, command,
	data_updated_at, note_updated_at, screen_updated_at, command_updated_at,
	created_at, updated_at`

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *PostgresStore) EnsureUser(ctx context.Context, userID string) (*domain.User, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, created_at, updated_at,
			data_updated_at, note_updated_at, screen_updated_at, command_updated_at)
		VALUES ($1, $2, $2, $2, $2, $2, $2)
		ON CONFLICT (id) DO NOTHING`,
		userID, now,
	)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func (s *PostgresStore) SaveUser(ctx context.Context, u *domain.User) error {
	by, bm, bd := birthdayColumns(u.Data.Birthday)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, phone_number,
			birth_year, birth_month, birth_day, address,
			note_name, note_body, contact, url, screenshot, command,
			data_updated_at, note_updated_at, screen_updated_at, command_updated_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
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
		u.Data.UpdatedAt, u.Note.UpdatedAt, u.Screen.UpdatedAt, u.Command.UpdatedAt,
		u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetPassword(ctx context.Context, userID, hash string) error {
	ct, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) PasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return hash, err
}

func (s *PostgresStore) AddSubscription(ctx context.Context, sub *domain.Subscription) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.DeviceName, sub.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.Endpoint,
			&sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt,
		); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStore) DeleteSubscription(ctx context.Context, userID, subID string) error {
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`, subID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Preferences(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT channel, enabled FROM preferences WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prefs := make(map[string]bool)
	for rows.Next() {
		var channel string
		var enabled bool
		if err := rows.Scan(&channel, &enabled); err != nil {
			return nil, err
		}
		prefs[channel] = enabled
	}
	return prefs, rows.Err()
}

func (s *PostgresStore) SetPreference(ctx context.Context, userID, channel string, enabled bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (user_id, channel, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, channel) DO UPDATE SET enabled = excluded.enabled`,
		userID, channel, enabled,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u          domain.User
		by, bm, bd sql.NullInt32
	)
	err := row.Scan(
		&u.ID, &u.Data.FirstName, &u.Data.LastName, &u.Data.PhoneNumber,
		&by, &bm, &bd, &u.Data.Address,
		&u.Note.Name, &u.Note.Body, &u.Screen.Contact, &u.Screen.URL,
		&u.Screen.Screenshot, &u.Command.Text,
		&u.Data.UpdatedAt, &u.Note.UpdatedAt, &u.Screen.UpdatedAt, &u.Command.UpdatedAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Data.Birthday = birthdayFromColumns(by, bm, bd)
	return &u, nil
}

// birthdayColumns splits a partial birthday into three nullable columns; a
// year-less value stores NULL for birth_year and a year-only value stores
// NULL for month and day.
func birthdayColumns(v *birthday.Value) (year, month, day sql.NullInt32) {
	if v == nil {
		return
	}
	if v.Year != 0 {
		year = sql.NullInt32{Int32: int32(v.Year), Valid: true}
	}
	if v.Month != 0 {
		month = sql.NullInt32{Int32: int32(v.Month), Valid: true}
		day = sql.NullInt32{Int32: int32(v.Day), Valid: true}
	}
	return
}

func birthdayFromColumns(year, month, day sql.NullInt32) *birthday.Value {
	if !year.Valid && !month.Valid {
		return nil
	}
	v := &birthday.Value{}
	if year.Valid {
		v.Year = int(year.Int32)
	}
	if month.Valid {
		v.Month = int(month.Int32)
		v.Day = int(day.Int32)
	}
	return v
}
