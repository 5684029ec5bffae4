package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanmellermagic/Sensus-API/internal/birthday"
	"github.com/jordanmellermagic/Sensus-API/internal/domain"
)

// The suite runs against every embeddable backend; Postgres is covered by the
// same SQL shapes but needs a live server, so it is exercised in deployment.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sqliteStore, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqliteStore,
	}
}

func TestEnsureUserCreatesLazily(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetUser(ctx, "alice")
			assert.ErrorIs(t, err, ErrNotFound)

			u, err := s.EnsureUser(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "alice", u.ID)
			assert.False(t, u.CreatedAt.IsZero())

			again, err := s.EnsureUser(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, u.CreatedAt.Unix(), again.CreatedAt.Unix())
		})
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u, err := s.EnsureUser(ctx, "alice")
			require.NoError(t, err)

			now := time.Now().UTC().Truncate(time.Second)
			u.Data.FirstName = "Alice"
			u.Data.Birthday = &birthday.Value{Year: 1990, Month: 6, Day: 2}
			u.Note.Name = "groceries"
			u.Note.Body = "milk"
			u.Screen.Screenshot = "alice/abc.png"
			u.Command.Text = "reboot"
			u.Note.UpdatedAt = now
			u.UpdatedAt = now
			require.NoError(t, s.SaveUser(ctx, u))

			got, err := s.GetUser(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "Alice", got.Data.FirstName)
			require.NotNil(t, got.Data.Birthday)
			assert.Equal(t, 1990, got.Data.Birthday.Year)
			assert.Equal(t, 6, got.Data.Birthday.Month)
			assert.Equal(t, "groceries", got.Note.Name)
			assert.Equal(t, "alice/abc.png", got.Screen.Screenshot)
			assert.Equal(t, "reboot", got.Command.Text)
			assert.Equal(t, now.Unix(), got.Note.UpdatedAt.Unix())
		})
	}
}

func TestBirthdayNullVariants(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u, err := s.EnsureUser(ctx, "alice")
			require.NoError(t, err)

			// Year unknown.
			u.Data.Birthday = &birthday.Value{Month: 3, Day: 15}
			require.NoError(t, s.SaveUser(ctx, u))
			got, err := s.GetUser(ctx, "alice")
			require.NoError(t, err)
			require.NotNil(t, got.Data.Birthday)
			assert.Equal(t, 0, got.Data.Birthday.Year)
			assert.Equal(t, 3, got.Data.Birthday.Month)

			// Cleared.
			u.Data.Birthday = nil
			require.NoError(t, s.SaveUser(ctx, u))
			got, err = s.GetUser(ctx, "alice")
			require.NoError(t, err)
			assert.Nil(t, got.Data.Birthday)
		})
	}
}

func TestDeleteUserCascades(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.EnsureUser(ctx, "alice")
			require.NoError(t, err)

			sub := &domain.Subscription{
				ID:        uuid.NewString(),
				UserID:    "alice",
				Endpoint:  "https://push.example/1",
				CreatedAt: time.Now().UTC(),
			}
			require.NoError(t, s.AddSubscription(ctx, sub))
			require.NoError(t, s.SetPreference(ctx, "alice", "note_name", false))

			require.NoError(t, s.DeleteUser(ctx, "alice"))
			assert.ErrorIs(t, s.DeleteUser(ctx, "alice"), ErrNotFound)

			_, err = s.GetUser(ctx, "alice")
			assert.ErrorIs(t, err, ErrNotFound)

			subs, err := s.ListSubscriptions(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, subs)
		})
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.EnsureUser(ctx, "alice")
			require.NoError(t, err)

			first := &domain.Subscription{
				ID: uuid.NewString(), UserID: "alice",
				Endpoint: "https://push.example/1", DeviceName: "phone",
				CreatedAt: time.Now().UTC().Add(-time.Minute),
			}
			second := &domain.Subscription{
				ID: uuid.NewString(), UserID: "alice",
				Endpoint: "https://push.example/2", DeviceName: "laptop",
				CreatedAt: time.Now().UTC(),
			}
			require.NoError(t, s.AddSubscription(ctx, first))
			require.NoError(t, s.AddSubscription(ctx, second))

			subs, err := s.ListSubscriptions(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, subs, 2)

			require.NoError(t, s.DeleteSubscription(ctx, "alice", first.ID))
			assert.ErrorIs(t, s.DeleteSubscription(ctx, "alice", first.ID), ErrNotFound)

			subs, err = s.ListSubscriptions(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, subs, 1)
			assert.Equal(t, "laptop", subs[0].DeviceName)
		})
	}
}

func TestPreferences(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.EnsureUser(ctx, "alice")
			require.NoError(t, err)

			prefs, err := s.Preferences(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, prefs) // nothing stored; callers treat missing as enabled

			require.NoError(t, s.SetPreference(ctx, "alice", "note_name", false))
			require.NoError(t, s.SetPreference(ctx, "alice", "note_name", true))
			require.NoError(t, s.SetPreference(ctx, "alice", "screenshot", false))

			prefs, err = s.Preferences(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, map[string]bool{"note_name": true, "screenshot": false}, prefs)
		})
	}
}

func TestPasswordStorage(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			assert.ErrorIs(t, s.SetPassword(ctx, "ghost", "x"), ErrNotFound)

			_, err := s.EnsureUser(ctx, "alice")
			require.NoError(t, err)

			hash, err := s.PasswordHash(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, hash)

			require.NoError(t, s.SetPassword(ctx, "alice", "$2a$10$abc"))
			hash, err = s.PasswordHash(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "$2a$10$abc", hash)
		})
	}
}

func TestNormalizeUserID(t *testing.T) {
	assert.Equal(t, "alice", NormalizeUserID("  alice "))
	assert.Equal(t, "", NormalizeUserID("   "))
}
