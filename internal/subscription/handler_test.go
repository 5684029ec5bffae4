package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jordanmellermagic/Sensus-API/internal/store"
)

func newApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemory()
	h := NewHandler(st, zap.NewNop())

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "alice")
		return c.Next()
	})
	user := app.Group("/api/user/:user_id")
	user.Post("/subscriptions", h.Create)
	user.Get("/subscriptions", h.List)
	user.Delete("/subscriptions/:id", h.Delete)
	user.Get("/preferences", h.GetPreferences)
	user.Put("/preferences", h.SetPreferences)
	return app, st
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, raw
}

func TestRegisterBrowserShapedSubscription(t *testing.T) {
	app, st := newApp(t)

	status, _ := doJSON(t, app, "POST", "/api/user/alice/subscriptions", fiber.Map{
		"endpoint":    "https://push.example/abc",
		"keys":        fiber.Map{"p256dh": "pk", "auth": "ak"},
		"device_name": "pixel",
	})
	require.Equal(t, fiber.StatusCreated, status)

	subs, err := st.ListSubscriptions(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "pk", subs[0].P256dhKey)
	assert.Equal(t, "ak", subs[0].AuthKey)
	assert.Equal(t, "pixel", subs[0].DeviceName)
	assert.NotEmpty(t, subs[0].ID)
}

func TestRegisterRequiresEndpoint(t *testing.T) {
	app, _ := newApp(t)

	status, _ := doJSON(t, app, "POST", "/api/user/alice/subscriptions",
		fiber.Map{"device_name": "pixel"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMultipleSubscriptionsPerUser(t *testing.T) {
	app, _ := newApp(t)

	doJSON(t, app, "POST", "/api/user/alice/subscriptions",
		fiber.Map{"endpoint": "https://push.example/1"})
	doJSON(t, app, "POST", "/api/user/alice/subscriptions",
		fiber.Map{"endpoint": "https://push.example/2"})

	status, raw := doJSON(t, app, "GET", "/api/user/alice/subscriptions", nil)
	require.Equal(t, fiber.StatusOK, status)

	var listed []map[string]any
	require.NoError(t, json.Unmarshal(raw, &listed))
	assert.Len(t, listed, 2)
}

func TestDeleteSubscription(t *testing.T) {
	app, st := newApp(t)

	doJSON(t, app, "POST", "/api/user/alice/subscriptions",
		fiber.Map{"endpoint": "https://push.example/1"})
	subs, err := st.ListSubscriptions(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	status, _ := doJSON(t, app, "DELETE", "/api/user/alice/subscriptions/"+subs[0].ID, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = doJSON(t, app, "DELETE", "/api/user/alice/subscriptions/"+subs[0].ID, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestPreferencesDefaultEnabled(t *testing.T) {
	app, _ := newApp(t)

	status, raw := doJSON(t, app, "GET", "/api/user/alice/preferences", nil)
	require.Equal(t, fiber.StatusOK, status)

	var prefs map[string]bool
	require.NoError(t, json.Unmarshal(raw, &prefs))
	assert.Equal(t, map[string]bool{
		"note_name":  true,
		"note_body":  true,
		"screenshot": true,
	}, prefs)
}

func TestSetPreferencesPartial(t *testing.T) {
	app, _ := newApp(t)

	status, raw := doJSON(t, app, "PUT", "/api/user/alice/preferences",
		map[string]bool{"screenshot": false})
	require.Equal(t, fiber.StatusOK, status)

	var prefs map[string]bool
	require.NoError(t, json.Unmarshal(raw, &prefs))
	assert.True(t, prefs["note_name"])
	assert.False(t, prefs["screenshot"])
}

func TestSetPreferencesUnknownChannel(t *testing.T) {
	app, _ := newApp(t)

	status, _ := doJSON(t, app, "PUT", "/api/user/alice/preferences",
		map[string]bool{"pigeon": true})
	assert.Equal(t, fiber.StatusBadRequest, status)
}
