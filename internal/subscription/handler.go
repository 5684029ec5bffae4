package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jordanmellermagic/Sensus-API/internal/domain"
	"github.com/jordanmellermagic/Sensus-API/internal/notify"
	"github.com/jordanmellermagic/Sensus-API/internal/store"
)

type Handler struct {
	Store store.Store
	Log   *zap.Logger
}

func NewHandler(st store.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Store: st, Log: log}
}

// createRequest accepts both the flat shape and the nested keys object a
// browser's PushSubscription.toJSON() produces.
type createRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dhKey  string `json:"p256dh_key"`
	AuthKey    string `json:"auth_key"`
	DeviceName string `json:"device_name"`
	Keys       struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (h *Handler) Create(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		return fiber.NewError(fiber.StatusBadRequest, "endpoint required")
	}
	p256dh := req.P256dhKey
	auth := req.AuthKey
	if p256dh == "" {
		p256dh = req.Keys.P256dh
	}
	if auth == "" {
		auth = req.Keys.Auth
	}

	ctx := userContext(c)
	if _, err := h.Store.EnsureUser(ctx, uid); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	sub := &domain.Subscription{
		ID:         uuid.NewString(),
		UserID:     uid,
		Endpoint:   endpoint,
		P256dhKey:  p256dh,
		AuthKey:    auth,
		DeviceName: strings.TrimSpace(req.DeviceName),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Store.AddSubscription(ctx, sub); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to register subscription")
	}

	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (h *Handler) List(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}

	subs, err := h.Store.ListSubscriptions(userContext(c), uid)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list subscriptions")
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	return c.JSON(subs)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}
	subID := strings.TrimSpace(c.Params("id"))
	if subID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "subscription id required")
	}

	err = h.Store.DeleteSubscription(userContext(c), uid, subID)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "subscription not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete subscription")
	}
	return c.JSON(fiber.Map{"ok": true})
}

// GetPreferences returns every channel with its effective flag; channels
// without a stored row report their default (enabled).
func (h *Handler) GetPreferences(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}

	stored, err := h.Store.Preferences(userContext(c), uid)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load preferences")
	}

	out := make(map[string]bool, len(notify.Channels()))
	for _, ch := range notify.Channels() {
		enabled, ok := stored[string(ch)]
		out[string(ch)] = !ok || enabled
	}
	return c.JSON(out)
}

// SetPreferences accepts a partial channel→bool map; unknown channel names
// reject the whole request.
func (h *Handler) SetPreferences(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}

	var req map[string]bool
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if len(req) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no preferences given")
	}
	for name := range req {
		if !notify.ValidChannel(name) {
			return fiber.NewError(fiber.StatusBadRequest, "unknown channel: "+name)
		}
	}

	ctx := userContext(c)
	if _, err := h.Store.EnsureUser(ctx, uid); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}
	for name, enabled := range req {
		if err := h.Store.SetPreference(ctx, uid, name, enabled); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save preferences")
		}
	}

	return h.GetPreferences(c)
}

func ownedUserID(c *fiber.Ctx) (string, error) {
	uid := store.NormalizeUserID(c.Params("user_id"))
	if uid == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "user_id required")
	}
	if admin, ok := c.Locals("admin").(bool); ok && admin {
		return uid, nil
	}
	if v, ok := c.Locals("user_id").(string); ok && v == uid {
		return uid, nil
	}
	return "", fiber.NewError(fiber.StatusForbidden, "not your record")
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
