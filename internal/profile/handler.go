package profile

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jordanmellermagic/Sensus-API/internal/birthday"
	"github.com/jordanmellermagic/Sensus-API/internal/blob"
	"github.com/jordanmellermagic/Sensus-API/internal/domain"
	"github.com/jordanmellermagic/Sensus-API/internal/notify"
	"github.com/jordanmellermagic/Sensus-API/internal/store"
)

type Handler struct {
	Store    store.Store
	Blobs    *blob.Store
	Notifier *notify.Notifier
	Log      *zap.Logger

	// NotifySync makes dispatch run inline instead of on a detached
	// goroutine. Tests set it; production leaves pushes off the request path.
	NotifySync bool
}

func NewHandler(st store.Store, blobs *blob.Store, notifier *notify.Notifier, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Store: st, Blobs: blobs, Notifier: notifier, Log: log}
}

// patchRequest covers every patchable field across all peeks. nil means "not
// touched"; an explicit empty string clears. The peek endpoints only honor
// the fields belonging to the addressed peek.
type patchRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Birthday    *string `json:"birthday"`
	Address     *string `json:"address"`

	NoteName *string `json:"note_name"`
	NoteBody *string `json:"note_body"`

	Contact          *string `json:"contact"`
	URL              *string `json:"url"`
	ScreenshotBase64 *string `json:"screenshot_base64"`

	Command *string `json:"command"`
}

func (r *patchRequest) restrictToPeek(peek string) {
	keep := *r
	*r = patchRequest{}
	switch peek {
	case domain.PeekData:
		r.FirstName, r.LastName = keep.FirstName, keep.LastName
		r.PhoneNumber, r.Birthday, r.Address = keep.PhoneNumber, keep.Birthday, keep.Address
	case domain.PeekNote:
		r.NoteName, r.NoteBody = keep.NoteName, keep.NoteBody
	case domain.PeekScreen:
		r.Contact, r.URL, r.ScreenshotBase64 = keep.Contact, keep.URL, keep.ScreenshotBase64
	case domain.PeekCommand:
		r.Command = keep.Command
	}
}

// GetUser returns the whole record; 404 when it does not exist.
func (h *Handler) GetUser(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}

	u, err := h.Store.GetUser(userContext(c), uid)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}
	return c.JSON(u)
}

// SetUser applies a patch across any fields, creating the record lazily on
// first reference.
func (h *Handler) SetUser(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}

	var req patchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	return h.applyPatch(c, uid, req)
}

// PatchPeek applies a partial update to one peek; fields belonging to other
// peeks are ignored.
func (h *Handler) PatchPeek(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}
	peek, err := peekParam(c)
	if err != nil {
		return err
	}

	var req patchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.restrictToPeek(peek)
	return h.applyPatch(c, uid, req)
}

func (h *Handler) applyPatch(c *fiber.Ctx, uid string, req patchRequest) error {
	ctx := userContext(c)

	u, err := h.Store.EnsureUser(ctx, uid)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	patch := domain.Patch{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		NoteName:    req.NoteName,
		NoteBody:    req.NoteBody,
		Contact:     req.Contact,
		URL:         req.URL,
		Command:     req.Command,
	}

	// A malformed birthday rejects the whole patch; the record stays as it was.
	if req.Birthday != nil {
		v, err := birthday.Parse(*req.Birthday)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid birthday: "+strings.TrimSpace(*req.Birthday))
		}
		if v.YearOnly() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid birthday: month and day required")
		}
		patch.Birthday = v
		patch.BirthdaySet = true
	}

	oldHandle := u.Screen.Screenshot
	if req.ScreenshotBase64 != nil {
		handle, err := h.saveScreenshot(uid, *req.ScreenshotBase64)
		if err != nil {
			return err
		}
		patch.Screenshot = &handle
	}

	// An empty patch assigns nothing: skip the write and never notify.
	if patch.IsZero() {
		return c.JSON(u)
	}

	before := notify.SnapshotOf(u)
	touched := touchedChannels(patch)

	u.Apply(patch, time.Now().UTC())
	if err := h.Store.SaveUser(ctx, u); err != nil {
		// Roll back the just-written blob so it does not leak.
		if patch.Screenshot != nil && *patch.Screenshot != "" {
			_ = h.Blobs.Delete(*patch.Screenshot)
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save user")
	}

	if patch.Screenshot != nil && oldHandle != "" && oldHandle != *patch.Screenshot {
		if err := h.Blobs.Delete(oldHandle); err != nil {
			h.Log.Warn("failed to delete replaced screenshot",
				zap.String("user_id", uid), zap.String("handle", oldHandle), zap.Error(err))
		}
	}

	h.dispatch(uid, before, notify.SnapshotOf(u), touched)
	return c.JSON(u)
}

func (h *Handler) saveScreenshot(uid, encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", nil // explicit clear
	}
	// Browsers tend to send data URLs; strip the prefix when present.
	if i := strings.Index(encoded, ","); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "screenshot_base64 is not valid base64")
	}
	handle, err := h.Blobs.Save(uid, content)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "failed to store screenshot")
	}
	return handle, nil
}

// GetPeek returns one field group.
func (h *Handler) GetPeek(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}
	peek, err := peekParam(c)
	if err != nil {
		return err
	}

	u, err := h.Store.GetUser(userContext(c), uid)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	switch peek {
	case domain.PeekData:
		return c.JSON(u.Data)
	case domain.PeekNote:
		return c.JSON(u.Note)
	case domain.PeekScreen:
		return c.JSON(u.Screen)
	default:
		return c.JSON(u.Command)
	}
}

// ClearPeek wipes all fields of one peek. Fields that were already empty do
// not count as changed, so a clear of an empty group never notifies.
func (h *Handler) ClearPeek(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}
	peek, err := peekParam(c)
	if err != nil {
		return err
	}

	ctx := userContext(c)
	u, err := h.Store.GetUser(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	before := notify.SnapshotOf(u)
	oldHandle := u.Screen.Screenshot

	u.ClearPeek(peek, time.Now().UTC())
	if err := h.Store.SaveUser(ctx, u); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save user")
	}

	if peek == domain.PeekScreen && oldHandle != "" {
		if err := h.Blobs.Delete(oldHandle); err != nil {
			h.Log.Warn("failed to delete cleared screenshot",
				zap.String("user_id", uid), zap.String("handle", oldHandle), zap.Error(err))
		}
	}

	var touched []notify.Channel
	switch peek {
	case domain.PeekNote:
		touched = []notify.Channel{notify.ChannelNoteName, notify.ChannelNoteBody}
	case domain.PeekScreen:
		touched = []notify.Channel{notify.ChannelScreenshot}
	}
	h.dispatch(uid, before, notify.SnapshotOf(u), touched)

	return c.JSON(fiber.Map{"ok": true, "peek": peek})
}

// DeleteUser removes the record and releases its screenshot blob.
func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}

	ctx := userContext(c)
	u, err := h.Store.GetUser(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	if err := h.Store.DeleteUser(ctx, uid); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete user")
	}
	if u.Screen.Screenshot != "" {
		if err := h.Blobs.Delete(u.Screen.Screenshot); err != nil {
			h.Log.Warn("failed to delete screenshot",
				zap.String("user_id", uid), zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{"ok": true, "user_id": uid})
}

// CreateUser is the admin-style explicit creation call.
func (h *Handler) CreateUser(c *fiber.Ctx) error {
	uid := store.NormalizeUserID(c.Params("user_id"))
	if uid == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id required")
	}
	u, err := h.Store.EnsureUser(userContext(c), uid)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create user")
	}
	return c.Status(fiber.StatusCreated).JSON(u)
}

// GetBirthday renders the stored birthday for display. days_alive is included
// when the full date is known.
func (h *Handler) GetBirthday(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}

	u, err := h.Store.GetUser(userContext(c), uid)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	resp := fiber.Map{"birthday": birthday.Format(u.Data.Birthday)}
	if b := u.Data.Birthday; b != nil && b.Year != 0 && b.Month != 0 {
		born := time.Date(b.Year, time.Month(b.Month), b.Day, 0, 0, 0, 0, time.UTC)
		resp["days_alive"] = int(time.Since(born).Hours() / 24)
	}
	return c.JSON(resp)
}

// GetScreenshot serves the stored blob.
func (h *Handler) GetScreenshot(c *fiber.Ctx) error {
	uid, err := ownedUserID(c)
	if err != nil {
		return err
	}

	u, err := h.Store.GetUser(userContext(c), uid)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}
	if u.Screen.Screenshot == "" {
		return fiber.NewError(fiber.StatusNotFound, "no screenshot")
	}

	content, err := h.Blobs.Open(u.Screen.Screenshot)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "screenshot missing")
	}
	c.Type("png")
	return c.Send(content)
}

// dispatch fans the change out to the user's subscriptions. It never affects
// the response: the record update is the source of truth and push is
// best-effort.
func (h *Handler) dispatch(uid string, before, after notify.Snapshot, touched []notify.Channel) {
	if h.Notifier == nil || len(touched) == 0 {
		return
	}

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		subs, err := h.Store.ListSubscriptions(ctx, uid)
		if err != nil {
			h.Log.Warn("failed to list subscriptions", zap.String("user_id", uid), zap.Error(err))
			return
		}
		prefs, err := h.Store.Preferences(ctx, uid)
		if err != nil {
			h.Log.Warn("failed to load preferences", zap.String("user_id", uid), zap.Error(err))
			return
		}

		enabled := make(map[notify.Channel]bool, len(prefs))
		for name, on := range prefs {
			enabled[notify.Channel(name)] = on
		}
		h.Notifier.Notify(ctx, notify.Target{Enabled: enabled, Subscriptions: subs},
			before, after, touched)
	}

	if h.NotifySync {
		run()
		return
	}
	go run()
}

func touchedChannels(p domain.Patch) []notify.Channel {
	var touched []notify.Channel
	if p.NoteName != nil {
		touched = append(touched, notify.ChannelNoteName)
	}
	if p.NoteBody != nil {
		touched = append(touched, notify.ChannelNoteBody)
	}
	if p.Screenshot != nil {
		touched = append(touched, notify.ChannelScreenshot)
	}
	return touched
}

func peekParam(c *fiber.Ctx) (string, error) {
	peek := strings.ToLower(strings.TrimSpace(c.Params("peek")))
	for _, known := range domain.Peeks() {
		if peek == known {
			return peek, nil
		}
	}
	return "", fiber.NewError(fiber.StatusBadRequest, "unknown peek: "+peek)
}

// ownedUserID resolves the :user_id path param and checks the caller may act
// on it: either the JWT subject matches or the request was admitted with the
// admin API key.
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
