package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jordanmellermagic/Sensus-API/internal/store"
)

type AuthHandler struct {
	Store  store.Store
	Secret []byte
}

type credentialsRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

func generateToken(userID string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// Register creates the record if needed and sets its password. Re-registering
// an ID that already has a password is rejected.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var body credentialsRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	uid := store.NormalizeUserID(body.UserID)
	if uid == "" || body.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id and password required")
	}

	ctx := userContext(c)
	if _, err := h.Store.EnsureUser(ctx, uid); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create user")
	}

	existing, err := h.Store.PasswordHash(ctx, uid)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create user")
	}
	if existing != "" {
		return fiber.NewError(fiber.StatusConflict, "user_id already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	if err := h.Store.SetPassword(ctx, uid, string(hashed)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create user")
	}

	token, err := generateToken(uid, h.Secret)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create token")
	}
	return c.Status(fiber.StatusCreated).JSON(authResponse{Token: token})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body credentialsRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	uid := store.NormalizeUserID(body.UserID)

	hash, err := h.Store.PasswordHash(userContext(c), uid)
	if errors.Is(err, store.ErrNotFound) || hash == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(body.Password)); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := generateToken(uid, h.Secret)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create token")
	}
	return c.JSON(authResponse{Token: token})
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
