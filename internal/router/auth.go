package router

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware admits requests carrying either a Bearer JWT (the subject is
// stored in the user_id local) or, when configured, the admin API key in
// X-API-Key (marks the request admin).
func AuthMiddleware(secret []byte, adminKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if adminKey != "" {
			key := strings.TrimSpace(c.Get("X-API-Key"))
			if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) == 1 {
				c.Locals("admin", true)
				return c.Next()
			}
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing token")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid token")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		userIDVal, ok := claims["user_id"].(string)
		if !ok || strings.TrimSpace(userIDVal) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals("user_id", userIDVal)
		return c.Next()
	}
}

// AdminMiddleware admits only requests with the admin API key.
func AdminMiddleware(adminKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if adminKey == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "admin access disabled")
		}
		key := strings.TrimSpace(c.Get("X-API-Key"))
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "missing_api_key")
		}
		c.Locals("admin", true)
		return c.Next()
	}
}
