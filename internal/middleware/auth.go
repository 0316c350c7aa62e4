package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

var publicPrefixes = []string{"/health", "/metrics", "/swagger"}

// AuthMiddleware checks Bearer tokens against the configured set. With no
// tokens configured any non-empty token is accepted. Health, metrics and
// swagger routes are public.
func AuthMiddleware(tokens []string) fiber.Handler {
	return func(c fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, "missing Authorization header")
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return unauthorized(c, "invalid Authorization header format, expected 'Bearer <token>'")
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return unauthorized(c, "empty bearer token")
		}
		if len(tokens) > 0 && !knownToken(tokens, token) {
			return unauthorized(c, "invalid bearer token")
		}

		c.Locals("auth_token", token)
		return c.Next()
	}
}

func knownToken(tokens []string, token string) bool {
	for _, t := range tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

func unauthorized(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}
