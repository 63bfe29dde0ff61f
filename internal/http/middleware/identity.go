package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/identity"
)

const (
	// IdentityHeader carries the caller's identity when no bearer token is sent.
	IdentityHeader = "X-User-Email"
	// IdentityLocalKey is the key under which the resolved identity is stored in Fiber's locals.
	IdentityLocalKey = "identity"
)

// Identity resolves the caller of every request.
//
// With a secret configured, a bearer token is verified and wins when present; a token that
// fails verification is rejected with 401. Otherwise the X-User-Email header is trusted
// (development mode). A request carrying neither is rejected with 401.
func Identity(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who := ""
		if auth := c.Get(fiber.HeaderAuthorization); auth != "" && len(secret) > 0 {
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				return fiber.NewError(fiber.StatusUnauthorized, "unsupported authorization")
			}
			id, err := identity.ParseToken(strings.TrimSpace(raw), secret)
			if err != nil {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
			}
			who = id
		}
		if who == "" {
			who = strings.ToLower(strings.TrimSpace(c.Get(IdentityHeader)))
		}
		if who == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "identity required")
		}

		c.Locals(IdentityLocalKey, who)
		return c.Next()
	}
}

// IdentityFromCtx returns the identity stored by Identity, or "".
func IdentityFromCtx(c *fiber.Ctx) string {
	s, _ := c.Locals(IdentityLocalKey).(string)
	return s
}
