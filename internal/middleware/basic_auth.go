package middleware

import (
	"encoding/base64"
	"strings"

	"dashgate/internal/services"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// SessionKey is the fiber.Ctx local holding the *services.Session of an
// authenticated request.
const SessionKey = "session"

// AuthRequired is a Fiber middleware that checks HTTP Basic credentials on
// every request and stores the resulting session in the request locals.
func AuthRequired(authService *services.AuthService, logger log.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, password, ok := parseBasicAuth(c)
		if !ok {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="dashboards"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Basic <credentials>'",
			})
		}

		session, err := authService.Login(c.UserContext(), username, password)
		if err != nil {
			logger.WithError(err).Error("credential check failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"message": "Authentication is temporarily unavailable",
			})
		}
		if !session.Authenticated {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="dashboards"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "invalid username or password",
			})
		}

		c.Locals(SessionKey, session)
		return c.Next()
	}
}

// SessionFrom returns the session stored by AuthRequired, or nil.
func SessionFrom(c *fiber.Ctx) *services.Session {
	session, _ := c.Locals(SessionKey).(*services.Session)
	return session
}

// parseBasicAuth extracts Basic auth credentials from request headers
func parseBasicAuth(c *fiber.Ctx) (username, password string, ok bool) {
	auth := c.Get(fiber.HeaderAuthorization)
	const prefix = "Basic "
	if !strings.HasPrefix(auth, prefix) {
		return "", "", false
	}
	b, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(b), ":")
}
