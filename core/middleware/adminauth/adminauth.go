package adminauth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// HeaderName is the request header carrying the admin API key.
const HeaderName = "X-Api-Key"

// Config configures the admin authentication middleware.
type Config struct {
	// ApiKey is the shared secret for the admin endpoints. Empty locks
	// the endpoints entirely rather than leaving them open.
	ApiKey string
}

// New returns a middleware protecting the import and journal admin routes.
func New(cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get(HeaderName)
		if cfg.ApiKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.ApiKey)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "acces administrateur refuse",
			})
		}
		return c.Next()
	}
}
