package siteauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// localsKey is where validated claims are stored in the Fiber context.
const localsKey = "site_claims"

// Claims carries the authenticated site identity inside a session token.
type Claims struct {
	SiteID         uint `json:"site_id"`
	CoordinationID uint `json:"coordination_id"`
	jwt.RegisteredClaims
}

// Config configures the site authentication middleware.
type Config struct {
	// Secret is the HMAC key used to sign and verify session tokens.
	Secret string
}

// NewToken issues a signed session token for an authenticated site.
func NewToken(secret string, ttl time.Duration, siteID, coordinationID uint) (string, error) {
	now := time.Now()
	claims := Claims{
		SiteID:         siteID,
		CoordinationID: coordinationID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// New returns a middleware that validates the Bearer token and stores the
// site claims in locals. Requests without a valid token get 401.
func New(cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentification requise",
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "format de token invalide",
			})
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token invalide ou expire",
			})
		}

		c.Locals(localsKey, claims)
		return c.Next()
	}
}

// FromContext extracts the validated site claims from the request context.
func FromContext(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(localsKey).(*Claims)
	return claims, ok
}
