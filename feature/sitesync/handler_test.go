package sitesync

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"carte-manager/core/middleware/siteauth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestRoutes(t *testing.T) {
	svc, db := setupService(t, "sync_routes", Config{})
	seedSite(t, db, 1, 10, "cle-abidjan", true)

	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app, siteauth.New(siteauth.Config{Secret: testSecret}))

	login := func(t *testing.T) string {
		body, err := json.Marshal(LoginRequest{SiteID: 1, ApiKey: "cle-abidjan"})
		assert.NoError(t, err)
		req := httptest.NewRequest(fiber.MethodPost, "/login", bytes.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out LoginResponse
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.NotEmpty(t, out.Token)
		return out.Token
	}

	t.Run("Login At Root Path", func(t *testing.T) {
		login(t)
	})

	t.Run("Protected Route Without Token", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/status", nil)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Status With Token", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/status", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+login(t))

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out StatusResponse
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, uint(1), out.SiteID)
		assert.Equal(t, EtatJamaisSync, out.Statut)
	})
}
