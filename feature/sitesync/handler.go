package sitesync

import (
	"errors"
	"strconv"
	"time"

	"carte-manager/core/logger"
	"carte-manager/core/middleware/siteauth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the synchronization protocol.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes at the router root, the paths
// site agents are written against. Login is public; every other route
// requires a valid site session token.
func (h *Handler) RegisterRoutes(app fiber.Router, auth fiber.Handler) {
	app.Post("/login", h.HandleLogin)
	app.Post("/upload", auth, h.HandleUpload)
	app.Get("/download", auth, h.HandleDownload)
	app.Post("/confirm", auth, h.HandleConfirm)
	app.Get("/status", auth, h.HandleStatus)
}

// HandleLogin authenticates a site and issues a session token.
// @Summary Site Login
// @Description Exchanges a site id and API key for a short-lived session token.
// @Tags sync
// @Accept json
// @Produce json
// @Success 200 {object} sitesync.LoginResponse
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /login [post]
func (h *Handler) HandleLogin(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "corps de requete invalide"})
	}

	resp, err := h.service.Login(req)
	if errors.Is(err, ErrAuthFailed) {
		l.Warn("Site login rejected", zap.Uint("site_id", req.SiteID))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Site login failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(resp)
}

// HandleUpload applies a batch of client modifications.
// @Summary Upload Modifications
// @Description Applies INSERT/UPDATE/DELETE modifications under the site's ownership scope, reporting per-item outcomes.
// @Tags sync
// @Accept json
// @Produce json
// @Success 200 {object} sitesync.UploadResponse
// @Failure 400 {object} map[string]string "Coordination mismatch or bad body"
// @Failure 401 {object} map[string]string "Missing or invalid token"
// @Router /upload [post]
func (h *Handler) HandleUpload(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	claims, ok := siteauth.FromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentification requise"})
	}

	var req UploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "corps de requete invalide"})
	}

	resp, err := h.service.Upload(claims, req)
	if errors.Is(err, ErrCoordinationMismatch) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Sync upload failed", zap.Uint("site_id", claims.SiteID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(resp)
}

// HandleDownload serves the records the site must pull.
// @Summary Download Records
// @Description Returns synchronized records owned by other sites, changed after the since cursor.
// @Tags sync
// @Produce json
// @Param since query string false "RFC 3339 cursor"
// @Param limit query int false "Page size (capped by server)"
// @Success 200 {object} sitesync.DownloadResponse
// @Failure 400 {object} map[string]string "Malformed cursor"
// @Router /download [get]
func (h *Handler) HandleDownload(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	claims, ok := siteauth.FromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentification requise"})
	}

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "curseur since invalide"})
		}
		since = &parsed
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	resp, err := h.service.Download(claims, since, limit)
	if err != nil {
		l.Error("Sync download failed", zap.Uint("site_id", claims.SiteID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(resp)
}

// HandleConfirm records the client-side outcome of a sync round.
// @Summary Confirm Sync
// @Description Stores the client's applied/error counts and stamps the site's last sync time.
// @Tags sync
// @Accept json
// @Produce json
// @Success 200 {object} cartes.SyncHistory
// @Failure 404 {object} map[string]string "History not found"
// @Router /confirm [post]
func (h *Handler) HandleConfirm(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	claims, ok := siteauth.FromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentification requise"})
	}

	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "corps de requete invalide"})
	}

	history, err := h.service.Confirm(claims, req)
	if errors.Is(err, ErrHistoryNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Sync confirm failed", zap.Uint("site_id", claims.SiteID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(history)
}

// HandleStatus reports the site's synchronization health.
// @Summary Sync Status
// @Description Returns OK, EN_RETARD or JAMAIS_SYNC with the recent sync history.
// @Tags sync
// @Produce json
// @Success 200 {object} sitesync.StatusResponse
// @Router /status [get]
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	claims, ok := siteauth.FromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentification requise"})
	}

	resp, err := h.service.Status(claims)
	if err != nil {
		l.Error("Sync status failed", zap.Uint("site_id", claims.SiteID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(resp)
}
