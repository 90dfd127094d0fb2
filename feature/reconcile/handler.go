package reconcile

import (
	"carte-manager/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for bulk imports.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the import routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/import", h.HandleImport)
}

type importRequest struct {
	Acteur string      `json:"acteur"`
	Source string      `json:"source"`
	Cartes []Candidate `json:"cartes"`
}

// HandleImport reconciles an uploaded candidate batch.
// @Summary Bulk Import
// @Description Matches each candidate by natural key and inserts or merges it, reporting per-item outcomes.
// @Tags import
// @Accept json
// @Produce json
// @Success 200 {object} reconcile.Report
// @Failure 400 {object} map[string]string "Bad request body"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /import [post]
func (h *Handler) HandleImport(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req importRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "corps de requete invalide"})
	}
	if len(req.Cartes) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "aucune carte a importer"})
	}

	report, err := h.service.Import(req.Acteur, req.Source, req.Cartes)
	if err != nil {
		l.Error("Import failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("Import processed",
		zap.String("batch_id", report.BatchID),
		zap.Int("total", report.Total))
	return c.JSON(report)
}
