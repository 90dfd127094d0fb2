package journal

import (
	"errors"
	"strconv"

	"carte-manager/core/logger"
	"carte-manager/feature/cartes"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for journal administration.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the journal routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/journal")
	group.Get("/", h.HandleList)
	group.Post("/undo/:id", h.HandleUndo)
	group.Post("/annuler-import", h.HandleAnnulerImport)
}

// HandleList returns the most recent journal entries.
// @Summary List Journal Entries
// @Description Returns the latest journal entries, newest first.
// @Tags journal
// @Produce json
// @Param limit query int false "Maximum entries (default 100)"
// @Success 200 {array} journal.Entry
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /journal [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.service.Recent(limit)
	if err != nil {
		l.Error("Journal listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(entries)
}

type undoRequest struct {
	Acteur string `json:"acteur"`
}

// HandleUndo compensates one journal entry.
// @Summary Undo Journal Entry
// @Description Applies the compensating write for a journal entry and marks it annulee.
// @Tags journal
// @Accept json
// @Produce json
// @Param id path int true "Journal entry ID"
// @Success 200 {object} map[string]interface{} "Undo result"
// @Failure 404 {object} map[string]string "Entry or target row not found"
// @Failure 409 {object} map[string]string "Entry already cancelled"
// @Router /journal/undo/{id} [post]
func (h *Handler) HandleUndo(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "identifiant invalide"})
	}

	var req undoRequest
	_ = c.BodyParser(&req)
	if req.Acteur == "" {
		req.Acteur = "admin"
	}

	if err := h.service.Undo(uint(id), req.Acteur); err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrRowMissing):
			status = fiber.StatusNotFound
		case errors.Is(err, ErrAlreadyCancelled):
			status = fiber.StatusConflict
		case errors.Is(err, ErrNotCompensable):
			status = fiber.StatusBadRequest
		}
		if status == fiber.StatusInternalServerError {
			l.Error("Undo failed", zap.Uint64("journal_id", id), zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"journal_id": id, "annulee": true})
}

type annulerImportRequest struct {
	ImportBatchID string `json:"import_batch_id"`
	Acteur        string `json:"acteur"`
}

// HandleAnnulerImport deletes every carte of an import batch.
// @Summary Annul Import Batch
// @Description Deletes all cartes tagged with the batch id and records one summary journal entry.
// @Tags journal
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Deletion count"
// @Failure 400 {object} map[string]string "Missing batch id"
// @Router /journal/annuler-import [post]
func (h *Handler) HandleAnnulerImport(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req annulerImportRequest
	if err := c.BodyParser(&req); err != nil || req.ImportBatchID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "import_batch_id requis"})
	}
	if req.Acteur == "" {
		req.Acteur = "admin"
	}

	deleted, err := h.service.AnnulerImport(req.ImportBatchID, req.Acteur)
	if err != nil {
		l.Error("Import annulment failed", zap.String("batch_id", req.ImportBatchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"import_batch_id": req.ImportBatchID,
		"table":           cartes.Carte{}.TableName(),
		"supprimees":      deleted,
	})
}
