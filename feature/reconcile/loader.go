package reconcile

import (
	"carte-manager/feature/journal"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	db      *gorm.DB
	service *Service
	handler *Handler
}

// NewFeature creates the reconciliation feature.
func NewFeature(db *gorm.DB, logger *zap.Logger, journalSvc *journal.Service) *Feature {
	svc := NewService(db, logger, journalSvc)
	return &Feature{db: db, service: svc, handler: NewHandler(svc)}
}

// Service exposes the reconciliation service to the commands.
func (f *Feature) Service() *Service {
	return f.service
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "reconcile"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.db != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
