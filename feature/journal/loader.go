package journal

import (
	"carte-manager/core/events"
	"carte-manager/core/schema"
	"carte-manager/core/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the journal feature.
func NewFeature(db *gorm.DB, logger *zap.Logger, registry *schema.Registry, producer *events.Producer, store storage.Client, bucket string) *Feature {
	svc := NewService(db, logger, registry, producer, store, bucket)
	h := NewHandler(svc)
	return &Feature{service: svc, handler: h}
}

// Service exposes the journal service to the other features and commands.
func (f *Feature) Service() *Service {
	return f.service
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "journal"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.service.db != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
