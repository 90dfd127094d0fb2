package sitesync

import (
	"time"

	"carte-manager/core/middleware/siteauth"
	"carte-manager/feature/journal"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
	auth    fiber.Handler
}

// NewFeature creates the sync feature.
func NewFeature(db *gorm.DB, logger *zap.Logger, journalSvc *journal.Service, cfg Config, jwtSecret string, tokenTTL time.Duration) *Feature {
	svc := NewService(db, logger, journalSvc, cfg, jwtSecret, tokenTTL)
	return &Feature{
		service: svc,
		handler: NewHandler(svc),
		auth:    siteauth.New(siteauth.Config{Secret: jwtSecret}),
	}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "sitesync"
}

// IsEnabled checks if the feature is enabled. A signing secret is
// mandatory: without one every issued token would be forgeable.
func (f *Feature) IsEnabled() bool {
	return f.service.db != nil && f.service.secret != ""
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app, f.auth)
	return nil
}
