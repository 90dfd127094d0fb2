package reconcile

import (
	"carte-manager/feature/journal"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service runs bulk imports through the reconciliation engine.
type Service struct {
	engine *Engine
	logger *zap.Logger
}

// NewService creates a new reconciliation service.
func NewService(db *gorm.DB, logger *zap.Logger, journalSvc *journal.Service) *Service {
	return &Service{
		engine: NewEngine(db, logger, journalSvc),
		logger: logger,
	}
}

// Import reconciles a candidate batch under a fresh import batch id. The
// batch id tags every inserted row so the whole import can be annulled
// later in one call.
func (s *Service) Import(acteur, source string, candidates []Candidate) (*Report, error) {
	if acteur == "" {
		acteur = "import"
	}
	batchID := uuid.NewString()
	return s.engine.Run(acteur, batchID, source, candidates)
}
