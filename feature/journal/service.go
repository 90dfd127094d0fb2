package journal

import (
	"encoding/json"
	"errors"
	"fmt"

	"carte-manager/core/events"
	"carte-manager/core/schema"
	"carte-manager/core/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrEntryNotFound marks an undo targeting a journal id that does not exist.
	ErrEntryNotFound = errors.New("entree de journal introuvable")
	// ErrAlreadyCancelled marks a second undo on the same entry.
	ErrAlreadyCancelled = errors.New("entree deja annulee")
	// ErrNotCompensable marks an undo on an action type without a compensation.
	ErrNotCompensable = errors.New("action non compensable")
	// ErrRowMissing marks a compensation whose target row no longer exists.
	ErrRowMissing = errors.New("ligne cible introuvable")
)

// Service manages the action journal.
type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	registry *schema.Registry
	producer *events.Producer
	store    storage.Client
	bucket   string
}

// NewService creates a journal service. producer may be nil (no event
// publishing); store may be nil (pruning disabled).
func NewService(db *gorm.DB, logger *zap.Logger, registry *schema.Registry, producer *events.Producer, store storage.Client, bucket string) *Service {
	return &Service{
		db:       db,
		logger:   logger,
		registry: registry,
		producer: producer,
		store:    store,
		bucket:   bucket,
	}
}

// Record appends one entry inside the caller's transaction. It validates
// the input and fails loudly on malformed entries; every mutation in the
// system goes through here, so a silent drop would punch a hole in the
// audit trail.
func (s *Service) Record(tx *gorm.DB, entry *Entry) error {
	if err := s.validate(entry); err != nil {
		return err
	}

	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}

	s.publish(entry)
	return nil
}

func (s *Service) validate(entry *Entry) error {
	if entry.Acteur == "" {
		return fmt.Errorf("journal entry without actor")
	}

	switch entry.Action {
	case ActionInsert, ActionUpdate, ActionDelete:
		if _, ok := s.registry.Lookup(entry.TableCible); !ok {
			return fmt.Errorf("journal entry for unregistered table %q", entry.TableCible)
		}
		if entry.RecordID == 0 {
			return fmt.Errorf("journal entry without record id")
		}
	case ActionAnnulation, ActionAnnulationImport:
		// Administrative entries reference other entries or batches.
	default:
		return fmt.Errorf("unknown journal action %q", entry.Action)
	}

	return nil
}

// publish emits the entry to Kafka, best effort.
func (s *Service) publish(entry *Entry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("Failed to marshal journal event", zap.Error(err))
		return
	}

	key := fmt.Sprintf("%s:%d", entry.TableCible, entry.RecordID)
	if err := s.producer.Publish([]byte(key), payload); err != nil {
		s.logger.Warn("Failed to publish journal event",
			zap.Uint("journal_id", entry.ID),
			zap.Error(err))
	}
}

// Recent returns the latest entries for the admin observability endpoint.
func (s *Service) Recent(limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []Entry
	if err := s.db.Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	return entries, nil
}
