package journal

import (
	"errors"
	"fmt"

	"carte-manager/core/schema"
	"carte-manager/feature/cartes"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Undo compensates a single journal entry and marks it annulee.
//
// The entry row is locked (SELECT ... FOR UPDATE) so two concurrent undo
// requests cannot both pass the annulee check. Compensation is computed
// from the captured snapshots through the schema registry:
//
//   - INSERT: delete the created row by id.
//   - UPDATE: restore every captured before-column except the exclusion
//     list; fails when nothing restorable remains.
//   - DELETE: re-insert the before snapshot under a new primary key. The
//     original identity is not recoverable and foreign references to the
//     old id are not repaired.
//
// The original entry's core fields are never mutated; a new ANNULATION
// entry cross-references it.
func (s *Service) Undo(id uint, adminActor string) error {
	if adminActor == "" {
		return fmt.Errorf("undo without actor")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		q := tx
		// Row locks are a MySQL concern; SQLite serializes writers anyway
		// and rejects the FOR UPDATE syntax.
		if tx.Dialector.Name() == "mysql" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var entry Entry
		if err := q.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("failed to load journal entry %d: %w", id, err)
		}

		if entry.Annulee {
			return ErrAlreadyCancelled
		}

		sch, ok := s.registry.Lookup(entry.TableCible)
		if !ok {
			return fmt.Errorf("journal entry %d targets unregistered table %q", id, entry.TableCible)
		}

		switch entry.Action {
		case ActionInsert:
			if err := s.compensateInsert(tx, sch, &entry); err != nil {
				return err
			}
		case ActionUpdate:
			if err := s.compensateUpdate(tx, sch, &entry); err != nil {
				return err
			}
		case ActionDelete:
			if err := s.compensateDelete(tx, sch, &entry); err != nil {
				return err
			}
		default:
			return ErrNotCompensable
		}

		// Flip the flag on the original; core fields stay untouched.
		now := tx.NowFunc()
		res := tx.Model(&Entry{}).Where("id = ?", entry.ID).Updates(map[string]any{
			"annulee":     true,
			"annulee_par": adminActor,
			"annulee_at":  now,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to mark entry %d annulee: %w", entry.ID, res.Error)
		}

		annulation := &Entry{
			Acteur:       adminActor,
			Action:       ActionAnnulation,
			TableCible:   entry.TableCible,
			RecordID:     entry.RecordID,
			RefJournalID: &entry.ID,
			Avant:        entry.Apres,
			Apres:        entry.Avant,
			BatchID:      entry.BatchID,
			Description:  fmt.Sprintf("annulation de l'entree #%d (%s)", entry.ID, entry.Action),
		}
		if err := s.Record(tx, annulation); err != nil {
			return err
		}

		s.logger.Info("Journal entry undone",
			zap.Uint("journal_id", entry.ID),
			zap.String("action", entry.Action),
			zap.String("acteur", adminActor))
		return nil
	})
}

// compensateInsert deletes the row the journaled INSERT created.
func (s *Service) compensateInsert(tx *gorm.DB, sch schema.TableSchema, entry *Entry) error {
	res := tx.Table(sch.Name).Where(sch.PrimaryKey+" = ?", entry.RecordID).Delete(nil)
	if res.Error != nil {
		return fmt.Errorf("failed to delete row %d from %s: %w", entry.RecordID, sch.Name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRowMissing
	}
	return nil
}

// compensateUpdate restores the captured before-columns minus exclusions.
func (s *Service) compensateUpdate(tx *gorm.DB, sch schema.TableSchema, entry *Entry) error {
	before, err := sch.DecodeSnapshot(entry.Avant)
	if err != nil {
		return err
	}

	restore, err := sch.Compensation(before)
	if err != nil {
		return err
	}

	// Existence check first: an Updates that changes nothing reports zero
	// affected rows on MySQL, which must not read as "row missing".
	var count int64
	if err := tx.Table(sch.Name).Where(sch.PrimaryKey+" = ?", entry.RecordID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check row %d in %s: %w", entry.RecordID, sch.Name, err)
	}
	if count == 0 {
		return ErrRowMissing
	}

	res := tx.Table(sch.Name).Where(sch.PrimaryKey+" = ?", entry.RecordID).Updates(restore.SQLMap())
	if res.Error != nil {
		return fmt.Errorf("failed to restore row %d in %s: %w", entry.RecordID, sch.Name, res.Error)
	}
	return nil
}

// compensateDelete re-inserts the before snapshot without the old key.
func (s *Service) compensateDelete(tx *gorm.DB, sch schema.TableSchema, entry *Entry) error {
	before, err := sch.DecodeSnapshot(entry.Avant)
	if err != nil {
		return err
	}

	values := before.SQLMap()
	delete(values, sch.PrimaryKey)
	if len(values) == 0 {
		return fmt.Errorf("empty snapshot for deleted row %d in %s", entry.RecordID, sch.Name)
	}

	if err := tx.Table(sch.Name).Create(values).Error; err != nil {
		return fmt.Errorf("failed to re-insert row into %s: %w", sch.Name, err)
	}
	return nil
}

// AnnulerImport is the coarse batch rollback: it deletes every carte
// tagged with the batch id in one transaction and appends one summary
// entry, without replaying Undo per record.
func (s *Service) AnnulerImport(batchID, adminActor string) (int64, error) {
	if batchID == "" {
		return 0, fmt.Errorf("annulation without batch id")
	}
	if adminActor == "" {
		return 0, fmt.Errorf("annulation without actor")
	}

	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("import_batch_id = ?", batchID).Delete(&cartes.Carte{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete batch %s: %w", batchID, res.Error)
		}
		deleted = res.RowsAffected

		summary := &Entry{
			Acteur:      adminActor,
			Action:      ActionAnnulationImport,
			TableCible:  cartes.Carte{}.TableName(),
			BatchID:     batchID,
			Description: fmt.Sprintf("annulation de l'import %s: %d cartes supprimees", batchID, deleted),
		}
		return s.Record(tx, summary)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Import batch annulled",
		zap.String("batch_id", batchID),
		zap.Int64("deleted", deleted))
	return deleted, nil
}
