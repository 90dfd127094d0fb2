package reconcile

import (
	"encoding/json"
	"sort"
	"time"

	"carte-manager/core/schema"
	"carte-manager/feature/cartes"
	"carte-manager/feature/journal"
	"carte-manager/feature/merge"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine reconciles import candidates against the record store. A batch
// runs in one transaction; a bad candidate produces an item-level error
// and the rest of the batch keeps going.
type Engine struct {
	db      *gorm.DB
	logger  *zap.Logger
	journal *journal.Service
}

// NewEngine creates a reconciliation engine.
func NewEngine(db *gorm.DB, logger *zap.Logger, journalSvc *journal.Service) *Engine {
	return &Engine{db: db, logger: logger, journal: journalSvc}
}

// Run reconciles a batch of candidates under one import batch id.
func (e *Engine) Run(acteur, batchID, source string, candidates []Candidate) (*Report, error) {
	report := &Report{
		BatchID:   batchID,
		Total:     len(candidates),
		StartedAt: time.Now(),
		Items:     make([]ItemResult, 0, len(candidates)),
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		for i, cand := range candidates {
			item := e.reconcileOne(tx, acteur, batchID, source, i, cand)
			switch item.Outcome {
			case OutcomeInsert:
				report.Inserts++
			case OutcomeUpdate:
				report.Updates++
			case OutcomeDoublon:
				report.Doublons++
			case OutcomeErreur:
				report.Errors++
			}
			report.Items = append(report.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Reconciliation finished",
		zap.String("batch_id", batchID),
		zap.Int("total", report.Total),
		zap.Int("inserts", report.Inserts),
		zap.Int("updates", report.Updates),
		zap.Int("doublons", report.Doublons),
		zap.Int("errors", report.Errors))

	return report, nil
}

func (e *Engine) reconcileOne(tx *gorm.DB, acteur, batchID, source string, index int, cand Candidate) ItemResult {
	item := ItemResult{Index: index}

	nom := cartes.NormalizeKey(cand.Nom)
	prenoms := cartes.NormalizeKey(cand.Prenoms)
	siteRetrait := cartes.NormalizeKey(cand.SiteRetrait)
	if nom == "" || prenoms == "" || siteRetrait == "" {
		item.Outcome = OutcomeErreur
		item.Error = "cle naturelle incomplete"
		return item
	}

	existing, err := cartes.FindByNaturalKey(tx, nom, prenoms, siteRetrait)
	if err != nil {
		return e.failItem(item, index, err)
	}

	if existing == nil {
		return e.insert(tx, acteur, batchID, source, cand, item)
	}
	return e.update(tx, acteur, existing, cand, item)
}

func (e *Engine) failItem(item ItemResult, index int, err error) ItemResult {
	e.logger.Warn("Reconciliation item failed", zap.Int("index", index), zap.Error(err))
	item.Outcome = OutcomeErreur
	item.Error = err.Error()
	return item
}

func (e *Engine) insert(tx *gorm.DB, acteur, batchID, source string, cand Candidate, item ItemResult) ItemResult {
	now := time.Now()
	carte := &cartes.Carte{
		Nom:                cartes.NormalizeKey(cand.Nom),
		Prenoms:            cartes.NormalizeKey(cand.Prenoms),
		SiteRetrait:        cartes.NormalizeKey(cand.SiteRetrait),
		LieuEnregistrement: cand.LieuEnreg,
		Rangement:          cand.Rangement,
		LieuNaissance:      cand.LieuNaissance,
		DateNaissance:      cand.DateNaissance,
		Contacts:           cand.Contacts,
		Delivrance:         cand.Delivrance,
		ContactRetrait:     cand.ContactRetrait,
		DateDelivrance:     cand.DateDelivrance,
		Version:            1,
		SyncTimestamp:      &now,
		ImportBatchID:      batchID,
		Source:             source,
		DoublonHash:        cartes.ComputeDoublonHash(cand.Nom, cand.Prenoms, cand.SiteRetrait),
	}

	if err := tx.Create(carte).Error; err != nil {
		return e.failItem(item, item.Index, err)
	}

	apres, err := json.Marshal(cartes.Snapshot(carte))
	if err != nil {
		return e.failItem(item, item.Index, err)
	}
	if err := e.journal.Record(tx, &journal.Entry{
		Acteur:     acteur,
		Action:     journal.ActionInsert,
		TableCible: carte.TableName(),
		RecordID:   carte.ID,
		Apres:      apres,
		BatchID:    batchID,
	}); err != nil {
		return e.failItem(item, item.Index, err)
	}

	item.CarteID = carte.ID
	item.Outcome = OutcomeInsert
	return item
}

func (e *Engine) update(tx *gorm.DB, acteur string, existing *cartes.Carte, cand Candidate, item ItemResult) ItemResult {
	item.CarteID = existing.ID

	changes, avant, apres := mergeChanges(existing, cand)
	if len(changes) == 0 {
		item.Outcome = OutcomeDoublon
		return item
	}

	for col := range changes {
		item.ChangedColumns = append(item.ChangedColumns, col)
	}
	sort.Strings(item.ChangedColumns)

	// Snapshots carry the changed columns plus what the write itself
	// touches, keyed by the row id, so a compensation restores exactly
	// this write and nothing else.
	now := time.Now()
	avant["id"] = schema.NumberValue(float64(existing.ID))
	avant["version"] = schema.NumberValue(float64(existing.Version))
	avant["sync_timestamp"] = dateValue(existing.SyncTimestamp)
	apres["id"] = schema.NumberValue(float64(existing.ID))
	apres["version"] = schema.NumberValue(float64(existing.Version + 1))
	apres["sync_timestamp"] = schema.DateValue(now)

	changes["version"] = existing.Version + 1
	changes["sync_timestamp"] = &now

	res := tx.Model(&cartes.Carte{}).Where("id = ?", existing.ID).Updates(changes)
	if res.Error != nil {
		return e.failItem(item, item.Index, res.Error)
	}

	avantJSON, err := json.Marshal(avant)
	if err != nil {
		return e.failItem(item, item.Index, err)
	}
	apresJSON, err := json.Marshal(apres)
	if err != nil {
		return e.failItem(item, item.Index, err)
	}
	if err := e.journal.Record(tx, &journal.Entry{
		Acteur:     acteur,
		Action:     journal.ActionUpdate,
		TableCible: existing.TableName(),
		RecordID:   existing.ID,
		Avant:      avantJSON,
		Apres:      apresJSON,
	}); err != nil {
		return e.failItem(item, item.Index, err)
	}

	item.Outcome = OutcomeUpdate
	return item
}

// mergeChanges resolves every mergeable column and returns the winning
// changes with before/after values for the journal.
func mergeChanges(existing *cartes.Carte, cand Candidate) (map[string]any, schema.Changeset, schema.Changeset) {
	changes := map[string]any{}
	avant := schema.Changeset{}
	apres := schema.Changeset{}

	applyString := func(col string, kind merge.FieldKind, old, candidate string) {
		if dec := merge.Resolve(kind, old, candidate); dec.Apply {
			changes[col] = dec.Value
			avant[col] = schema.TextValue(old)
			apres[col] = schema.TextValue(dec.Value)
		}
	}
	applyDate := func(col string, old *time.Time, dec merge.DateDecision) {
		if dec.Apply {
			changes[col] = dec.Value
			avant[col] = dateValue(old)
			apres[col] = dateValue(dec.Value)
		}
	}

	applyString("lieu_enregistrement", merge.KindPlace, existing.LieuEnregistrement, cand.LieuEnreg)
	applyString("rangement", merge.KindText, existing.Rangement, cand.Rangement)
	applyString("lieu_naissance", merge.KindPlace, existing.LieuNaissance, cand.LieuNaissance)
	applyString("contacts", merge.KindContact, existing.Contacts, cand.Contacts)
	applyString("contact_retrait", merge.KindContact, existing.ContactRetrait, cand.ContactRetrait)

	if dec := merge.ResolveDelivrance(existing.Delivrance, cand.Delivrance, existing.DateDelivrance, cand.DateDelivrance); dec.Apply {
		changes["delivrance"] = dec.Value
		avant["delivrance"] = schema.TextValue(existing.Delivrance)
		apres["delivrance"] = schema.TextValue(dec.Value)
	}
	applyDate("date_delivrance", existing.DateDelivrance, merge.ResolveDeliveryDate(existing.DateDelivrance, cand.DateDelivrance))
	applyDate("date_naissance", existing.DateNaissance, merge.ResolveBirthDate(existing.DateNaissance, cand.DateNaissance))

	return changes, avant, apres
}

func dateValue(t *time.Time) schema.Value {
	if t == nil {
		return schema.Null()
	}
	return schema.DateValue(*t)
}
