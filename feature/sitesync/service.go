package sitesync

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carte-manager/core/middleware/siteauth"
	"carte-manager/feature/cartes"
	"carte-manager/feature/journal"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrAuthFailed marks a login with an unknown site, a deactivated site
	// or a wrong API key. One error for all three: the response never says
	// which part failed.
	ErrAuthFailed = errors.New("site ou cle invalide")
	// ErrCoordinationMismatch marks an upload naming a coordination other
	// than the authenticated site's. Rejected before any write.
	ErrCoordinationMismatch = errors.New("coordination non autorisee")
	// ErrHistoryNotFound marks a confirm targeting a missing history row.
	ErrHistoryNotFound = errors.New("historique de synchronisation introuvable")
)

// Service implements the site synchronization protocol.
type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	journal  *journal.Service
	cfg      Config
	secret   string
	tokenTTL time.Duration
}

// NewService creates a new sync service.
func NewService(db *gorm.DB, logger *zap.Logger, journalSvc *journal.Service, cfg Config, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		db:       db,
		logger:   logger,
		journal:  journalSvc,
		cfg:      cfg,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

// Login authenticates a site by API key and issues a session token.
func (s *Service) Login(req LoginRequest) (*LoginResponse, error) {
	var site cartes.Site
	err := s.db.Where("id = ? AND actif = ?", req.SiteID, true).First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, fmt.Errorf("site lookup failed: %w", err)
	}

	if site.ApiKey == "" || subtle.ConstantTimeCompare([]byte(req.ApiKey), []byte(site.ApiKey)) != 1 {
		return nil, ErrAuthFailed
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token, err := siteauth.NewToken(s.secret, s.tokenTTL, site.ID, site.CoordinationID)
	if err != nil {
		return nil, fmt.Errorf("token signing failed: %w", err)
	}

	return &LoginResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// Upload applies a batch of client modifications under the authenticated
// site's ownership scope. The whole batch runs in one transaction; a stale
// update or a bad item is reported in the response and never aborts the
// rest of the batch. Only infrastructure failures roll back.
func (s *Service) Upload(claims *siteauth.Claims, req UploadRequest) (*UploadResponse, error) {
	for _, mod := range req.Modifications {
		if mod.CoordinationID != 0 && mod.CoordinationID != claims.CoordinationID {
			return nil, ErrCoordinationMismatch
		}
	}

	history := cartes.SyncHistory{SiteID: claims.SiteID, Statut: cartes.SyncEnCours}
	if err := s.db.Create(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to open sync history: %w", err)
	}

	resp := &UploadResponse{
		HistoryID: history.ID,
		Processed: make([]ProcessedItem, 0, len(req.Modifications)),
	}

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		for _, mod := range req.Modifications {
			item, err := s.apply(tx, claims, mod)
			if err != nil {
				return err
			}

			switch item.Status {
			case StatusConflit:
				resp.Uploaded.Conflicts++
			case StatusErreur:
				resp.Uploaded.Errors++
			case StatusApplique:
				switch mod.Operation {
				case OpInsert:
					resp.Uploaded.Inserts++
				case OpUpdate:
					resp.Uploaded.Updates++
				case OpDelete:
					resp.Uploaded.Deletes++
				}
			}
			resp.Processed = append(resp.Processed, item)
		}
		return nil
	})

	now := time.Now()
	if txErr != nil {
		s.db.Model(&history).Updates(map[string]any{
			"statut":      cartes.SyncErreur,
			"finished_at": &now,
		})
		return nil, txErr
	}

	if err := s.db.Model(&history).Updates(map[string]any{
		"statut":      cartes.SyncTermine,
		"inserts":     resp.Uploaded.Inserts,
		"updates":     resp.Uploaded.Updates,
		"deletes":     resp.Uploaded.Deletes,
		"conflicts":   resp.Uploaded.Conflicts,
		"errors":      resp.Uploaded.Errors,
		"finished_at": &now,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to finalize sync history: %w", err)
	}

	feed, err := s.Download(claims, req.LastSync, 0)
	if err != nil {
		return nil, err
	}
	resp.Download = feed.Cartes

	s.logger.Info("Sync upload processed",
		zap.Uint("site_id", claims.SiteID),
		zap.Uint("history_id", history.ID),
		zap.Int("inserts", resp.Uploaded.Inserts),
		zap.Int("updates", resp.Uploaded.Updates),
		zap.Int("deletes", resp.Uploaded.Deletes),
		zap.Int("conflicts", resp.Uploaded.Conflicts),
		zap.Int("errors", resp.Uploaded.Errors))

	return resp, nil
}

// apply processes one modification. A returned error aborts the whole
// batch; item-level problems are reported in the ProcessedItem instead.
func (s *Service) apply(tx *gorm.DB, claims *siteauth.Claims, mod Modification) (ProcessedItem, error) {
	item := ProcessedItem{LocalID: mod.LocalID, PgID: mod.PgID}

	switch mod.Operation {
	case OpInsert:
		return s.applyInsert(tx, claims, mod, item)
	case OpUpdate:
		return s.applyUpdate(tx, claims, mod, item)
	case OpDelete:
		return s.applyDelete(tx, claims, mod, item)
	default:
		item.Status = StatusErreur
		item.Error = fmt.Sprintf("operation inconnue: %s", mod.Operation)
		return item, nil
	}
}

func (s *Service) applyInsert(tx *gorm.DB, claims *siteauth.Claims, mod Modification, item ProcessedItem) (ProcessedItem, error) {
	now := time.Now()
	carte := carteFromModification(mod, claims)
	carte.SyncTimestamp = &now

	if err := tx.Create(carte).Error; err != nil {
		item.Status = StatusErreur
		item.Error = err.Error()
		return item, nil
	}

	apres, err := snapshotJSON(carte)
	if err != nil {
		return item, err
	}
	if err := s.journal.Record(tx, &journal.Entry{
		Acteur:     actor(claims),
		Action:     journal.ActionInsert,
		TableCible: carte.TableName(),
		RecordID:   carte.ID,
		Apres:      apres,
	}); err != nil {
		return item, err
	}

	item.PgID = carte.ID
	item.Version = carte.Version
	item.Status = StatusApplique
	return item, nil
}

func (s *Service) applyUpdate(tx *gorm.DB, claims *siteauth.Claims, mod Modification, item ProcessedItem) (ProcessedItem, error) {
	if mod.PgID == 0 {
		item.Status = StatusErreur
		item.Error = "pg_id requis pour UPDATE"
		return item, nil
	}

	existing, err := cartes.FindOwned(tx, mod.PgID, claims.SiteID)
	if errors.Is(err, cartes.ErrNotFound) {
		item.Status = StatusErreur
		item.Error = cartes.ErrNotFound.Error()
		return item, nil
	}
	if err != nil {
		return item, err
	}

	if mod.Version < existing.Version {
		if err := s.recordConflict(tx, claims, mod, existing); err != nil {
			return item, err
		}
		item.Version = existing.Version
		item.Status = StatusConflit
		item.Error = cartes.ErrVersionConflict.Error()
		return item, nil
	}

	avant, err := snapshotJSON(existing)
	if err != nil {
		return item, err
	}

	newVersion, err := cartes.UpdateIfVersion(tx, existing.ID, claims.SiteID, existing.Version, changesFromModification(mod))
	if errors.Is(err, cartes.ErrVersionConflict) {
		if err := s.recordConflict(tx, claims, mod, existing); err != nil {
			return item, err
		}
		item.Status = StatusConflit
		item.Error = cartes.ErrVersionConflict.Error()
		return item, nil
	}
	if err != nil {
		return item, err
	}

	updated, err := cartes.FindOwned(tx, existing.ID, claims.SiteID)
	if err != nil {
		return item, err
	}
	apres, err := snapshotJSON(updated)
	if err != nil {
		return item, err
	}
	if err := s.journal.Record(tx, &journal.Entry{
		Acteur:     actor(claims),
		Action:     journal.ActionUpdate,
		TableCible: updated.TableName(),
		RecordID:   updated.ID,
		Avant:      avant,
		Apres:      apres,
	}); err != nil {
		return item, err
	}

	item.Version = newVersion
	item.Status = StatusApplique
	return item, nil
}

func (s *Service) applyDelete(tx *gorm.DB, claims *siteauth.Claims, mod Modification, item ProcessedItem) (ProcessedItem, error) {
	if mod.PgID == 0 {
		item.Status = StatusErreur
		item.Error = "pg_id requis pour DELETE"
		return item, nil
	}

	existing, err := cartes.FindOwned(tx, mod.PgID, claims.SiteID)
	if errors.Is(err, cartes.ErrNotFound) {
		// Already gone under this scope: the delete is idempotent.
		item.Status = StatusApplique
		return item, nil
	}
	if err != nil {
		return item, err
	}

	avant, err := snapshotJSON(existing)
	if err != nil {
		return item, err
	}

	// Deletes bypass the version check: last write wins.
	if _, err := cartes.DeleteOwned(tx, existing.ID, claims.SiteID); err != nil {
		return item, err
	}

	if err := s.journal.Record(tx, &journal.Entry{
		Acteur:     actor(claims),
		Action:     journal.ActionDelete,
		TableCible: existing.TableName(),
		RecordID:   existing.ID,
		Avant:      avant,
	}); err != nil {
		return item, err
	}

	item.Status = StatusApplique
	return item, nil
}

// recordConflict stores the rejected client payload next to the server's
// current row. Conflicts are data, not failures: the batch keeps going.
func (s *Service) recordConflict(tx *gorm.DB, claims *siteauth.Claims, mod Modification, existing *cartes.Carte) error {
	payload, err := json.Marshal(mod)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict payload: %w", err)
	}
	snapshot, err := snapshotJSON(existing)
	if err != nil {
		return err
	}

	conflict := cartes.SyncConflict{
		CarteID:        existing.ID,
		SiteID:         claims.SiteID,
		ClientVersion:  mod.Version,
		ServerVersion:  existing.Version,
		ClientPayload:  payload,
		ServerSnapshot: snapshot,
	}
	if err := tx.Create(&conflict).Error; err != nil {
		return fmt.Errorf("failed to record sync conflict: %w", err)
	}

	s.logger.Warn("Stale sync update rejected",
		zap.Uint("site_id", claims.SiteID),
		zap.Uint("carte_id", existing.ID),
		zap.Int("client_version", mod.Version),
		zap.Int("server_version", existing.Version))
	return nil
}

// Confirm records the client-side outcome of a sync round and stamps the
// site's last successful synchronization. Explicit id/error lists collapse
// to their counts.
func (s *Service) Confirm(claims *siteauth.Claims, req ConfirmRequest) (*cartes.SyncHistory, error) {
	if req.AppliedCount == 0 && len(req.AppliedIDs) > 0 {
		req.AppliedCount = len(req.AppliedIDs)
	}
	if req.ClientErrors == 0 && len(req.ErrorList) > 0 {
		req.ClientErrors = len(req.ErrorList)
	}

	var history cartes.SyncHistory
	q := s.db.Where("site_id = ?", claims.SiteID)
	if req.HistoryID != 0 {
		q = q.Where("id = ?", req.HistoryID)
	}
	err := q.Order("id DESC").First(&history).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history lookup failed: %w", err)
	}

	if err := s.db.Model(&history).Updates(map[string]any{
		"applied_count": req.AppliedCount,
		"client_errors": req.ClientErrors,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to confirm sync: %w", err)
	}

	now := time.Now()
	if err := s.db.Model(&cartes.Site{}).Where("id = ?", claims.SiteID).
		Update("last_sync_at", &now).Error; err != nil {
		return nil, fmt.Errorf("failed to stamp site sync: %w", err)
	}

	history.AppliedCount = req.AppliedCount
	history.ClientErrors = req.ClientErrors
	return &history, nil
}

// Status reports a site's synchronization health with its recent history.
func (s *Service) Status(claims *siteauth.Claims) (*StatusResponse, error) {
	var site cartes.Site
	if err := s.db.First(&site, claims.SiteID).Error; err != nil {
		return nil, fmt.Errorf("site lookup failed: %w", err)
	}

	statut := EtatJamaisSync
	if site.LastSyncAt != nil {
		if time.Since(*site.LastSyncAt) > s.cfg.LateThreshold() {
			statut = EtatEnRetard
		} else {
			statut = EtatOK
		}
	}

	var total, synced int64
	if err := s.db.Model(&cartes.Carte{}).
		Where("site_proprietaire_id = ?", claims.SiteID).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("carte counting failed: %w", err)
	}
	if err := s.db.Model(&cartes.Carte{}).
		Where("site_proprietaire_id = ? AND sync_timestamp IS NOT NULL", claims.SiteID).
		Count(&synced).Error; err != nil {
		return nil, fmt.Errorf("carte counting failed: %w", err)
	}

	var historique []cartes.SyncHistory
	if err := s.db.Where("site_id = ?", claims.SiteID).
		Order("id DESC").Limit(10).Find(&historique).Error; err != nil {
		return nil, fmt.Errorf("history listing failed: %w", err)
	}

	return &StatusResponse{
		SiteID:          site.ID,
		Statut:          statut,
		TotalCartes:     total,
		CartesEnAttente: total - synced,
		CartesSync:      synced,
		LastSyncAt:      site.LastSyncAt,
		Historique:      historique,
	}, nil
}

func actor(claims *siteauth.Claims) string {
	return fmt.Sprintf("site:%d", claims.SiteID)
}

func snapshotJSON(c *cartes.Carte) ([]byte, error) {
	data, err := json.Marshal(cartes.Snapshot(c))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// carteFromModification builds a new owned carte from an INSERT payload.
// Version always starts at 1; the client's version field is ignored.
func carteFromModification(mod Modification, claims *siteauth.Claims) *cartes.Carte {
	siteID := claims.SiteID
	coordID := claims.CoordinationID
	return &cartes.Carte{
		Nom:                cartes.NormalizeKey(mod.Nom),
		Prenoms:            cartes.NormalizeKey(mod.Prenoms),
		SiteRetrait:        cartes.NormalizeKey(mod.SiteRetrait),
		LieuEnregistrement: mod.LieuEnreg,
		Rangement:          mod.Rangement,
		LieuNaissance:      mod.LieuNaissance,
		DateNaissance:      mod.DateNaissance,
		Contacts:           mod.Contacts,
		Delivrance:         mod.Delivrance,
		ContactRetrait:     mod.ContactRetrait,
		DateDelivrance:     mod.DateDelivrance,
		CoordinationID:     &coordID,
		SiteProprietaireID: &siteID,
		Version:            1,
		Source:             "sync",
		DoublonHash:        cartes.ComputeDoublonHash(mod.Nom, mod.Prenoms, mod.SiteRetrait),
	}
}

// changesFromModification builds the column changeset of an UPDATE. Version
// and sync_timestamp are owned by the store, never by the payload.
func changesFromModification(mod Modification) map[string]any {
	return map[string]any{
		"nom":                 cartes.NormalizeKey(mod.Nom),
		"prenoms":             cartes.NormalizeKey(mod.Prenoms),
		"site_retrait":        cartes.NormalizeKey(mod.SiteRetrait),
		"lieu_enregistrement": mod.LieuEnreg,
		"rangement":           mod.Rangement,
		"lieu_naissance":      mod.LieuNaissance,
		"date_naissance":      mod.DateNaissance,
		"contacts":            mod.Contacts,
		"delivrance":          mod.Delivrance,
		"contact_retrait":     mod.ContactRetrait,
		"date_delivrance":     mod.DateDelivrance,
		"doublon_hash":        cartes.ComputeDoublonHash(mod.Nom, mod.Prenoms, mod.SiteRetrait),
	}
}
