package cartes

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"carte-manager/core/schema"

	"gorm.io/gorm"
)

var (
	// ErrNotFound marks a carte missing under the caller's scope. Writes
	// targeting a row owned by another site report this, never the owner.
	ErrNotFound = errors.New("carte introuvable")
	// ErrVersionConflict marks a versioned update that lost the race: the
	// expected version no longer matches the row.
	ErrVersionConflict = errors.New("version obsolete")
)

// NormalizeKey trims a natural-key component for matching.
func NormalizeKey(s string) string {
	return strings.TrimSpace(s)
}

// ComputeDoublonHash derives the duplicate-detection hash from the natural
// key. Case-insensitive so re-imports with different casing still collide.
func ComputeDoublonHash(nom, prenoms, siteRetrait string) string {
	key := strings.ToLower(NormalizeKey(nom)) + "|" +
		strings.ToLower(NormalizeKey(prenoms)) + "|" +
		strings.ToLower(NormalizeKey(siteRetrait))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// FindByNaturalKey looks up a carte by exact trimmed match on
// (nom, prenoms, site_retrait). Returns (nil, nil) when absent.
func FindByNaturalKey(tx *gorm.DB, nom, prenoms, siteRetrait string) (*Carte, error) {
	var carte Carte
	err := tx.Where("nom = ? AND prenoms = ? AND site_retrait = ?",
		NormalizeKey(nom), NormalizeKey(prenoms), NormalizeKey(siteRetrait)).
		First(&carte).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("natural key lookup failed: %w", err)
	}
	return &carte, nil
}

// FindOwned fetches a carte scoped to its owning site. A syntactically
// valid id owned by another site reports ErrNotFound; ownership is enforced
// structurally, never by trusting the client.
func FindOwned(tx *gorm.DB, id, siteID uint) (*Carte, error) {
	var carte Carte
	err := tx.Where("id = ? AND site_proprietaire_id = ?", id, siteID).First(&carte).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("owned lookup failed: %w", err)
	}
	return &carte, nil
}

// UpdateIfVersion applies changes to an owned carte only if its version
// still equals expected, atomically bumping the version by one. This is the
// single compare-and-swap of the system; the WHERE predicate carries the
// ownership scope so a non-owner's update matches zero rows.
func UpdateIfVersion(tx *gorm.DB, id, siteID uint, expected int, changes map[string]any) (int, error) {
	updates := make(map[string]any, len(changes)+2)
	for col, val := range changes {
		updates[col] = val
	}
	updates["version"] = expected + 1
	now := time.Now()
	updates["sync_timestamp"] = &now

	res := tx.Model(&Carte{}).
		Where("id = ? AND site_proprietaire_id = ? AND version = ?", id, siteID, expected).
		Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("versioned update failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrVersionConflict
	}
	return expected + 1, nil
}

// DeleteOwned removes a carte scoped to its owning site. No version check:
// deletes are last-write-wins by design, unlike updates.
func DeleteOwned(tx *gorm.DB, id, siteID uint) (int64, error) {
	res := tx.Where("id = ? AND site_proprietaire_id = ?", id, siteID).Delete(&Carte{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Schema describes the cartes table for the journal's schema registry.
// doublon_hash is excluded from compensating writes together with the
// primary key: restoring a stale hash would break duplicate detection.
func Schema() schema.TableSchema {
	return schema.TableSchema{
		Name:       Carte{}.TableName(),
		PrimaryKey: "id",
		MutableColumns: []string{
			"nom", "prenoms", "site_retrait",
			"lieu_enregistrement", "rangement", "lieu_naissance",
			"date_naissance", "contacts", "delivrance",
			"contact_retrait", "date_delivrance",
			"coordination_id", "site_proprietaire_id",
			"version", "sync_timestamp", "import_batch_id", "source",
			"doublon_hash",
		},
		ExcludedColumns: []string{"doublon_hash"},
		DateColumns:     []string{"date_naissance", "date_delivrance", "sync_timestamp"},
	}
}

// Snapshot captures the full journaled state of a carte as a typed
// changeset, keyed by column name.
func Snapshot(c *Carte) schema.Changeset {
	cs := schema.Changeset{
		"id":                  schema.NumberValue(float64(c.ID)),
		"nom":                 schema.TextValue(c.Nom),
		"prenoms":             schema.TextValue(c.Prenoms),
		"site_retrait":        schema.TextValue(c.SiteRetrait),
		"lieu_enregistrement": schema.TextValue(c.LieuEnregistrement),
		"rangement":           schema.TextValue(c.Rangement),
		"lieu_naissance":      schema.TextValue(c.LieuNaissance),
		"contacts":            schema.TextValue(c.Contacts),
		"delivrance":          schema.TextValue(c.Delivrance),
		"contact_retrait":     schema.TextValue(c.ContactRetrait),
		"version":             schema.NumberValue(float64(c.Version)),
		"import_batch_id":     schema.TextValue(c.ImportBatchID),
		"source":              schema.TextValue(c.Source),
		"doublon_hash":        schema.TextValue(c.DoublonHash),
	}

	cs["date_naissance"] = optionalDate(c.DateNaissance)
	cs["date_delivrance"] = optionalDate(c.DateDelivrance)
	cs["sync_timestamp"] = optionalDate(c.SyncTimestamp)
	cs["coordination_id"] = optionalID(c.CoordinationID)
	cs["site_proprietaire_id"] = optionalID(c.SiteProprietaireID)

	return cs
}

func optionalDate(t *time.Time) schema.Value {
	if t == nil {
		return schema.Null()
	}
	return schema.DateValue(*t)
}

func optionalID(id *uint) schema.Value {
	if id == nil {
		return schema.Null()
	}
	return schema.NumberValue(float64(*id))
}

// AutoMigrate creates the record-store tables. Used by tests and by sqlite
// deployments; MySQL installs manage the schema externally.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Carte{}, &Coordination{}, &Site{}, &SyncHistory{}, &SyncConflict{})
}
