package cartes

import (
	"encoding/json"
	"time"
)

// Carte is one tracked card-issuance record. The natural key for merge
// matching is (nom, prenoms, site_retrait); the surrogate ID addresses the
// row directly. Version starts at 1 and increases by exactly 1 per accepted
// update; it is never set from a client payload.
type Carte struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Nom                string     `gorm:"size:120;index:idx_cle_naturelle" json:"nom"`
	Prenoms            string     `gorm:"size:190;index:idx_cle_naturelle" json:"prenoms"`
	SiteRetrait        string     `gorm:"size:190;index:idx_cle_naturelle" json:"site_retrait"`
	LieuEnregistrement string     `gorm:"size:190" json:"lieu_enregistrement"`
	Rangement          string     `gorm:"size:60" json:"rangement"`
	LieuNaissance      string     `gorm:"size:190" json:"lieu_naissance"`
	DateNaissance      *time.Time `json:"date_naissance"`
	Contacts           string     `gorm:"size:60" json:"contacts"`
	Delivrance         string     `gorm:"size:190" json:"delivrance"`
	ContactRetrait     string     `gorm:"size:60" json:"contact_retrait"`
	DateDelivrance     *time.Time `json:"date_delivrance"`
	CoordinationID     *uint      `gorm:"index" json:"coordination_id"`
	SiteProprietaireID *uint      `gorm:"index" json:"site_proprietaire_id"`
	Version            int        `gorm:"default:1" json:"version"`
	SyncTimestamp      *time.Time `gorm:"index" json:"sync_timestamp"`
	ImportBatchID      string     `gorm:"size:64;index" json:"import_batch_id"`
	Source             string     `gorm:"size:60" json:"source"`
	DoublonHash        string     `gorm:"size:64;index" json:"doublon_hash"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName sets the table name for Carte.
func (Carte) TableName() string { return "cartes" }

// Coordination is the top-level organizational scope grouping sites.
type Coordination struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Nom       string    `gorm:"size:190" json:"nom"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the table name for Coordination.
func (Coordination) TableName() string { return "coordinations" }

// Site is an independently operating location that owns a subset of the
// cartes and authenticates with an API key.
type Site struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Nom            string `gorm:"size:190" json:"nom"`
	CoordinationID uint   `gorm:"index" json:"coordination_id"`
	ApiKey         string `gorm:"size:128" json:"-"`
	// Actif is a pointer so a deactivation survives struct-based writes:
	// with a plain bool the default tag makes GORM drop the false value.
	Actif      *bool      `gorm:"default:true" json:"actif"`
	LastSyncAt *time.Time `json:"last_sync_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName sets the table name for Site.
func (Site) TableName() string { return "sites" }

// Sync history statuses.
const (
	SyncEnCours = "EN_COURS"
	SyncTermine = "TERMINE"
	SyncErreur  = "ERREUR"
)

// SyncHistory records one upload call: created at upload start, finalized
// with the per-operation counts at commit.
type SyncHistory struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SiteID       uint       `gorm:"index" json:"site_id"`
	Statut       string     `gorm:"size:20" json:"statut"`
	Inserts      int        `json:"inserts"`
	Updates      int        `json:"updates"`
	Deletes      int        `json:"deletes"`
	Conflicts    int        `json:"conflicts"`
	Errors       int        `json:"errors"`
	AppliedCount int        `json:"applied_count"`
	ClientErrors int        `json:"client_errors"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at"`
}

// TableName sets the table name for SyncHistory.
func (SyncHistory) TableName() string { return "sync_histories" }

// SyncConflict stores a rejected stale update: the client payload exactly as
// uploaded and the server's row at rejection time. The protocol never
// resolves these; an operator does.
type SyncConflict struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CarteID        uint            `gorm:"index" json:"carte_id"`
	SiteID         uint            `gorm:"index" json:"site_id"`
	ClientVersion  int             `json:"client_version"`
	ServerVersion  int             `json:"server_version"`
	ClientPayload  json.RawMessage `gorm:"type:json" json:"client_payload"`
	ServerSnapshot json.RawMessage `gorm:"type:json" json:"server_snapshot"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName sets the table name for SyncConflict.
func (SyncConflict) TableName() string { return "sync_conflicts" }
