package sitesync

import (
	"time"

	"carte-manager/feature/cartes"
)

// Upload operation types.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Per-item processing statuses.
const (
	StatusApplique = "OK"
	StatusConflit  = "conflit"
	StatusErreur   = "erreur"
)

// Modification is one client-side change in an upload batch. LocalID is
// the client's own identifier, echoed back so the client can map results;
// PgID and Version address the central row for UPDATE and DELETE.
type Modification struct {
	Operation      string     `json:"operation"`
	LocalID        string     `json:"local_id"`
	PgID           uint       `json:"pg_id,omitempty"`
	Version        int        `json:"version,omitempty"`
	CoordinationID uint       `json:"coordination_id"`
	Nom            string     `json:"nom"`
	Prenoms        string     `json:"prenoms"`
	SiteRetrait    string     `json:"site_retrait"`
	LieuEnreg      string     `json:"lieu_enregistrement"`
	Rangement      string     `json:"rangement"`
	LieuNaissance  string     `json:"lieu_naissance"`
	DateNaissance  *time.Time `json:"date_naissance"`
	Contacts       string     `json:"contacts"`
	Delivrance     string     `json:"delivrance"`
	ContactRetrait string     `json:"contact_retrait"`
	DateDelivrance *time.Time `json:"date_delivrance"`
}

// UploadRequest is the body of POST /upload. LastSync is the cursor
// for the download feed piggybacked on the response; nil serves the feed
// from the beginning.
type UploadRequest struct {
	Modifications []Modification `json:"modifications"`
	LastSync      *time.Time     `json:"last_sync,omitempty"`
}

// ProcessedItem reports the outcome of one modification. A conflict or an
// error on one item never aborts the batch.
type ProcessedItem struct {
	LocalID string `json:"local_id"`
	PgID    uint   `json:"pg_id,omitempty"`
	Version int    `json:"version,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// UploadCounts aggregates the per-operation outcomes of one upload batch.
type UploadCounts struct {
	Inserts   int `json:"inserts"`
	Updates   int `json:"updates"`
	Deletes   int `json:"deletes"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// UploadResponse summarizes one upload batch. Download carries the feed
// since the request's last_sync cursor, so one round trip covers both
// directions of a sync session.
type UploadResponse struct {
	HistoryID uint            `json:"history_id"`
	Uploaded  UploadCounts    `json:"uploaded"`
	Download  []cartes.Carte  `json:"download"`
	Processed []ProcessedItem `json:"processed"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	SiteID uint   `json:"site_id"`
	ApiKey string `json:"api_key"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DownloadResponse is the page served by GET /download. ServerTime is
// the cursor value the client should persist for its next call.
type DownloadResponse struct {
	Cartes     []cartes.Carte `json:"cartes"`
	Count      int            `json:"count"`
	ServerTime time.Time      `json:"server_time"`
}

// ConfirmRequest reports the client-side outcome of applying a download.
// Clients may send explicit id/error lists; only the counts are stored.
type ConfirmRequest struct {
	HistoryID    uint     `json:"history_id,omitempty"`
	AppliedCount int      `json:"applied_count"`
	ClientErrors int      `json:"client_errors"`
	AppliedIDs   []uint   `json:"applied_ids,omitempty"`
	ErrorList    []string `json:"errors,omitempty"`
}

// StatusResponse describes a site's synchronization health: its owned
// record counters, freshness classification, and recent history.
type StatusResponse struct {
	SiteID          uint                 `json:"site_id"`
	Statut          string               `json:"statut"`
	TotalCartes     int64                `json:"total_cartes"`
	CartesEnAttente int64                `json:"cartes_en_attente"`
	CartesSync      int64                `json:"cartes_synchronisees"`
	LastSyncAt      *time.Time           `json:"last_sync_at"`
	Historique      []cartes.SyncHistory `json:"historique"`
}

// Site synchronization health statuses.
const (
	EtatOK         = "OK"
	EtatEnRetard   = "EN_RETARD"
	EtatJamaisSync = "JAMAIS_SYNC"
)
