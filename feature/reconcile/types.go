package reconcile

import "time"

// Candidate is one incoming row of a bulk import, matched against the
// record store by its natural key (nom, prenoms, site_retrait).
type Candidate struct {
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

// Per-candidate outcomes.
const (
	OutcomeInsert  = "insert"
	OutcomeUpdate  = "update"
	OutcomeDoublon = "doublon"
	OutcomeErreur  = "erreur"
)

// ItemResult reports what happened to one candidate, by position in the
// uploaded batch.
type ItemResult struct {
	Index          int      `json:"index"`
	CarteID        uint     `json:"carte_id,omitempty"`
	Outcome        string   `json:"outcome"`
	ChangedColumns []string `json:"changed_columns,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Report summarizes a reconciliation run.
type Report struct {
	BatchID   string       `json:"import_batch_id"`
	Total     int          `json:"total"`
	Inserts   int          `json:"inserts"`
	Updates   int          `json:"updates"`
	Doublons  int          `json:"doublons"`
	Errors    int          `json:"errors"`
	Items     []ItemResult `json:"items"`
	StartedAt time.Time    `json:"started_at"`
}
