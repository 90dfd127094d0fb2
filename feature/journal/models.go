package journal

import (
	"encoding/json"
	"time"
)

// Action types a journal entry can carry. Only INSERT, UPDATE and DELETE
// are compensable; ANNULATION and ANNULATION_IMPORT document compensations
// themselves and can never be undone.
const (
	ActionInsert           = "INSERT"
	ActionUpdate           = "UPDATE"
	ActionDelete           = "DELETE"
	ActionAnnulation       = "ANNULATION"
	ActionAnnulationImport = "ANNULATION_IMPORT"
)

// Entry is one immutable audit record of a mutation. Its core fields are
// never modified after creation; only the annulee flag and its companion
// fields flip, exactly once, when the entry is undone.
type Entry struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Acteur      string          `gorm:"size:190" json:"acteur"`
	Action      string          `gorm:"size:30;index" json:"action"`
	TableCible  string          `gorm:"size:64;index" json:"table_cible"`
	RecordID    uint            `gorm:"index" json:"record_id"`
	Avant       json.RawMessage `gorm:"type:json" json:"avant"`
	Apres       json.RawMessage `gorm:"type:json" json:"apres"`
	Description string          `gorm:"size:500" json:"description"`
	BatchID     string          `gorm:"size:64;index" json:"batch_id"`
	// RefJournalID cross-references the undone entry on ANNULATION rows.
	RefJournalID *uint      `gorm:"index" json:"ref_journal_id"`
	Annulee      bool       `gorm:"default:false;index" json:"annulee"`
	AnnuleePar   string     `gorm:"size:190" json:"annulee_par"`
	AnnuleeAt    *time.Time `json:"annulee_at"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

// TableName sets the table name for Entry.
func (Entry) TableName() string { return "journal_entries" }
