// Package journal implements the reversible action journal.
//
// Every mutation in the system appends one immutable entry carrying the
// actor, the action type, the affected table and row, and JSON before/after
// snapshots. Entries are never edited or deleted in the hot path; only the
// annulee flag flips, exactly once, when an operator undoes the action.
//
// # Compensation
//
// Undo computes a compensating write from the captured snapshots through
// the core/schema registry: delete for INSERT, column restore for UPDATE,
// re-insert for DELETE. AnnulerImport is the coarse alternative that drops
// a whole import batch with a single summary entry.
//
// # Retention
//
// Prune archives expired entries to object storage as JSON before deleting
// them, so the audit trail survives retention. Each entry is also published
// to Kafka, best effort, for downstream audit consumers.
package journal
