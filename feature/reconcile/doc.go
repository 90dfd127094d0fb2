// Package reconcile merges bulk import candidates into the record store.
//
// Each candidate is matched by its natural key (nom, prenoms,
// site_retrait). A miss inserts a fresh row at version 1; a hit resolves
// every column through the feature/merge policies and applies only the
// winning values, bumping the version. A candidate that changes nothing is
// a doublon. The whole batch runs in one transaction with per-item error
// reporting, and every write lands in the action journal tagged with the
// batch id so an entire import can be annulled afterwards.
package reconcile
