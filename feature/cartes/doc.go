// Package cartes defines the record-store entities and their access
// helpers: the tracked cartes, the coordinations and sites that own them,
// sync history rows and recorded conflicts.
//
// # Ownership and versions
//
// Every write helper scopes its predicate to the owning site, so a
// non-owner's update or delete affects zero rows instead of racing with the
// owner. UpdateIfVersion is the one compare-and-swap in the system: it
// applies changes only when the row still carries the expected version and
// bumps the version by exactly one.
package cartes
