// Package schema provides the table registry backing the action journal.
//
// The journal stores before/after snapshots of mutated rows as JSON and
// later replays them as compensating writes. Doing that generically needs
// to know, per table, which column is the primary key, which columns a
// snapshot may legitimately contain, and which columns must never be
// written back (the key itself and the duplicate-detection hash).
//
// # Why a registry
//
// The alternative, templating table and column names from strings found in
// journal rows, is an injection hazard and silently breaks when the schema
// drifts. The registry keeps the set of journaled tables closed, and
// Verify checks it against the live database at startup.
//
// # Typed values
//
// Snapshot values round-trip through the Value tagged union
// (text/number/date/bool/null) instead of raw interface{} soup, so a
// restored timestamp goes back to the database as a timestamp.
package schema
