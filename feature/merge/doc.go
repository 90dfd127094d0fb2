// Package merge decides, field by field, whether a candidate value should
// replace an existing one when two versions of the same carte are combined.
//
// Every resolver is a pure function: no I/O, no state, identical output for
// identical input. The reconciliation engine relies on that to re-evaluate
// decisions safely, and the idempotence property (resolving a value against
// itself never applies) guarantees that re-importing the same data is a
// no-op.
//
// # Policies
//
//   - free text: longer wins
//   - names: more diacritics wins, then longer
//   - places: more tokens wins, then longer
//   - contacts: international prefix beats local format beats length
//   - delivrance flag: a recipient name beats the "OUI" sentinel; between
//     two names the later delivery date wins
//   - delivery date: strictly later replaces
//   - birth date: never replaced once set
package merge
