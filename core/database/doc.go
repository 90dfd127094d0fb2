// Package database manages the GORM database connection and introspection.
//
// It supports MySQL for production deployments and SQLite for small
// single-host installs and tests, selected by the Driver config field.
//
// # Components
//
//   - Connect: opens the connection with pool settings and a ping check.
//   - GetTableColumns: dialect-aware column introspection (SHOW COLUMNS on
//     MySQL, PRAGMA table_info on SQLite), consumed by the schema registry
//     to verify the journal's table definitions against the live schema.
package database
