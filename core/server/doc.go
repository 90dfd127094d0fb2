// Package server holds the HTTP server configuration.
//
// While the main application entry point handles the server startup, this
// package defines the configuration structure for server settings, such as
// the listen port, the admin key protecting the import/journal endpoints,
// and the JWT parameters used for site session tokens.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server
// settings and by the sync feature to issue and validate session tokens.
package server
