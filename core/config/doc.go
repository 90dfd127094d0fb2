// Package config loads and aggregates the application configuration.
//
// Configuration comes from environment variables, optionally seeded by a
// .env file. Nested sections map to prefixed variables, e.g.
// SERVER_PORT -> server.port, SYNC_DOWNLOAD_LIMIT -> sync.download_limit.
//
// Defaults are declared as 'default' struct tags on each section's Config
// struct and registered into Viper by reflection, so every key works with
// AutomaticEnv without explicit binding calls.
package config
