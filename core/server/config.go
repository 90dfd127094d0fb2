package server

import "time"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// AdminKey is the secret key required to access the admin endpoints
	// (bulk import and journal administration).
	AdminKey string `mapstructure:"admin_key" default:""`
	// JwtSecret signs the site session tokens issued by /login.
	JwtSecret string `mapstructure:"jwt_secret" default:""`
	// TokenTTLMinutes is the lifetime of a site session token in minutes.
	TokenTTLMinutes int `mapstructure:"token_ttl_minutes" default:"60"`
}

// TokenTTL returns the session token lifetime as a duration.
// Falls back to one hour when the configured value is not positive.
func (c Config) TokenTTL() time.Duration {
	if c.TokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}
