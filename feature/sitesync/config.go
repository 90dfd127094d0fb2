package sitesync

import "time"

// Config holds configuration for the site synchronization protocol.
type Config struct {
	// DownloadLimit caps the number of records served per download call.
	DownloadLimit int `mapstructure:"download_limit" default:"500"`
	// DownloadAscending serves the download feed oldest-first when true.
	// The default newest-first order can starve older records behind the
	// limit; ascending drains the backlog in cursor order instead.
	DownloadAscending bool `mapstructure:"download_ascending" default:"false"`
	// LateThresholdHours is the age of the last confirmed sync beyond
	// which a site is reported EN_RETARD.
	LateThresholdHours int `mapstructure:"late_threshold_hours" default:"24"`
}

// Limit clamps a requested page size to the configured cap.
func (c Config) Limit(requested int) int {
	ceiling := c.DownloadLimit
	if ceiling <= 0 {
		ceiling = 500
	}
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
}

// LateThreshold returns the lateness cutoff as a duration.
func (c Config) LateThreshold() time.Duration {
	if c.LateThresholdHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.LateThresholdHours) * time.Hour
}
