package events

// Config holds configuration for the Kafka event producer.
type Config struct {
	// Broker is the Kafka bootstrap address. Empty disables publishing.
	Broker string `mapstructure:"broker" default:""`
	// Topic is the topic journal events are written to.
	Topic string `mapstructure:"topic" default:"cartes.journal"`
	// Username enables SASL/PLAIN authentication when set.
	Username string `mapstructure:"username" default:""`
	// Password is the SASL/PLAIN password.
	Password string `mapstructure:"password" default:""`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}
