package config

// BrokerSettings holds configuration for the optional fan-out broker
// that republishes processed envelopes. An empty Type disables fan-out.
type BrokerSettings struct {
	Type      string `mapstructure:"type" validate:"omitempty,oneof=rabbitmq pubsub"`
	URL       string `mapstructure:"url"`
	Exchange  string `mapstructure:"exchange"`
	ProjectID string `mapstructure:"projectID"` // GCP Pub/Sub only
	PoolSize  int    `mapstructure:"pool_size"`
}
