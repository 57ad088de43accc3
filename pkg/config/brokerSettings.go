package config

// BrokerSettings holds configuration for connecting to a message broker.
type BrokerSettings struct {
	Type      string `mapstructure:"type" validate:"required,oneof=rabbitmq pubsub"`
	URL       string `mapstructure:"url"`
	Exchange  string `mapstructure:"exchange"`
	Queue     string `mapstructure:"queue"` // consumer-side queue bound to the exchange
	ProjectID string `mapstructure:"projectID"` // Optional for brokers like GCP Pub/Sub
	PoolSize  int    `mapstructure:"pool_size"`
}
