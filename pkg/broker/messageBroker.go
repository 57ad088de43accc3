package broker

import "context"

// MessageBroker defines the operations to publish messages to a broker.
// Delivery is best effort: an error means the message was not accepted and
// the caller decides whether to retry.
type MessageBroker interface {
	// Publish sends the payload to the given topic with the given routing key
	// and optional headers.
	Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error
	// Close cleans up any resources (connections).
	Close() error
}
