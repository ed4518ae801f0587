package mq

import (
	"context"
	"fmt"

	"github.com/admitportal/apiserver/config"
)

// FromConfig builds the broker named by cfg.Backend. It returns nil for
// "none", meaning events are not published.
func FromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return New(NewMemoryBackend(0)), nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("mq rabbitmq: %w", err)
		}
		return New(client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("mq pubsub: %w", err)
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
