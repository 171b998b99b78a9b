package events

import "context"

// NoopBus is used when event publishing is disabled. Publishes succeed
// silently and subscriptions never deliver.
type NoopBus struct{}

var _ EventBus = (*NoopBus)(nil)

func (NoopBus) Publish(ctx context.Context, event Event) error { return nil }

func (NoopBus) Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error {
	return nil
}

func (NoopBus) Close() {}

func (NoopBus) Health() error { return nil }
