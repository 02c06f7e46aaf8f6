package delivery

import "context"

// StubProvider performs no delivery; wired when no notifier is configured.
type StubProvider struct{}

func (StubProvider) Deliver(ctx context.Context, in *DeliverInput) error {
	return nil
}
