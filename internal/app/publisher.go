package app

import "context"

// Routing keys for outbound domain events.
const (
	EventAttemptSubmitted = "attempt.submitted"
	EventRequestCreated   = "attempt.request.created"
	EventRequestResolved  = "attempt.request.resolved"
)

// Publisher forwards domain events to other services. Delivery is best
// effort: failures are logged and never fail the use case.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
