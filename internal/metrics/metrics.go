package metrics

import "time"

// Metrics tracks Stripe traffic and subscription command outcomes. All
// methods must be safe for concurrent use.
type Metrics interface {
	// RecordProviderCall records one Stripe API call.
	// op: short operation name (e.g. "create_subscription")
	// status: "ok" or "error"
	RecordProviderCall(op, status string)

	// RecordProviderCallDuration records how long a Stripe API call took.
	RecordProviderCallDuration(op string, duration time.Duration)

	// RecordCommand records a subscription command handled by the service.
	// command: "resolve", "create", "update" or "cancel"
	// status: "ok", "invalid", "missing" or "error"
	RecordCommand(command, status string)
}

// Noop is the default when no metrics backend is configured.
type Noop struct{}

func (Noop) RecordProviderCall(_, _ string)                    {}
func (Noop) RecordProviderCallDuration(_ string, _ time.Duration) {}
func (Noop) RecordCommand(_, _ string)                         {}
