package billing

import (
	"errors"
	"fmt"
)

// ErrNoSubscription is returned by commands that require an existing
// subscription when resolution finds none for the email.
var ErrNoSubscription = errors.New("no existing subscription")

// ValidationError marks a request that was rejected before any provider
// call was made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a failed payment provider call. Msg carries the
// provider's own message so clients see the same text Stripe produced.
type ProviderError struct {
	Op  string
	Msg string
	Err error
}

func (e *ProviderError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
