package breaker

import (
	"errors"
	"fmt"
)

var ErrUnavailable = errors.New("breaker: unavailable")

// OpenCircuitBreakerError is returned by RunOrFail when the breaker is Open.
type OpenCircuitBreakerError struct {
	Key string
}

func (e *OpenCircuitBreakerError) Error() string {
	return fmt.Sprintf("breaker: %q is open", e.Key)
}

func (e *OpenCircuitBreakerError) Unwrap() error { return ErrUnavailable }

// IsolatedCircuitBreakerError is returned by RunOrFail when the breaker was
// manually isolated.
type IsolatedCircuitBreakerError struct {
	Key string
}

func (e *IsolatedCircuitBreakerError) Error() string {
	return fmt.Sprintf("breaker: %q is isolated", e.Key)
}

func (e *IsolatedCircuitBreakerError) Unwrap() error { return ErrUnavailable }
