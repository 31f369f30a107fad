package katcp

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards the requests of one client.
// *gobreaker.CircuitBreaker[*Message] satisfies it.
type CircuitBreaker interface {
	Execute(req func() (*Message, error)) (*Message, error)
	State() gobreaker.State
}

// CircuitBreakerState is the state of a client's circuit breaker.
type CircuitBreakerState = gobreaker.State

// NewCircuitBreakerConfig returns a Config.NewCircuitBreaker function.
//
// The breaker opens once at least 3 requests were seen in the interval and 60%
// of them failed. Only connection-level failures count: a reply with a non-ok
// status is a success, and so is a request cancelled by its context while
// waiting for the connection.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(addr string) CircuitBreaker {
	return func(addr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        addr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: breakerSuccess,
		}
		return gobreaker.NewCircuitBreaker[*Message](settings)
	}
}

// breakerSuccess reports whether err leaves the breaker's failure count alone.
// A *RequestError is a failure even when its cause is a cancelled context.
func breakerSuccess(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return false
	}
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// CircuitBreakerState returns the state of the client's circuit breaker,
// or gobreaker.StateClosed when none is configured.
func (c *Client) CircuitBreakerState() CircuitBreakerState {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}
