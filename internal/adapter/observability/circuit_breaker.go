package observability

import (
	"fmt"
	"sync"
	"time"
)

// CircuitBreakerStateValue represents the state of a circuit breaker.
type CircuitBreakerStateValue int

const (
	// StateClosed means requests are allowed.
	StateClosed CircuitBreakerStateValue = iota
	// StateOpen means requests are blocked.
	StateOpen
	// StateHalfOpen means a limited number of test requests are allowed.
	StateHalfOpen
)

// CircuitBreaker guards an external dependency from repeated failures.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	timeout      time.Duration
	state        CircuitBreakerStateValue
	failures     int
	lastFailure  time.Time
	successCount int
	halfOpenMax  int
	mu           sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker that opens after maxFailures
// consecutive failures and probes again after timeout.
func NewCircuitBreaker(name string, maxFailures int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		timeout:     timeout,
		state:       StateClosed,
		halfOpenMax: 3,
	}
}

// Call executes fn under circuit breaker protection.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.timeout {
		cb.state = StateHalfOpen
		cb.successCount = 0
	}

	if !cb.allow() {
		RecordCircuitBreakerStatus(cb.name, int(cb.state))
		return fmt.Errorf("circuit breaker %s is %s", cb.name, cb.stateString())
	}

	err := fn()
	cb.update(err)
	RecordCircuitBreakerStatus(cb.name, int(cb.state))
	return err
}

func (cb *CircuitBreaker) allow() bool {
	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return cb.successCount < cb.halfOpenMax
	default:
		return false
	}
}

func (cb *CircuitBreaker) update(err error) {
	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
		return
	}
	if cb.state == StateClosed {
		cb.failures = 0
	}
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.successCount = 0
			cb.failures = 0
		}
	}
}

func (cb *CircuitBreaker) stateString() string {
	switch cb.state {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() CircuitBreakerStateValue {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsOpen reports whether the breaker currently blocks requests.
func (cb *CircuitBreaker) IsOpen() bool { return cb.GetState() == StateOpen }

// Reset returns the breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successCount = 0
}
