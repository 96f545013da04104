package llmgateway

import (
	"sync"
	"time"

	"github.com/memobase-dev/memobase-go/errs"
)

// CircuitBreakerState mirrors the three states of the pack's circuit
// breaker pattern (graph.CircuitBreaker), re-scoped here to gate gateway
// calls instead of graph nodes.
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreakerConfig configures the breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	HalfOpenMaxCalls int
}

func (c *CircuitBreakerConfig) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
}

// CircuitBreaker guards the gateway's outbound calls: after
// FailureThreshold consecutive failures it opens and rejects calls for
// Timeout, then allows HalfOpenMaxCalls trial calls before closing again.
type CircuitBreaker struct {
	mu            sync.Mutex
	cfg           CircuitBreakerConfig
	state         CircuitBreakerState
	failures      int
	successes     int
	lastFailure   time.Time
	halfOpenCalls int
}

// NewCircuitBreaker builds a CircuitBreaker, applying defaults for any
// zero-valued field.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cfg.applyDefaults()
	return &CircuitBreaker{cfg: cfg, state: CircuitClosed}
}

func breakerRun[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	cb.mu.Lock()
	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.cfg.Timeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenCalls = 0
		} else {
			cb.mu.Unlock()
			return zero, errs.New(errs.ServiceUnavailable, "llmgateway: circuit breaker open")
		}
	case CircuitHalfOpen:
		if cb.halfOpenCalls >= cb.cfg.HalfOpenMaxCalls {
			cb.mu.Unlock()
			return zero, errs.New(errs.ServiceUnavailable, "llmgateway: circuit breaker half-open limit reached")
		}
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()

	result, err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		cb.successes = 0
		cb.lastFailure = time.Now()
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = CircuitOpen
		}
		return zero, err
	}
	cb.successes++
	cb.failures = 0
	if cb.state == CircuitHalfOpen && cb.successes >= cb.cfg.SuccessThreshold {
		cb.state = CircuitClosed
	}
	return result, nil
}

func (cb *CircuitBreaker) run(fn func() (string, error)) (string, error) {
	return breakerRun(cb, fn)
}
