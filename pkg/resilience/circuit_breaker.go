// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState string

const (
	StateClosed   CircuitBreakerState = "closed"
	StateOpen     CircuitBreakerState = "open"
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// SuccessThreshold is the number of half-open successes that closes it.
	SuccessThreshold int

	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration

	// Name identifies the protected peer in errors.
	Name string
}

// CircuitBreaker fails calls fast while a peer keeps failing.
type CircuitBreaker struct {
	config       CircuitBreakerConfig
	mu           sync.Mutex
	state        CircuitBreakerState
	failures     int
	successes    int
	lastFailTime time.Time
	now          func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	if config.Cooldown == 0 {
		config.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{config: config, state: StateClosed, now: time.Now}
}

// Call runs fn unless the circuit is open. An open circuit returns an
// unrecoverable transport error so retries stop at once. fn runs without
// the breaker lock held.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		return errors.New(errors.CodeTransport, "circuit breaker open", nil).
			WithContext("peer", cb.config.Name).
			WithRecoverable(false)
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailTime) >= cb.config.Cooldown {
		cb.state = StateHalfOpen
		cb.successes = 0
	}
	return cb.state != StateOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		cb.lastFailTime = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.failures = 0
		}
		return
	}
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = StateClosed
		}
	}
}

// State returns the current state, applying a pending cooldown transition.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.allow()
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
}

// Breakers hands out one circuit breaker per peer name.
type Breakers struct {
	config   CircuitBreakerConfig
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakers creates a per-peer breaker set sharing config.
func NewBreakers(config CircuitBreakerConfig) *Breakers {
	return &Breakers{config: config, breakers: make(map[string]*CircuitBreaker)}
}

// For returns the breaker of peer, creating it on first use.
func (b *Breakers) For(peer string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[peer]; ok {
		return cb
	}
	cfg := b.config
	cfg.Name = peer
	cb := NewCircuitBreaker(cfg)
	b.breakers[peer] = cb
	return cb
}
