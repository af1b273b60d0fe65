// SPDX-License-Identifier: Apache-2.0

// Package core holds the types shared by bridges, the runtime and the
// operator surfaces: semantic events, run ids and health checks.
package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	// HealthHealthy indicates the component is fully operational.
	HealthHealthy HealthStatus = "HEALTHY"

	// HealthDegraded indicates the component is alive with reduced function,
	// for example a paused bridge.
	HealthDegraded HealthStatus = "DEGRADED"

	// HealthUnhealthy indicates the component is not operational.
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

// HealthResult represents the result of a health check.
type HealthResult struct {
	Status    HealthStatus `json:"status"`
	Component string       `json:"component"`
	Message   string       `json:"message,omitempty"`
	LastCheck time.Time    `json:"last_check"`
	Error     error        `json:"-"`
}

// HealthChecker checks the health of a component.
type HealthChecker interface {
	Check(ctx context.Context) HealthResult
}

// HealthCheckerFunc adapts a function to HealthChecker. A zero LastCheck is
// filled with the current time.
type HealthCheckerFunc func(ctx context.Context) HealthResult

// Check implements HealthChecker.
func (f HealthCheckerFunc) Check(ctx context.Context) HealthResult {
	result := f(ctx)
	if result.LastCheck.IsZero() {
		result.LastCheck = time.Now()
	}
	return result
}

// HealthRegistry aggregates named health checkers.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checkers: make(map[string]HealthChecker)}
}

// Register adds or replaces the checker for name.
func (r *HealthRegistry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Unregister removes the checker for name.
func (r *HealthRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkers, name)
}

// Check runs the checker registered for name.
func (r *HealthRegistry) Check(ctx context.Context, name string) (HealthResult, error) {
	r.mu.RLock()
	checker, ok := r.checkers[name]
	r.mu.RUnlock()
	if !ok {
		return HealthResult{}, fmt.Errorf("checker not registered: %s", name)
	}
	result := checker.Check(ctx)
	result.Component = name
	return result, nil
}

// CheckAll runs every checker. Results are sorted by component name; the
// overall status is the worst individual status.
func (r *HealthRegistry) CheckAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	overall := HealthHealthy
	results := make([]HealthResult, 0, len(names))
	for _, name := range names {
		result, err := r.Check(ctx, name)
		if err != nil {
			continue
		}
		results = append(results, result)
		switch result.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}
	return results, overall
}
