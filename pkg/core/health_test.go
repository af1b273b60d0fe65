// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"testing"
)

func constant(status HealthStatus) HealthChecker {
	return HealthCheckerFunc(func(context.Context) HealthResult {
		return HealthResult{Status: status}
	})
}

func TestHealthCheckerFuncStampsLastCheck(t *testing.T) {
	result := constant(HealthHealthy).Check(context.Background())
	if result.LastCheck.IsZero() {
		t.Errorf("expected LastCheck to be set by wrapper")
	}
}

func TestHealthRegistryCheckAll(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]HealthStatus
		want     HealthStatus
	}{
		{"empty", nil, HealthHealthy},
		{"all healthy", map[string]HealthStatus{"a": HealthHealthy, "b": HealthHealthy}, HealthHealthy},
		{"one degraded", map[string]HealthStatus{"a": HealthHealthy, "b": HealthDegraded}, HealthDegraded},
		{"unhealthy wins", map[string]HealthStatus{"a": HealthUnhealthy, "b": HealthDegraded}, HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewHealthRegistry()
			for name, status := range tt.statuses {
				registry.Register(name, constant(status))
			}
			results, overall := registry.CheckAll(context.Background())
			if overall != tt.want {
				t.Errorf("expected %v, got %v", tt.want, overall)
			}
			if len(results) != len(tt.statuses) {
				t.Fatalf("expected %d results, got %d", len(tt.statuses), len(results))
			}
			for i := 1; i < len(results); i++ {
				if results[i-1].Component > results[i].Component {
					t.Errorf("results not sorted: %v", results)
				}
			}
		})
	}
}

func TestHealthRegistryCheck(t *testing.T) {
	registry := NewHealthRegistry()
	registry.Register("bridge.alice", constant(HealthDegraded))

	result, err := registry.Check(context.Background(), "bridge.alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Component != "bridge.alice" || result.Status != HealthDegraded {
		t.Errorf("unexpected result %+v", result)
	}

	registry.Unregister("bridge.alice")
	if _, err := registry.Check(context.Background(), "bridge.alice"); err == nil {
		t.Errorf("expected error for unregistered checker")
	}
}
