// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"testing"
)

func TestToolFilter_EmptyFilter(t *testing.T) {
	filter := NewToolFilter()

	if !filter.IsAllowed("pause_agent").Allowed {
		t.Error("empty filter should allow all tools")
	}
	var nilFilter *ToolFilter
	if !nilFilter.IsAllowed("pause_agent").Allowed {
		t.Error("nil filter should allow all tools")
	}
}

func TestToolFilter_Lists(t *testing.T) {
	filter := NewToolFilter(
		WithAllowlist([]string{"list_*", "find_belief", "achieve"}),
		WithDenylist([]string{"achieve"}),
	)

	tests := []struct {
		name    string
		tool    string
		allowed bool
	}{
		{"glob match", "list_beliefs", true},
		{"exact match", "find_belief", true},
		{"denylist takes precedence", "achieve", false},
		{"not in allowlist", "pause_agent", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := filter.IsAllowed(tc.tool)
			if decision.Allowed != tc.allowed {
				t.Errorf("tool %q: expected allowed=%v, got %v (%s)", tc.tool, tc.allowed, decision.Allowed, decision.Reason)
			}
		})
	}
}

func TestToolFilter_FilterTools(t *testing.T) {
	filter := ToolFilterFromConfig(nil, []string{"*_agent"})

	input := []string{"list_agents", "pause_agent", "resume_agent", "add_belief"}
	expected := []string{"list_agents", "add_belief"}

	result := filter.FilterTools(input)
	if len(result) != len(expected) {
		t.Fatalf("expected %d tools, got %d: %v", len(expected), len(result), result)
	}
	for i, name := range expected {
		if result[i] != name {
			t.Errorf("index %d: expected %q, got %q", i, name, result[i])
		}
	}
}

func TestToolFilter_AddToLists(t *testing.T) {
	filter := NewToolFilter()

	filter.AddToAllowlist("list_agents", "  ")
	filter.AddToDenylist("achieve")

	if !filter.IsAllowed("list_agents").Allowed {
		t.Error("list_agents should be allowed after AddToAllowlist")
	}
	if filter.IsAllowed("achieve").Allowed {
		t.Error("achieve should be denied after AddToDenylist")
	}
	if filter.IsAllowed("add_belief").Allowed {
		t.Error("add_belief should be denied (not in allowlist)")
	}
}
