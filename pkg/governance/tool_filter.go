// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"path"
	"strings"
)

// ToolFilter decides which operator tools are exposed, from allow and deny
// lists of names or glob patterns.
type ToolFilter struct {
	allowlist map[string]bool
	denylist  map[string]bool
}

// ToolFilterOption configures a ToolFilter.
type ToolFilterOption func(*ToolFilter)

// NewToolFilter creates a new ToolFilter with the given options.
func NewToolFilter(opts ...ToolFilterOption) *ToolFilter {
	tf := &ToolFilter{
		allowlist: make(map[string]bool),
		denylist:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// WithAllowlist sets the allowlist of permitted tool names/patterns.
func WithAllowlist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) { tf.AddToAllowlist(tools...) }
}

// WithDenylist sets the denylist of forbidden tool names/patterns.
func WithDenylist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) { tf.AddToDenylist(tools...) }
}

// ToolFilterFromConfig builds the filter of the MCP tool surface.
func ToolFilterFromConfig(allow, deny []string) *ToolFilter {
	return NewToolFilter(WithAllowlist(allow), WithDenylist(deny))
}

// IsAllowed checks a tool name. The denylist wins; a non-empty allowlist
// must contain the tool.
func (tf *ToolFilter) IsAllowed(toolName string) Decision {
	if tf == nil {
		return Decision{Allowed: true}
	}
	if matchesList(toolName, tf.denylist) {
		return Decision{Reason: "tool is in denylist"}
	}
	if len(tf.allowlist) > 0 && !matchesList(toolName, tf.allowlist) {
		return Decision{Reason: "tool is not in allowlist"}
	}
	return Decision{Allowed: true}
}

// FilterTools returns only the tools that pass the filter.
func (tf *ToolFilter) FilterTools(toolNames []string) []string {
	if tf == nil || (len(tf.allowlist) == 0 && len(tf.denylist) == 0) {
		return toolNames
	}
	filtered := make([]string, 0, len(toolNames))
	for _, name := range toolNames {
		if tf.IsAllowed(name).Allowed {
			filtered = append(filtered, name)
		}
	}
	return filtered
}

func matchesList(toolName string, list map[string]bool) bool {
	if list[toolName] {
		return true
	}
	for pattern := range list {
		if ok, err := path.Match(pattern, toolName); err == nil && ok {
			return true
		}
	}
	return false
}

// AddToAllowlist adds tools to the allowlist.
func (tf *ToolFilter) AddToAllowlist(tools ...string) {
	for _, tool := range tools {
		tool = strings.TrimSpace(tool)
		if tool != "" {
			tf.allowlist[tool] = true
		}
	}
}

// AddToDenylist adds tools to the denylist.
func (tf *ToolFilter) AddToDenylist(tools ...string) {
	for _, tool := range tools {
		tool = strings.TrimSpace(tool)
		if tool != "" {
			tf.denylist[tool] = true
		}
	}
}
