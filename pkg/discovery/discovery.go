// SPDX-License-Identifier: Apache-2.0

// Package discovery resolves agent names to the addresses of the processes
// hosting them.
package discovery

import (
	"context"
	"sort"
	"strings"

	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// AgentEndpoint is a reachable remote agent.
type AgentEndpoint struct {
	Name     string
	GRPCAddr string
	Labels   map[string]string
}

// Provider lists agent endpoints.
type Provider interface {
	List(ctx context.Context) ([]AgentEndpoint, error)
}

// Resolver aggregates providers in priority order.
type Resolver struct {
	providers []Provider
}

// NewResolver creates a resolver with providers in order of priority.
func NewResolver(providers ...Provider) (*Resolver, error) {
	filtered := make([]Provider, 0, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		filtered = append(filtered, provider)
	}
	if len(filtered) == 0 {
		return nil, errors.New(errors.CodeConfiguration, "no discovery providers configured", nil)
	}
	return &Resolver{providers: filtered}, nil
}

// Resolve returns endpoints in provider order. The first provider to name
// an agent wins.
func (r *Resolver) Resolve(ctx context.Context) ([]AgentEndpoint, error) {
	if r == nil {
		return nil, errors.New(errors.CodeConfiguration, "resolver is nil", nil)
	}
	out := make([]AgentEndpoint, 0)
	seen := map[string]struct{}{}
	for _, provider := range r.providers {
		entries, err := provider.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			key := normalizeKey(entry.Name)
			if key == "" || strings.TrimSpace(entry.GRPCAddr) == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, entry)
		}
	}
	return out, nil
}

// Lookup resolves a single agent by name.
func (r *Resolver) Lookup(ctx context.Context, name string) (AgentEndpoint, error) {
	entries, err := r.Resolve(ctx)
	if err != nil {
		return AgentEndpoint{}, err
	}
	key := normalizeKey(name)
	for _, entry := range entries {
		if normalizeKey(entry.Name) == key {
			return entry, nil
		}
	}
	return AgentEndpoint{}, errors.Newf(errors.CodeNotFound, "agent %q not found", name)
}

func normalizeKey(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

// SortByName sorts endpoints by name and then address.
func SortByName(endpoints []AgentEndpoint) {
	sort.Slice(endpoints, func(i, j int) bool {
		left := normalizeKey(endpoints[i].Name)
		right := normalizeKey(endpoints[j].Name)
		if left == right {
			return endpoints[i].GRPCAddr < endpoints[j].GRPCAddr
		}
		return left < right
	})
}
