// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"maps"
	"strings"

	"github.com/jllopis/kairos-bdi/pkg/config"
)

// StaticProvider serves a fixed list of endpoints.
type StaticProvider struct {
	Entries []AgentEndpoint
}

// NewConfigProvider lists the peers declared in configuration, sorted by
// name.
func NewConfigProvider(cfg *config.Config) *StaticProvider {
	provider := &StaticProvider{}
	if cfg == nil {
		return provider
	}
	for name, peer := range cfg.Peers {
		provider.Entries = append(provider.Entries, AgentEndpoint{
			Name:     strings.TrimSpace(name),
			GRPCAddr: strings.TrimSpace(peer.GRPCAddr),
			Labels:   maps.Clone(peer.Labels),
		})
	}
	SortByName(provider.Entries)
	return provider
}

// List returns the configured endpoints.
func (p *StaticProvider) List(_ context.Context) ([]AgentEndpoint, error) {
	if p == nil {
		return nil, nil
	}
	return append([]AgentEndpoint(nil), p.Entries...), nil
}
