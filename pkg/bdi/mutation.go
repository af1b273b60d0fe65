// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package bdi

import (
	"context"
	"sort"
	"sync"

	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/term"
	"github.com/jllopis/kairos-bdi/pkg/transport"
)

// Mutation is one pending change to the engine state.
type Mutation struct {
	Trigger   engine.Trigger
	Goal      engine.GoalType
	Term      *term.Term
	Intention *engine.Intention
	// Singleton marks an addition that replaces every other belief of the
	// same functor and arity when applied.
	Singleton bool
}

// String renders the mutation in AgentSpeak event notation, e.g. +!go(home).
func (m Mutation) String() string {
	return m.Trigger.String() + m.Goal.String() + term.Render(m.Term)
}

// Built-in illocutionary forces.
const (
	ForceNameTell    = "tell"
	ForceNameUntell  = "untell"
	ForceNameAchieve = "achieve"
)

// ForceKind is the closed set of force variants the cycle dispatches on.
type ForceKind int

const (
	ForceUnknown ForceKind = iota
	ForceTell
	ForceUntell
	ForceAchieve
	ForceCustom
)

func (k ForceKind) String() string {
	switch k {
	case ForceTell:
		return ForceNameTell
	case ForceUntell:
		return ForceNameUntell
	case ForceAchieve:
		return ForceNameAchieve
	case ForceCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Force is a resolved illocutionary force. Name keeps the raw metadata value.
type Force struct {
	Kind ForceKind
	Name string
}

// CustomHandler handles a message whose force was registered with
// RegisterForce. The cycle waits for it to return.
type CustomHandler func(ctx context.Context, msg transport.Message) error

type forceRegistry struct {
	mu     sync.RWMutex
	custom map[string]CustomHandler
}

func newForceRegistry() *forceRegistry {
	return &forceRegistry{custom: make(map[string]CustomHandler)}
}

func isBuiltinForce(name string) bool {
	switch name {
	case ForceNameTell, ForceNameUntell, ForceNameAchieve:
		return true
	}
	return false
}

func (r *forceRegistry) register(name string, handler CustomHandler) error {
	switch {
	case name == "":
		return errors.New(errors.CodeInvalidInput, "force name is required", nil)
	case isBuiltinForce(name):
		return errors.Newf(errors.CodeInvalidInput, "force %q is built in", name)
	case handler == nil:
		return errors.Newf(errors.CodeInvalidInput, "handler for force %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[name] = handler
	return nil
}

func (r *forceRegistry) resolve(name string) (Force, CustomHandler) {
	switch name {
	case ForceNameTell:
		return Force{Kind: ForceTell, Name: name}, nil
	case ForceNameUntell:
		return Force{Kind: ForceUntell, Name: name}, nil
	case ForceNameAchieve:
		return Force{Kind: ForceAchieve, Name: name}, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.custom[name]; ok {
		return Force{Kind: ForceCustom, Name: name}, h
	}
	return Force{Kind: ForceUnknown, Name: name}, nil
}

func (r *forceRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.custom))
	for name := range r.custom {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
