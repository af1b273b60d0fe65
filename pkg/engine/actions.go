// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jllopis/kairos-bdi/pkg/term"
)

// VariadicArity registers a builtin for any number of arguments.
const VariadicArity = -1

// ActionFunc implements a builtin invoked by plan execution. call is the
// action term as written in the plan; its variables resolve against the
// intention scope.
type ActionFunc func(ctx context.Context, agent Agent, call *term.Term, intention *Intention) error

// Actions is the registry of builtins an engine may invoke.
type Actions struct {
	mu      sync.RWMutex
	actions map[actionKey]ActionFunc
}

type actionKey struct {
	name  string
	arity int
}

// NewActions returns a registry holding the default builtins.
func NewActions() *Actions {
	a := &Actions{actions: make(map[actionKey]ActionFunc)}
	a.Add(".print", VariadicArity, printAction)
	return a
}

// Add registers fn under name and arity, replacing any previous entry.
func (a *Actions) Add(name string, arity int, fn ActionFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.actions == nil {
		a.actions = make(map[actionKey]ActionFunc)
	}
	a.actions[actionKey{name: name, arity: arity}] = fn
}

// Lookup returns the builtin for name and arity, falling back to a
// variadic registration.
func (a *Actions) Lookup(name string, arity int) (ActionFunc, bool) {
	if a == nil {
		return nil, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if fn, ok := a.actions[actionKey{name: name, arity: arity}]; ok {
		return fn, true
	}
	fn, ok := a.actions[actionKey{name: name, arity: VariadicArity}]
	return fn, ok
}

// Names lists registered builtins as name/arity, sorted.
func (a *Actions) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.actions))
	for key := range a.actions {
		if key.arity == VariadicArity {
			out = append(out, key.name+"/*")
			continue
		}
		out = append(out, fmt.Sprintf("%s/%d", key.name, key.arity))
	}
	sort.Strings(out)
	return out
}

func printAction(ctx context.Context, _ Agent, call *term.Term, intention *Intention) error {
	frozen := term.FreezeTerm(call, ScopeOf(intention))
	parts := make([]string, 0, len(frozen.Args))
	for _, arg := range frozen.Args {
		parts = append(parts, term.Unquoted(arg))
	}
	slog.InfoContext(ctx, "engine.print", slog.String("text", strings.Join(parts, " ")))
	return nil
}
