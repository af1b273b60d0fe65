// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine defines the contract between the BDI bridge and a
// reasoning engine. The bridge treats the engine as a black box that can be
// stepped, can apply one belief or goal mutation at a time and exposes a
// read-only view of its belief base.
package engine

import (
	"context"
	"io"

	"github.com/jllopis/kairos-bdi/pkg/term"
)

// Trigger is the operation of a mutation.
type Trigger int

const (
	// Addition adds a belief or posts a goal.
	Addition Trigger = iota
	// Removal retracts a belief or drops a goal.
	Removal
)

// String renders the trigger as its AgentSpeak prefix.
func (t Trigger) String() string {
	if t == Removal {
		return "-"
	}
	return "+"
}

// Name returns a lowercase label used in logs and the audit journal.
func (t Trigger) Name() string {
	if t == Removal {
		return "remove"
	}
	return "add"
}

// GoalType is the target of a mutation.
type GoalType int

const (
	// Belief targets the belief base.
	Belief GoalType = iota
	// Achievement targets the goal set with an achievement goal.
	Achievement
)

// String renders the goal type as its AgentSpeak prefix.
func (g GoalType) String() string {
	if g == Achievement {
		return "!"
	}
	return ""
}

// Name returns a lowercase label used in logs and the audit journal.
func (g GoalType) Name() string {
	if g == Achievement {
		return "achievement"
	}
	return "belief"
}

// Intention is the execution context a term is frozen against.
type Intention struct {
	Scope term.Scope
}

// NewIntention returns an intention with an empty scope.
func NewIntention() *Intention {
	return &Intention{Scope: term.Scope{}}
}

// ScopeOf returns the scope of i, tolerating a nil intention.
func ScopeOf(i *Intention) term.Scope {
	if i == nil || i.Scope == nil {
		return term.Scope{}
	}
	return i.Scope
}

// BeliefView is a read-only view of an engine's belief base.
type BeliefView interface {
	// Keys lists belief groups in the store's own iteration order.
	Keys() []term.Key
	// Lookup returns the beliefs held for a group.
	Lookup(key term.Key) []*term.Term
}

// Agent is one running reasoning-engine instance.
type Agent interface {
	// Step advances reasoning by one increment.
	Step(ctx context.Context) error
	// Call applies one mutation.
	Call(ctx context.Context, trigger Trigger, goal GoalType, t *term.Term, intention *Intention) error
	// Beliefs exposes the belief base.
	Beliefs() BeliefView
}

// Builder creates agents from a program source.
type Builder interface {
	Build(ctx context.Context, name string, source io.Reader, actions *Actions) (Agent, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, name string, source io.Reader, actions *Actions) (Agent, error)

// Build implements Builder.
func (f BuilderFunc) Build(ctx context.Context, name string, source io.Reader, actions *Actions) (Agent, error) {
	return f(ctx, name, source, actions)
}
