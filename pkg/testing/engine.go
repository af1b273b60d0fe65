// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides test doubles for bridge collaborators: a
// reasoning engine that records every call and step, and a mailbox with
// scripted inbound messages.
//
// Example usage:
//
//	eng := testing.NewRecordingEngine()
//	box := testing.NewScriptedMailbox(msg)
//	bridge := bdi.New("alice", box, eng.Builder())
package testing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/interpreter"
	"github.com/jllopis/kairos-bdi/pkg/term"
)

// OpKind distinguishes recorded engine operations.
type OpKind string

const (
	OpCall OpKind = "call"
	OpStep OpKind = "step"
)

// Op is one recorded engine interaction.
type Op struct {
	Kind      OpKind
	Trigger   engine.Trigger
	Goal      engine.GoalType
	Term      *term.Term
	Intention *engine.Intention
}

// String renders the op as "step" or "call +!goal(x)".
func (o Op) String() string {
	if o.Kind == OpStep {
		return string(OpStep)
	}
	return fmt.Sprintf("call %s%s%s", o.Trigger, o.Goal, term.Render(o.Term))
}

// RecordingEngine is an engine.Agent that records every interaction and
// applies belief mutations to a real belief base, so introspection works.
type RecordingEngine struct {
	mu      sync.Mutex
	ops     []Op
	beliefs *interpreter.BeliefBase
	callErr error
	stepErr error
	onStep  func(ctx context.Context) error
	actions *engine.Actions
	builds  int
	source  string
}

var _ engine.Agent = (*RecordingEngine)(nil)

// NewRecordingEngine returns an engine with an empty belief base.
func NewRecordingEngine() *RecordingEngine {
	return &RecordingEngine{beliefs: interpreter.NewBeliefBase()}
}

// WithBeliefs seeds the belief base.
func (e *RecordingEngine) WithBeliefs(beliefs ...*term.Term) *RecordingEngine {
	for _, b := range beliefs {
		e.beliefs.Add(b)
	}
	return e
}

// FailCalls makes every later Call return err.
func (e *RecordingEngine) FailCalls(err error) *RecordingEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callErr = err
	return e
}

// FailSteps makes every later Step return err.
func (e *RecordingEngine) FailSteps(err error) *RecordingEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepErr = err
	return e
}

// OnStep runs fn inside every Step, after it is recorded.
func (e *RecordingEngine) OnStep(fn func(ctx context.Context) error) *RecordingEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStep = fn
	return e
}

// Step implements engine.Agent.
func (e *RecordingEngine) Step(ctx context.Context) error {
	e.mu.Lock()
	e.ops = append(e.ops, Op{Kind: OpStep})
	err, hook := e.stepErr, e.onStep
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		return hook(ctx)
	}
	return nil
}

// Call implements engine.Agent.
func (e *RecordingEngine) Call(_ context.Context, trigger engine.Trigger, goal engine.GoalType, t *term.Term, intention *engine.Intention) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, Op{Kind: OpCall, Trigger: trigger, Goal: goal, Term: t.Clone(), Intention: intention})
	if e.callErr != nil {
		return e.callErr
	}
	if goal != engine.Belief {
		return nil
	}
	frozen := term.FreezeTerm(t, engine.ScopeOf(intention))
	if trigger == engine.Addition {
		e.beliefs.Add(frozen)
	} else {
		e.beliefs.Remove(frozen)
	}
	return nil
}

// Beliefs implements engine.Agent.
func (e *RecordingEngine) Beliefs() engine.BeliefView { return e.beliefs }

// Ops returns the recorded interactions in order.
func (e *RecordingEngine) Ops() []Op {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Op(nil), e.ops...)
}

// Trace renders Ops as strings.
func (e *RecordingEngine) Trace() []string {
	ops := e.Ops()
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}

// Calls returns only the recorded calls.
func (e *RecordingEngine) Calls() []Op {
	var out []Op
	for _, op := range e.Ops() {
		if op.Kind == OpCall {
			out = append(out, op)
		}
	}
	return out
}

// Steps returns the number of recorded steps.
func (e *RecordingEngine) Steps() int {
	n := 0
	for _, op := range e.Ops() {
		if op.Kind == OpStep {
			n++
		}
	}
	return n
}

// Reset forgets recorded ops; beliefs are kept.
func (e *RecordingEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = nil
}

// Actions returns the builtin registry handed to the last Build.
func (e *RecordingEngine) Actions() *engine.Actions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actions
}

// Builds returns how many times the builder produced this engine.
func (e *RecordingEngine) Builds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builds
}

// Source returns the program text read by the last Build.
func (e *RecordingEngine) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// Builder returns an engine.Builder that always yields this engine.
func (e *RecordingEngine) Builder() engine.Builder {
	return engine.BuilderFunc(func(_ context.Context, _ string, source io.Reader, actions *engine.Actions) (engine.Agent, error) {
		var text string
		if source != nil {
			data, err := io.ReadAll(source)
			if err != nil {
				return nil, err
			}
			text = string(data)
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.builds++
		e.actions = actions
		e.source = text
		return e, nil
	})
}
