// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package bdi

import (
	"fmt"

	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/term"
)

// Values converts Go values into term arguments. Strings become quoted
// strings here; BuildTerm later turns top-level ones into atoms.
func Values(raw ...any) []term.Value {
	out := make([]term.Value, len(raw))
	for i, v := range raw {
		out[i] = toValue(v)
	}
	return out
}

func toValue(v any) term.Value {
	switch x := v.(type) {
	case term.Value:
		return x
	case string:
		return term.String(x)
	case bool:
		if x {
			return term.Atom("true")
		}
		return term.Atom("false")
	case int:
		return term.Int(x)
	case int32:
		return term.Int(x)
	case int64:
		return term.Int(x)
	case uint:
		return term.Int(x)
	case float32:
		return term.Float(x)
	case float64:
		return term.Float(x)
	case []any:
		items := make(term.Tuple, len(x))
		for i, item := range x {
			items[i] = toValue(item)
		}
		return items
	case []string:
		items := make(term.Tuple, len(x))
		for i, item := range x {
			items[i] = term.String(item)
		}
		return items
	default:
		return term.String(fmt.Sprint(x))
	}
}

// PrepareArgs wraps top-level string arguments as atoms and leaves every
// other value unchanged.
func PrepareArgs(args []term.Value) []term.Value {
	out := make([]term.Value, len(args))
	for i, arg := range args {
		if s, ok := arg.(term.String); ok {
			out[i] = term.Atom(string(s))
			continue
		}
		out[i] = arg
	}
	return out
}

// BuildTerm builds functor(args) frozen against intention. A non-empty origin
// is attached as the source annotation.
func BuildTerm(functor string, args []term.Value, intention *engine.Intention, origin string) *term.Term {
	t := term.FreezeTerm(term.New(functor, PrepareArgs(args)...), engine.ScopeOf(intention))
	if origin != "" {
		t = t.WithOrigin(origin)
	}
	return t
}

// BuildSingletonSet returns the mutations that leave exactly one belief of
// functor/arity in view: a removal for every belief that does not unify with
// the target and an addition unless one already does.
func BuildSingletonSet(view engine.BeliefView, functor string, args []term.Value) []Mutation {
	return singletonSet(view, BuildTerm(functor, args, nil, term.PerceptOrigin))
}

func singletonSet(view engine.BeliefView, target *term.Term) []Mutation {
	var out []Mutation
	found := false
	if view != nil {
		for _, have := range view.Lookup(target.Key()) {
			if term.Unifies(target, have) {
				found = true
				continue
			}
			out = append(out, Mutation{
				Trigger:   engine.Removal,
				Goal:      engine.Belief,
				Term:      have,
				Intention: engine.NewIntention(),
			})
		}
	}
	if !found {
		out = append(out, Mutation{
			Trigger:   engine.Addition,
			Goal:      engine.Belief,
			Term:      target,
			Intention: engine.NewIntention(),
		})
	}
	return out
}
