// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package term

// Scope holds variable bindings of an execution context.
type Scope map[string]Value

// Clone returns an independent copy of the scope.
func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Freeze resolves every bound variable of v against scope so the result no
// longer depends on it. Unbound variables are kept as they are.
func Freeze(v Value, scope Scope) Value {
	return freeze(v, scope, 0)
}

// FreezeTerm is Freeze specialised to terms.
func FreezeTerm(t *Term, scope Scope) *Term {
	if t == nil {
		return nil
	}
	return Freeze(t, scope).(*Term)
}

const maxFreezeDepth = 256

func freeze(v Value, scope Scope, depth int) Value {
	if depth > maxFreezeDepth {
		return v
	}
	switch x := v.(type) {
	case Var:
		bound := walk(x, scope)
		if bv, ok := bound.(Var); ok {
			return bv
		}
		return freeze(bound, scope, depth+1)
	case Tuple:
		out := make(Tuple, len(x))
		for i, item := range x {
			out[i] = freeze(item, scope, depth+1)
		}
		return out
	case *Term:
		if x == nil {
			return x
		}
		out := &Term{Functor: x.Functor}
		if len(x.Args) > 0 {
			out.Args = make([]Value, len(x.Args))
			for i, arg := range x.Args {
				out.Args[i] = freeze(arg, scope, depth+1)
			}
		}
		if len(x.Annotations) > 0 {
			out.Annotations = make([]*Term, len(x.Annotations))
			for i, ann := range x.Annotations {
				out.Annotations[i] = freeze(ann, scope, depth+1).(*Term)
			}
		}
		return out
	default:
		return v
	}
}

// Unify attempts to make a and b equal, extending scope with the bindings
// needed. Annotations do not take part. On failure scope is left untouched.
func Unify(a, b Value, scope Scope) bool {
	trial := scope.Clone()
	if !unify(a, b, trial) {
		return false
	}
	for k, v := range trial {
		scope[k] = v
	}
	return true
}

// Unifies reports whether a and b unify in an empty scope.
func Unifies(a, b Value) bool {
	return unify(a, b, Scope{})
}

// Ground reports whether v contains no variables.
func Ground(v Value) bool {
	switch x := v.(type) {
	case Var:
		return false
	case Tuple:
		for _, item := range x {
			if !Ground(item) {
				return false
			}
		}
	case *Term:
		for _, arg := range x.Args {
			if !Ground(arg) {
				return false
			}
		}
	}
	return true
}

func walk(v Value, scope Scope) Value {
	for i := 0; i < maxFreezeDepth; i++ {
		name, ok := v.(Var)
		if !ok || name == "_" {
			return v
		}
		bound, ok := scope[string(name)]
		if !ok {
			return v
		}
		v = bound
	}
	return v
}

func unify(a, b Value, scope Scope) bool {
	a = walk(a, scope)
	b = walk(b, scope)

	if va, ok := a.(Var); ok {
		return bindVar(va, b, scope)
	}
	if vb, ok := b.(Var); ok {
		return bindVar(vb, a, scope)
	}

	switch x := a.(type) {
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !unify(x[i], y[i], scope) {
				return false
			}
		}
		return true
	case *Term:
		y, ok := b.(*Term)
		if !ok || x == nil || y == nil {
			return ok && x == y
		}
		if x.Functor != y.Functor || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !unify(x.Args[i], y.Args[i], scope) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func bindVar(v Var, other Value, scope Scope) bool {
	if v == "_" {
		return true
	}
	if ov, ok := other.(Var); ok && ov == v {
		return true
	}
	scope[string(v)] = other
	return true
}
