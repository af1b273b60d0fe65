// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package term models the logical terms exchanged between agents and the
// reasoning engine: a functor with ordered arguments plus an annotation side
// channel that records where a term came from.
//
// Terms are immutable once built. Every method that changes a term returns a
// copy.
package term

import "fmt"

// SourceAnnotation is the functor of the annotation that records a term's origin.
const SourceAnnotation = "source"

// PerceptOrigin marks facts generated by the agent itself rather than told by a peer.
const PerceptOrigin = "percept"

// Value is one argument of a term. The set of implementations is closed.
type Value interface {
	isValue()
}

// String is a quoted string argument.
type String string

// Int is an integer argument.
type Int int64

// Float is a floating point argument.
type Float float64

// Var is a logic variable. "_" is the anonymous variable and never binds.
type Var string

// Tuple is an ordered list of values, decoded from `[a, b, ...]`.
type Tuple []Value

// Term is an atom (no args) or a compound term.
type Term struct {
	Functor     string
	Args        []Value
	Annotations []*Term
}

func (String) isValue() {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (Var) isValue()    {}
func (Tuple) isValue()  {}
func (*Term) isValue()  {}

// Key identifies a belief group by functor and arity.
type Key struct {
	Functor string
	Arity   int
}

// String renders the key as functor/arity.
func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Functor, k.Arity)
}

// New builds a compound term. New(f) with no args is an atom.
func New(functor string, args ...Value) *Term {
	return &Term{Functor: functor, Args: append([]Value(nil), args...)}
}

// Atom builds a term without arguments.
func Atom(name string) *Term {
	return &Term{Functor: name}
}

// Arity returns the number of arguments.
func (t *Term) Arity() int {
	return len(t.Args)
}

// IsAtom reports whether the term has no arguments.
func (t *Term) IsAtom() bool {
	return len(t.Args) == 0
}

// Key returns the (functor, arity) pair used to group beliefs.
func (t *Term) Key() Key {
	return Key{Functor: t.Functor, Arity: len(t.Args)}
}

// Clone returns a deep copy of the term.
func (t *Term) Clone() *Term {
	if t == nil {
		return nil
	}
	return cloneValue(t).(*Term)
}

// Annotation returns the first annotation with the given functor.
func (t *Term) Annotation(functor string) (*Term, bool) {
	for _, ann := range t.Annotations {
		if ann.Functor == functor {
			return ann, true
		}
	}
	return nil, false
}

// WithAnnotation returns a copy with ann appended to the annotations.
func (t *Term) WithAnnotation(ann *Term) *Term {
	out := t.Clone()
	if ann != nil {
		out.Annotations = append(out.Annotations, ann.Clone())
	}
	return out
}

// WithoutAnnotations returns a copy with no annotations.
func (t *Term) WithoutAnnotations() *Term {
	out := t.Clone()
	out.Annotations = nil
	return out
}

// Origin returns the value of the source annotation, or "" when absent.
func (t *Term) Origin() string {
	ann, ok := t.Annotation(SourceAnnotation)
	if !ok || len(ann.Args) != 1 {
		return ""
	}
	switch v := ann.Args[0].(type) {
	case *Term:
		return v.Functor
	case String:
		return string(v)
	default:
		return Render(v)
	}
}

// WithOrigin returns a copy whose source annotation is origin. An empty
// origin removes the annotation.
func (t *Term) WithOrigin(origin string) *Term {
	out := t.Clone()
	kept := out.Annotations[:0]
	for _, ann := range out.Annotations {
		if ann.Functor != SourceAnnotation {
			kept = append(kept, ann)
		}
	}
	out.Annotations = kept
	if origin != "" {
		out.Annotations = append(out.Annotations, New(SourceAnnotation, Atom(origin)))
	}
	if len(out.Annotations) == 0 {
		out.Annotations = nil
	}
	return out
}

// MergeAnnotations returns a copy carrying the annotations of both terms,
// without duplicates.
func (t *Term) MergeAnnotations(other *Term) *Term {
	out := t.Clone()
	for _, ann := range other.Annotations {
		dup := false
		for _, have := range out.Annotations {
			if Render(have) == Render(ann) {
				dup = true
				break
			}
		}
		if !dup {
			out.Annotations = append(out.Annotations, ann.Clone())
		}
	}
	return out
}

// Display renders the term for humans; includeOrigin keeps annotations.
func (t *Term) Display(includeOrigin bool) string {
	if includeOrigin {
		return Render(t)
	}
	return Render(t.WithoutAnnotations())
}

// String implements fmt.Stringer with the canonical rendering.
func (t *Term) String() string {
	return Render(t)
}

func cloneValue(v Value) Value {
	switch x := v.(type) {
	case *Term:
		if x == nil {
			return (*Term)(nil)
		}
		out := &Term{Functor: x.Functor}
		if len(x.Args) > 0 {
			out.Args = make([]Value, len(x.Args))
			for i, arg := range x.Args {
				out.Args[i] = cloneValue(arg)
			}
		}
		if len(x.Annotations) > 0 {
			out.Annotations = make([]*Term, len(x.Annotations))
			for i, ann := range x.Annotations {
				out.Annotations[i] = cloneValue(ann).(*Term)
			}
		}
		return out
	case Tuple:
		out := make(Tuple, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
