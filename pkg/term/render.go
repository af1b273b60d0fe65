// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package term

import (
	"math"
	"strconv"
	"strings"
)

// Render returns the canonical textual form of a value. Rendering a term
// produced by ParseTerm and parsing it again yields an equal term.
func Render(v Value) string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

// Unquoted renders v like Render but without quotes around strings. It is
// the human-facing form used when listing belief argument values.
func Unquoted(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	if t, ok := v.(*Term); ok && t.IsAtom() {
		return t.Functor
	}
	return Render(v)
}

func writeValue(b *strings.Builder, v Value) {
	switch x := v.(type) {
	case nil:
		b.WriteString("_")
	case String:
		b.WriteString(strconv.Quote(string(x)))
	case Int:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case Float:
		b.WriteString(formatFloat(float64(x)))
	case Var:
		b.WriteString(string(x))
	case Tuple:
		b.WriteByte('[')
		writeList(b, x)
		b.WriteByte(']')
	case *Term:
		writeTerm(b, x)
	}
}

func writeTerm(b *strings.Builder, t *Term) {
	if t == nil {
		b.WriteString("_")
		return
	}
	writeFunctor(b, t.Functor)
	if len(t.Args) > 0 {
		b.WriteByte('(')
		writeList(b, t.Args)
		b.WriteByte(')')
	}
	if len(t.Annotations) > 0 {
		b.WriteByte('[')
		for i, ann := range t.Annotations {
			if i > 0 {
				b.WriteByte(',')
			}
			writeTerm(b, ann)
		}
		b.WriteByte(']')
	}
}

func writeList(b *strings.Builder, items []Value) {
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		writeValue(b, item)
	}
}

// Functors that are not plain lower-case identifiers are single quoted.
func writeFunctor(b *strings.Builder, functor string) {
	if isPlainFunctor(functor) {
		b.WriteString(functor)
		return
	}
	b.WriteByte('\'')
	escaped := strings.ReplaceAll(functor, `\`, `\\`)
	b.WriteString(strings.ReplaceAll(escaped, `'`, `\'`))
	b.WriteByte('\'')
}

func isPlainFunctor(functor string) bool {
	if functor == "" {
		return false
	}
	name := functor
	if name[0] == '.' {
		name = name[1:]
		if name == "" {
			return false
		}
	}
	if !(name[0] >= 'a' && name[0] <= 'z') && name == functor {
		return false
	}
	if !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return false
		}
	}
	return true
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
