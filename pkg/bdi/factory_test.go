// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package bdi

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/interpreter"
	"github.com/jllopis/kairos-bdi/pkg/term"
)

func TestValues(t *testing.T) {
	got := Values("a", 1, int64(2), 1.5, true, []any{"x", 3}, term.Atom("b"), struct{}{})
	want := []term.Value{
		term.String("a"),
		term.Int(1),
		term.Int(2),
		term.Float(1.5),
		term.Atom("true"),
		term.Tuple{term.String("x"), term.Int(3)},
		term.Atom("b"),
		term.String("{}"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Values mismatch (-want +got):\n%s", diff)
	}
}

func TestPrepareArgsWrapsOnlyTopLevelStrings(t *testing.T) {
	got := PrepareArgs([]term.Value{
		term.String("coffee"),
		term.Int(4),
		term.Tuple{term.String("nested")},
	})
	want := []term.Value{
		term.Atom("coffee"),
		term.Int(4),
		term.Tuple{term.String("nested")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("PrepareArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTerm(t *testing.T) {
	intention := &engine.Intention{Scope: term.Scope{"X": term.Int(7)}}

	got := BuildTerm("at", []term.Value{term.String("home"), term.Var("X"), term.Var("Y")}, intention, "bob")
	assert.Equal(t, `at(home,7,Y)[source(bob)]`, term.Render(got))
	assert.Equal(t, "bob", got.Origin())

	plain := BuildTerm("ready", nil, nil, "")
	assert.Equal(t, "ready", term.Render(plain))
	assert.Empty(t, plain.Origin())
}

func TestBuildSingletonSet(t *testing.T) {
	beliefs := interpreter.NewBeliefBase()
	beliefs.Add(term.New("temp", term.Int(10)))
	beliefs.Add(term.New("temp", term.Int(20)).WithOrigin("bob"))
	beliefs.Add(term.New("temp", term.Int(1), term.Int(2)))

	t.Run("existing match is kept", func(t *testing.T) {
		got := BuildSingletonSet(beliefs, "temp", Values(20))
		require.Len(t, got, 1)
		assert.Equal(t, "-temp(10)", got[0].String())
	})

	t.Run("no match adds the target", func(t *testing.T) {
		got := BuildSingletonSet(beliefs, "temp", Values(30))
		var rendered []string
		for _, m := range got {
			rendered = append(rendered, m.String())
		}
		assert.Equal(t, []string{
			"-temp(10)",
			"-temp(20)[source(bob)]",
			"+temp(30)[source(percept)]",
		}, rendered)
	})

	t.Run("empty store", func(t *testing.T) {
		got := BuildSingletonSet(nil, "mood", Values("calm"))
		require.Len(t, got, 1)
		assert.Equal(t, "+mood(calm)[source(percept)]", got[0].String())
	})
}
