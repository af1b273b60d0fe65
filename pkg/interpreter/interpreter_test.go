// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/term"
)

const greeter = `
name: greeter
beliefs:
  - likes("alice", "tea")
  - mood(happy)
plans:
  - label: greet
    trigger: +!greet(Who)
    context: [mood(M)]
    body:
      - +greeted(Who, M)
      - .print("hello", Who)
  - trigger: +alarm
    body:
      - +reacted
`

func build(t *testing.T, src string, actions *engine.Actions) *Agent {
	t.Helper()
	prog, err := ParseProgram([]byte(src))
	if err != nil {
		t.Fatalf("parse program: %v", err)
	}
	agent, err := New().BuildProgram(context.Background(), "", prog, actions)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return agent
}

func run(t *testing.T, agent *Agent, steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		if err := agent.Step(context.Background()); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func displayed(view engine.BeliefView, key term.Key, origin bool) []string {
	var out []string
	for _, b := range view.Lookup(key) {
		out = append(out, b.Display(origin))
	}
	return out
}

func TestInitialBeliefsArePercepts(t *testing.T) {
	agent := build(t, greeter, nil)
	if agent.Name() != "greeter" {
		t.Fatalf("expected program name as agent name, got %q", agent.Name())
	}
	want := []term.Key{{Functor: "likes", Arity: 2}, {Functor: "mood", Arity: 1}}
	if diff := cmp.Diff(want, agent.Beliefs().Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	got := displayed(agent.Beliefs(), want[0], true)
	if diff := cmp.Diff([]string{`likes("alice","tea")[source(percept)]`}, got); diff != "" {
		t.Fatalf("beliefs mismatch (-want +got):\n%s", diff)
	}
}

func TestAchievementRunsPlan(t *testing.T) {
	agent := build(t, greeter, nil)
	if err := agent.Call(context.Background(), engine.Addition, engine.Achievement, term.New("greet", term.String("bob")), nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if agent.Pending() != 1 {
		t.Fatalf("expected one intention, got %d", agent.Pending())
	}
	run(t, agent, 2)
	if agent.Pending() != 0 {
		t.Fatalf("expected intention to finish, got %d live", agent.Pending())
	}
	got := displayed(agent.Beliefs(), term.Key{Functor: "greeted", Arity: 2}, true)
	if diff := cmp.Diff([]string{`greeted("bob",happy)[source(self)]`}, got); diff != "" {
		t.Fatalf("beliefs mismatch (-want +got):\n%s", diff)
	}
}

func TestAchievementWithoutPlanIsEngineError(t *testing.T) {
	agent := build(t, greeter, nil)
	err := agent.Call(context.Background(), engine.Addition, engine.Achievement, term.Atom("fly"), nil)
	if !errors.Is(err, errors.ErrEngine) {
		t.Fatalf("expected engine error, got %v", err)
	}
}

func TestContextGuardsPlan(t *testing.T) {
	agent := build(t, greeter, nil)
	if err := agent.Call(context.Background(), engine.Removal, engine.Belief, term.New("mood", term.Var("_")), nil); err != nil {
		t.Fatalf("remove mood: %v", err)
	}
	err := agent.Call(context.Background(), engine.Addition, engine.Achievement, term.New("greet", term.String("bob")), nil)
	if !errors.Is(err, errors.ErrEngine) {
		t.Fatalf("expected no applicable plan once context fails, got %v", err)
	}
}

func TestBeliefAdditionPostsEvent(t *testing.T) {
	agent := build(t, greeter, nil)
	if err := agent.Call(context.Background(), engine.Addition, engine.Belief, term.Atom("alarm").WithOrigin("bob"), nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	run(t, agent, 1)
	if got := agent.Beliefs().Lookup(term.Key{Functor: "reacted"}); len(got) != 1 {
		t.Fatalf("expected plan reaction, got %v", got)
	}

	// Re-adding known content only merges annotations and posts nothing.
	if err := agent.Call(context.Background(), engine.Addition, engine.Belief, term.Atom("alarm").WithOrigin("carol"), nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if agent.Pending() != 0 {
		t.Fatalf("expected no new intention, got %d", agent.Pending())
	}
	got := displayed(agent.Beliefs(), term.Key{Functor: "alarm"}, true)
	if diff := cmp.Diff([]string{"alarm[source(bob),source(carol)]"}, got); diff != "" {
		t.Fatalf("merged annotations mismatch (-want +got):\n%s", diff)
	}
}

func TestRemovalRetractsEveryUnifyingBelief(t *testing.T) {
	agent := build(t, `
beliefs: [count(1), count(2), other]
plans: []
`, nil)
	if err := agent.Call(context.Background(), engine.Removal, engine.Belief, term.New("count", term.Var("N")), nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	want := []term.Key{{Functor: "other"}}
	if diff := cmp.Diff(want, agent.Beliefs().Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestCallFreezesAgainstIntention(t *testing.T) {
	agent := build(t, `plans: []`, nil)
	intention := &engine.Intention{Scope: term.Scope{"X": term.Int(7)}}
	if err := agent.Call(context.Background(), engine.Addition, engine.Belief, term.New("seen", term.Var("X")), intention); err != nil {
		t.Fatalf("call: %v", err)
	}
	got := displayed(agent.Beliefs(), term.Key{Functor: "seen", Arity: 1}, false)
	if diff := cmp.Diff([]string{"seen(7)"}, got); diff != "" {
		t.Fatalf("frozen belief mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceSubgoalAndTest(t *testing.T) {
	agent := build(t, `
beliefs: [counter(0)]
goals: [tick]
plans:
  - trigger: +!tick
    body:
      - "?counter(N)"
      - "!bump(N)"
  - trigger: +!bump(N)
    body:
      - "-+counter(next)"
`, nil)
	// tick: test, subgoal push; bump: replace; then unwinding pops both frames.
	for i := 0; i < 6 && agent.Pending() > 0; i++ {
		run(t, agent, 1)
	}
	if agent.Pending() != 0 {
		t.Fatalf("expected intentions to finish")
	}
	got := displayed(agent.Beliefs(), term.Key{Functor: "counter", Arity: 1}, false)
	if diff := cmp.Diff([]string{"counter(next)"}, got); diff != "" {
		t.Fatalf("counter mismatch (-want +got):\n%s", diff)
	}
}

func TestActionsReceiveIntentionScope(t *testing.T) {
	actions := engine.NewActions()
	var seen string
	actions.Add(".record", 1, func(_ context.Context, _ engine.Agent, call *term.Term, intention *engine.Intention) error {
		seen = term.Render(term.FreezeTerm(call, intention.Scope))
		return nil
	})
	actions.Add(".fail", 0, func(context.Context, engine.Agent, *term.Term, *engine.Intention) error {
		return fmt.Errorf("boom")
	})
	agent := build(t, `
plans:
  - trigger: +!go(X)
    body: [".record(X)", ".fail", "+unreachable"]
`, actions)
	if err := agent.Call(context.Background(), engine.Addition, engine.Achievement, term.New("go", term.Atom("home")), nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	run(t, agent, 1)
	if seen != ".record(home)" {
		t.Fatalf("unexpected action call %q", seen)
	}
	err := agent.Step(context.Background())
	if !errors.Is(err, errors.ErrEngine) {
		t.Fatalf("expected engine error from failing action, got %v", err)
	}
	if agent.Pending() != 0 {
		t.Fatalf("expected failed intention to be dropped")
	}
}

func TestUnknownActionFailsIntention(t *testing.T) {
	agent := build(t, `
plans:
  - trigger: +!go
    body: [".missing(1)"]
`, nil)
	if err := agent.Call(context.Background(), engine.Addition, engine.Achievement, term.Atom("go"), nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if err := agent.Step(context.Background()); !errors.Is(err, errors.ErrEngine) {
		t.Fatalf("expected engine error, got %v", err)
	}
}

func TestRoundRobinInterleavesIntentions(t *testing.T) {
	agent := build(t, `
plans:
  - trigger: +!work(N)
    body: ["+step(N, 1)", "+step(N, 2)"]
`, nil)
	for _, n := range []int64{1, 2} {
		if err := agent.Call(context.Background(), engine.Addition, engine.Achievement, term.New("work", term.Int(n)), nil); err != nil {
			t.Fatalf("call: %v", err)
		}
	}
	run(t, agent, 2)
	got := displayed(agent.Beliefs(), term.Key{Functor: "step", Arity: 2}, false)
	if diff := cmp.Diff([]string{"step(1,1)", "step(2,1)"}, got); diff != "" {
		t.Fatalf("interleaving mismatch (-want +got):\n%s", diff)
	}
}

func TestDropGoalAbandonsIntention(t *testing.T) {
	agent := build(t, `
plans:
  - trigger: +!wait
    body: ["+a", "+b"]
`, nil)
	ctx := context.Background()
	if err := agent.Call(ctx, engine.Addition, engine.Achievement, term.Atom("wait"), nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if err := agent.Call(ctx, engine.Removal, engine.Achievement, term.Atom("wait"), nil); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if agent.Pending() != 0 {
		t.Fatalf("expected goal to be dropped")
	}
}

func TestStepWithoutIntentionsIsNoop(t *testing.T) {
	agent := build(t, `plans: []`, nil)
	run(t, agent, 3)
}

func TestBuildFromReader(t *testing.T) {
	agent, err := New().Build(context.Background(), "override", strings.NewReader(greeter), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if agent.(*Agent).Name() != "override" {
		t.Fatalf("expected explicit name to win")
	}
	if _, err := New().Build(context.Background(), "x", nil, nil); !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error for nil source, got %v", err)
	}
}

func TestInitialGoalWithoutPlanFailsBuild(t *testing.T) {
	_, err := New().Build(context.Background(), "x", strings.NewReader("goals: [fly]\nplans: []\n"), nil)
	if !errors.Is(err, errors.ErrEngine) {
		t.Fatalf("expected engine error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"bad trigger":     "plans:\n  - trigger: greet\n",
		"bad instruction": "plans:\n  - trigger: +!go\n    body: [\"go\"]\n",
		"bad belief":      "beliefs: [\"likes(\"]\nplans: []\n",
		"bad context":     "plans:\n  - trigger: +!go\n    context: [\"mood(\"]\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			prog, err := ParseProgram([]byte(src))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if err := prog.Validate(); !errors.Is(err, errors.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
	if _, err := ParseProgram([]byte("  ")); !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty source")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	if err := os.WriteFile(path, []byte(greeter), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	prog, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(prog.Plans) != 2 || prog.Plans[0].Label != "greet" {
		t.Fatalf("unexpected plans %+v", prog.Plans)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing file, got %v", err)
	}
}
