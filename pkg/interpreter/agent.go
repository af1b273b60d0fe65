// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/term"
)

// SelfOrigin annotates beliefs an agent adds from its own plans.
const SelfOrigin = "self"

// Agent is a small AgentSpeak-style interpreter. Each Step executes one body
// instruction of one intention, selected round-robin.
type Agent struct {
	name    string
	beliefs *BeliefBase
	plans   []plan
	actions *engine.Actions
	logger  *slog.Logger

	mu         sync.Mutex
	intentions []*intentionStack
	next       int
	seq        int
}

type intentionStack struct {
	id     int
	root   event
	frames []*frame
}

type frame struct {
	label     string
	body      []instruction
	pc        int
	intention *engine.Intention
}

var _ engine.Agent = (*Agent)(nil)

func newAgent(name string, prog *compiled, actions *engine.Actions, logger *slog.Logger) *Agent {
	if actions == nil {
		actions = engine.NewActions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		name:    name,
		beliefs: NewBeliefBase(),
		plans:   prog.plans,
		actions: actions,
		logger:  logger.With(slog.String("agent", name)),
	}
	for _, b := range prog.beliefs {
		a.beliefs.Add(b)
	}
	return a
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Beliefs implements engine.Agent.
func (a *Agent) Beliefs() engine.BeliefView { return a.beliefs }

// Pending returns the number of live intentions.
func (a *Agent) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.intentions)
}

// Call implements engine.Agent. Belief mutations update the belief base and
// post the matching event; achievement additions require an applicable plan.
func (a *Agent) Call(ctx context.Context, trigger engine.Trigger, goal engine.GoalType, t *term.Term, intention *engine.Intention) error {
	if t == nil {
		return errors.New(errors.CodeInvalidInput, "term is required", nil)
	}
	frozen := term.FreezeTerm(t, engine.ScopeOf(intention))
	a.mu.Lock()
	defer a.mu.Unlock()

	switch goal {
	case engine.Belief:
		if trigger == engine.Addition {
			a.addBelief(ctx, frozen)
			return nil
		}
		a.removeBelief(ctx, frozen)
		return nil
	case engine.Achievement:
		if trigger == engine.Removal {
			a.dropGoal(frozen)
			return nil
		}
		ev := event{trigger: engine.Addition, goal: engine.Achievement, term: frozen}
		if !a.post(ev) {
			return errors.Newf(errors.CodeEngine, "no applicable plan for %s", ev).
				WithContext("agent", a.name)
		}
		return nil
	default:
		return errors.Newf(errors.CodeInvalidInput, "unknown goal type %d", goal)
	}
}

// Step implements engine.Agent. It is a no-op when no intention is live.
func (a *Agent) Step(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.intentions) == 0 {
		return nil
	}
	if a.next >= len(a.intentions) {
		a.next = 0
	}
	idx := a.next
	stack := a.intentions[idx]
	err := a.execute(ctx, stack)
	if err != nil || len(stack.frames) == 0 {
		a.removeIntention(stack)
		if err != nil {
			a.logger.WarnContext(ctx, "interpreter.intention.failed",
				slog.Int("intention", stack.id),
				slog.String("trigger", stack.root.String()),
				slog.String("error", err.Error()))
		}
		return err
	}
	a.next = idx + 1
	return nil
}

func (a *Agent) execute(ctx context.Context, stack *intentionStack) error {
	top := stack.frames[len(stack.frames)-1]
	if top.pc >= len(top.body) {
		stack.frames = stack.frames[:len(stack.frames)-1]
		return nil
	}
	instr := top.body[top.pc]
	top.pc++
	scope := top.intention.Scope

	switch instr.op {
	case opAddBelief:
		a.addBelief(ctx, ownBelief(term.FreezeTerm(instr.term, scope)))
	case opRemoveBelief:
		a.removeBelief(ctx, term.FreezeTerm(instr.term, scope))
	case opReplaceBelief:
		frozen := ownBelief(term.FreezeTerm(instr.term, scope))
		a.beliefs.RemoveGroup(frozen.Key())
		a.addBelief(ctx, frozen)
	case opTest:
		if !a.beliefs.Query(instr.term, scope) {
			return errors.Newf(errors.CodeEngine, "test goal ?%s failed", term.Render(instr.term))
		}
	case opAchieve:
		ev := event{trigger: engine.Addition, goal: engine.Achievement, term: term.FreezeTerm(instr.term, scope)}
		pl, planScope, ok := a.applicable(ev)
		if !ok {
			return errors.Newf(errors.CodeEngine, "no applicable plan for %s", ev)
		}
		stack.frames = append(stack.frames, newFrame(pl, planScope))
	case opAction:
		fn, ok := a.actions.Lookup(instr.term.Functor, instr.term.Arity())
		if !ok || fn == nil {
			return errors.Newf(errors.CodeEngine, "unknown action %s/%d", instr.term.Functor, instr.term.Arity())
		}
		if err := fn(ctx, a, instr.term, top.intention); err != nil {
			var be *errors.BridgeError
			if errors.As(err, &be) {
				return err
			}
			return errors.New(errors.CodeEngine, "action "+instr.term.Functor+" failed", err)
		}
	}
	if top.pc >= len(top.body) && stack.frames[len(stack.frames)-1] == top {
		stack.frames = stack.frames[:len(stack.frames)-1]
	}
	return nil
}

func ownBelief(t *term.Term) *term.Term {
	if t.Origin() != "" {
		return t
	}
	return t.WithOrigin(SelfOrigin)
}

func (a *Agent) addBelief(ctx context.Context, t *term.Term) {
	if a.beliefs.Add(t) {
		a.post(event{trigger: engine.Addition, goal: engine.Belief, term: t})
	}
	a.logger.DebugContext(ctx, "interpreter.belief.added", slog.String("belief", term.Render(t)))
}

func (a *Agent) removeBelief(ctx context.Context, pattern *term.Term) {
	for _, removed := range a.beliefs.Remove(pattern) {
		a.post(event{trigger: engine.Removal, goal: engine.Belief, term: removed})
		a.logger.DebugContext(ctx, "interpreter.belief.removed", slog.String("belief", term.Render(removed)))
	}
}

// dropGoal abandons every intention whose root goal unifies with g.
func (a *Agent) dropGoal(g *term.Term) {
	kept := a.intentions[:0]
	for _, stack := range a.intentions {
		if stack.root.goal == engine.Achievement && term.Unifies(stack.root.term, g) {
			continue
		}
		kept = append(kept, stack)
	}
	a.intentions = kept
}

// post starts a new intention for ev when a plan applies.
func (a *Agent) post(ev event) bool {
	pl, scope, ok := a.applicable(ev)
	if !ok {
		return false
	}
	a.seq++
	a.intentions = append(a.intentions, &intentionStack{
		id:     a.seq,
		root:   ev,
		frames: []*frame{newFrame(pl, scope)},
	})
	return true
}

// applicable returns the first plan, in program order, whose trigger unifies
// with ev and whose context literals all match a belief.
func (a *Agent) applicable(ev event) (plan, term.Scope, bool) {
	for _, pl := range a.plans {
		if pl.trigger.trigger != ev.trigger || pl.trigger.goal != ev.goal {
			continue
		}
		scope := term.Scope{}
		if !term.Unify(pl.trigger.term, ev.term, scope) {
			continue
		}
		if a.contextHolds(pl.context, scope) {
			return pl, scope, true
		}
	}
	return plan{}, nil, false
}

func (a *Agent) contextHolds(literals []*term.Term, scope term.Scope) bool {
	for _, lit := range literals {
		if !a.beliefs.Query(lit, scope) {
			return false
		}
	}
	return true
}

func (a *Agent) removeIntention(stack *intentionStack) {
	for i, s := range a.intentions {
		if s == stack {
			a.intentions = append(a.intentions[:i], a.intentions[i+1:]...)
			if a.next > i {
				a.next--
			}
			return
		}
	}
}

func newFrame(pl plan, scope term.Scope) *frame {
	return &frame{
		label:     pl.label,
		body:      pl.body,
		intention: &engine.Intention{Scope: scope},
	}
}
