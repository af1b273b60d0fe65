// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/term"
)

// Program is the YAML source of an agent: initial beliefs, initial goals
// and the plan library.
type Program struct {
	Name    string     `yaml:"name,omitempty"`
	Beliefs []string   `yaml:"beliefs,omitempty"`
	Goals   []string   `yaml:"goals,omitempty"`
	Plans   []PlanSpec `yaml:"plans"`
}

// PlanSpec is one plan as written in the program.
type PlanSpec struct {
	Label   string   `yaml:"label,omitempty"`
	Trigger string   `yaml:"trigger"`
	Context []string `yaml:"context,omitempty"`
	Body    []string `yaml:"body,omitempty"`
}

type opKind int

const (
	opAddBelief opKind = iota
	opRemoveBelief
	opReplaceBelief
	opAchieve
	opTest
	opAction
)

type instruction struct {
	op   opKind
	term *term.Term
	text string
}

type event struct {
	trigger engine.Trigger
	goal    engine.GoalType
	term    *term.Term
}

func (e event) String() string {
	return e.trigger.String() + e.goal.String() + term.Render(e.term)
}

type plan struct {
	label   string
	trigger event
	context []*term.Term
	body    []instruction
}

type compiled struct {
	name    string
	beliefs []*term.Term
	goals   []*term.Term
	plans   []plan
}

// ParseProgram decodes a YAML program.
func ParseProgram(data []byte) (*Program, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New(errors.CodeConfiguration, "empty program source", nil)
	}
	var prog Program
	if err := yaml.Unmarshal(data, &prog); err != nil {
		return nil, errors.New(errors.CodeConfiguration, "parse program yaml", err)
	}
	return &prog, nil
}

// Validate compiles the program and reports the first problem found.
func (p *Program) Validate() error {
	_, err := compile(p)
	return err
}

func compile(p *Program) (*compiled, error) {
	if p == nil {
		return nil, errors.New(errors.CodeConfiguration, "program is nil", nil)
	}
	out := &compiled{name: p.Name}
	for i, raw := range p.Beliefs {
		t, err := term.ParseTerm(raw)
		if err != nil {
			return nil, programError(fmt.Sprintf("belief %d", i), raw, err)
		}
		if t.Origin() == "" {
			t = t.WithOrigin(term.PerceptOrigin)
		}
		out.beliefs = append(out.beliefs, t)
	}
	for i, raw := range p.Goals {
		t, err := term.ParseTerm(strings.TrimPrefix(strings.TrimSpace(raw), "!"))
		if err != nil {
			return nil, programError(fmt.Sprintf("goal %d", i), raw, err)
		}
		out.goals = append(out.goals, t)
	}
	for i, spec := range p.Plans {
		where := fmt.Sprintf("plan %d", i)
		if spec.Label != "" {
			where = fmt.Sprintf("plan %q", spec.Label)
		}
		compiledPlan, err := compilePlan(spec, where)
		if err != nil {
			return nil, err
		}
		out.plans = append(out.plans, compiledPlan)
	}
	return out, nil
}

func compilePlan(spec PlanSpec, where string) (plan, error) {
	trigger, err := parseTrigger(spec.Trigger)
	if err != nil {
		return plan{}, programError(where+" trigger", spec.Trigger, err)
	}
	pl := plan{label: spec.Label, trigger: trigger}
	for _, raw := range spec.Context {
		t, err := term.ParseTerm(raw)
		if err != nil {
			return plan{}, programError(where+" context", raw, err)
		}
		pl.context = append(pl.context, t)
	}
	for _, raw := range spec.Body {
		instr, err := parseInstruction(raw)
		if err != nil {
			return plan{}, programError(where+" body", raw, err)
		}
		pl.body = append(pl.body, instr)
	}
	return pl, nil
}

// parseTrigger accepts +b, -b, +!g and -!g.
func parseTrigger(raw string) (event, error) {
	text := strings.TrimSpace(raw)
	var ev event
	switch {
	case strings.HasPrefix(text, "+"):
		ev.trigger = engine.Addition
	case strings.HasPrefix(text, "-"):
		ev.trigger = engine.Removal
	default:
		return event{}, fmt.Errorf("trigger must start with + or -")
	}
	text = text[1:]
	if strings.HasPrefix(text, "!") {
		ev.goal = engine.Achievement
		text = text[1:]
	}
	t, err := term.ParseTerm(text)
	if err != nil {
		return event{}, err
	}
	ev.term = t
	return ev, nil
}

func parseInstruction(raw string) (instruction, error) {
	text := strings.TrimSpace(raw)
	instr := instruction{text: text}
	switch {
	case strings.HasPrefix(text, "-+"):
		instr.op = opReplaceBelief
		text = text[2:]
	case strings.HasPrefix(text, "+"):
		instr.op = opAddBelief
		text = text[1:]
	case strings.HasPrefix(text, "-"):
		instr.op = opRemoveBelief
		text = text[1:]
	case strings.HasPrefix(text, "!"):
		instr.op = opAchieve
		text = text[1:]
	case strings.HasPrefix(text, "?"):
		instr.op = opTest
		text = text[1:]
	case strings.HasPrefix(text, "."):
		instr.op = opAction
	default:
		return instruction{}, fmt.Errorf("unknown instruction, expected one of + - -+ ! ? or .action")
	}
	t, err := term.ParseTerm(text)
	if err != nil {
		return instruction{}, err
	}
	instr.term = t
	return instr, nil
}

func programError(where, raw string, cause error) error {
	return errors.New(errors.CodeConfiguration, "invalid "+where, cause).WithContext("source", raw)
}
