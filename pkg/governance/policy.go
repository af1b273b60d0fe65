// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package governance decides which inbound speech acts an agent accepts and
// which operator tools are exposed.
package governance

import (
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/jllopis/kairos-bdi/pkg/config"
)

// Action describes one inbound message up for admission.
type Action struct {
	Agent  string
	Force  string
	Sender string
}

// Decision captures the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  string
	RuleID  string
}

// PolicyEngine evaluates actions.
type PolicyEngine interface {
	Evaluate(ctx context.Context, action Action) Decision
}

// Effects accepted by Rule.
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// Rule matches actions by glob patterns. Empty patterns match anything.
type Rule struct {
	ID     string
	Effect string // allow or deny
	Agent  string
	Force  string
	Sender string
	Reason string
}

func (r Rule) matches(action Action) bool {
	return matchPattern(r.Agent, action.Agent) &&
		matchPattern(r.Force, action.Force) &&
		matchPattern(r.Sender, action.Sender)
}

// RuleSet evaluates rules in order.
type RuleSet struct {
	Rules           []Rule
	DefaultDecision Decision
}

// NewRuleSet creates a rule set with a default allow decision.
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{
		Rules:           append([]Rule(nil), rules...),
		DefaultDecision: Decision{Allowed: true},
	}
}

// Evaluate returns the decision of the first matching rule.
func (r *RuleSet) Evaluate(_ context.Context, action Action) Decision {
	for _, rule := range r.Rules {
		if !rule.matches(action) {
			continue
		}
		return Decision{
			Allowed: !strings.EqualFold(rule.Effect, EffectDeny),
			Reason:  rule.Reason,
			RuleID:  rule.ID,
		}
	}
	return r.DefaultDecision
}

func matchPattern(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, value)
	if err == nil && ok {
		return true
	}
	return pattern == value
}

// RuleSetFromConfig builds the admission rules. A "deny" default rejects
// whatever no rule allows.
func RuleSetFromConfig(cfg config.PolicyConfig) *RuleSet {
	rules := make([]Rule, 0, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		id := strings.TrimSpace(rule.ID)
		if id == "" {
			id = "rule-" + strconv.Itoa(i)
		}
		rules = append(rules, Rule{
			ID:     id,
			Effect: strings.ToLower(rule.Effect),
			Agent:  rule.Agent,
			Force:  rule.Force,
			Sender: rule.Sender,
			Reason: rule.Reason,
		})
	}
	set := NewRuleSet(rules)
	if strings.EqualFold(cfg.Default, EffectDeny) {
		set.DefaultDecision = Decision{Allowed: false, Reason: "no rule allows this message", RuleID: "default"}
	}
	return set
}
