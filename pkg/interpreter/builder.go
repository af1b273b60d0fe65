// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package interpreter is the reference reasoning engine: a small
// AgentSpeak-style interpreter whose programs are written in YAML.
//
// A program lists initial beliefs, initial achievement goals and plans.
// Plan triggers are +b, -b, +!g or -!g; body instructions are +b, -b, -+b
// (replace the whole b group), !g (subgoal), ?b (test) and .action(...).
package interpreter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// Builder builds interpreter agents from program sources.
type Builder struct {
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger given to built agents.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New returns a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ engine.Builder = (*Builder)(nil)

// Build implements engine.Builder. Initial goals are posted before the
// agent is returned, so a goal without an applicable plan fails the build.
func (b *Builder) Build(ctx context.Context, name string, source io.Reader, actions *engine.Actions) (engine.Agent, error) {
	if source == nil {
		return nil, errors.New(errors.CodeConfiguration, "program source is required", nil)
	}
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "read program source", err)
	}
	prog, err := ParseProgram(data)
	if err != nil {
		return nil, err
	}
	return b.BuildProgram(ctx, name, prog, actions)
}

// BuildProgram builds an agent from an already decoded program.
func (b *Builder) BuildProgram(ctx context.Context, name string, prog *Program, actions *engine.Actions) (*Agent, error) {
	comp, err := compile(prog)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = comp.name
	}
	agent := newAgent(name, comp, actions, b.logger)
	for _, goal := range comp.goals {
		if err := agent.Call(ctx, engine.Addition, engine.Achievement, goal, nil); err != nil {
			return nil, err
		}
	}
	b.logger.DebugContext(ctx, "interpreter.agent.built",
		slog.String("agent", name),
		slog.Int("beliefs", agent.beliefs.Len()),
		slog.Int("plans", len(comp.plans)),
		slog.Int("goals", len(comp.goals)))
	return agent, nil
}

// LoadFile reads and decodes a program file.
func LoadFile(path string) (*Program, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New(errors.CodeConfiguration, "program path is required", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "read program file", err).WithContext("path", path)
	}
	return ParseProgram(data)
}
