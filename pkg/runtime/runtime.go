// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtime schedules bridge cycles. Every spawned bridge runs in its
// own goroutine; an agent whose cycle fails stops alone while the others
// keep reasoning.
package runtime

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jllopis/kairos-bdi/pkg/bdi"
	"github.com/jllopis/kairos-bdi/pkg/core"
	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// AgentState is the lifecycle state of a spawned agent.
type AgentState string

const (
	StatePending AgentState = "pending"
	StateRunning AgentState = "running"
	StateStopped AgentState = "stopped"
	StateFailed  AgentState = "failed"
)

// AgentStatus is a point-in-time view of one agent loop.
type AgentStatus struct {
	Name    string     `json:"name"`
	State   AgentState `json:"state"`
	Enabled bool       `json:"enabled"`
	Program string     `json:"program,omitempty"`
	Cycles  int64      `json:"cycles"`
	Queued  int        `json:"queued"`
	Error   string     `json:"error,omitempty"`
}

type agentEntry struct {
	bridge *bdi.Bridge
	cycles atomic.Int64

	mu    sync.Mutex
	state AgentState
	err   error
}

func (e *agentEntry) set(state AgentState, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.err = err
}

// Runtime owns the agent loops of one process.
type Runtime struct {
	logger          *slog.Logger
	emitter         core.EventEmitter
	limit           rate.Limit
	shutdownTimeout time.Duration

	mu      sync.Mutex
	agents  map[string]*agentEntry
	started bool
	group   errgroup.Group
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEventEmitter receives runtime.agent.stopped events.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(r *Runtime) {
		if emitter != nil {
			r.emitter = emitter
		}
	}
}

// WithMaxCyclesPerSecond caps each agent loop. Zero or less is unlimited.
func WithMaxCyclesPerSecond(n float64) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.limit = rate.Limit(n)
		} else {
			r.limit = rate.Inf
		}
	}
}

// WithShutdownTimeout bounds how long a stopping bridge may wait for its
// outbound sends.
func WithShutdownTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.shutdownTimeout = d
		}
	}
}

// New creates an empty runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		logger:          slog.Default(),
		emitter:         core.NoopEventEmitter{},
		limit:           rate.Inf,
		shutdownTimeout: 5 * time.Second,
		agents:          make(map[string]*agentEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Spawn registers a bridge. Bridges must be spawned before Start.
func (r *Runtime) Spawn(b *bdi.Bridge) error {
	if b == nil {
		return errors.New(errors.CodeInvalidInput, "bridge is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New(errors.CodeInvalidInput, "runtime already started", nil).WithContext("agent", b.Name())
	}
	if _, exists := r.agents[b.Name()]; exists {
		return errors.Newf(errors.CodeInvalidInput, "agent %q already spawned", b.Name())
	}
	r.agents[b.Name()] = &agentEntry{bridge: b, state: StatePending}
	return nil
}

// Start launches every agent loop and returns immediately. Loops end when
// ctx is done or their cycle fails.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New(errors.CodeInvalidInput, "runtime already started", nil)
	}
	r.started = true
	for _, entry := range r.agents {
		entry.set(StateRunning, nil)
		r.group.Go(func() error { return r.loop(ctx, entry) })
	}
	r.logger.Info("runtime.started", "agents", len(r.agents))
	return nil
}

// Wait blocks until every loop has ended and returns the first agent error.
func (r *Runtime) Wait() error {
	return r.group.Wait()
}

func (r *Runtime) loop(ctx context.Context, entry *agentEntry) error {
	b := entry.bridge
	ctx, runID := core.EnsureRunID(ctx)
	log := r.logger.With("agent", b.Name(), "run_id", runID)
	limiter := rate.NewLimiter(r.limit, 1)
	log.Info("runtime.agent.started")

	var failure error
	for failure == nil && ctx.Err() == nil {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		err := b.Cycle(ctx)
		entry.cycles.Add(1)
		if err != nil && !canceled(ctx, err) {
			failure = err
		}
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.shutdownTimeout)
	defer cancel()
	if err := b.Close(closeCtx); err != nil {
		log.Warn("runtime.agent.close_failed", "error", err)
	}

	payload := map[string]any{"cycles": entry.cycles.Load()}
	if failure != nil {
		entry.set(StateFailed, failure)
		payload["error"] = failure.Error()
		log.Error("runtime.agent.stopped", "cycles", entry.cycles.Load(), "error", failure)
	} else {
		entry.set(StateStopped, nil)
		log.Info("runtime.agent.stopped", "cycles", entry.cycles.Load())
	}
	r.emitter.Emit(ctx, core.NewEvent(ctx, core.EventAgentStopped, b.Name(), payload))
	return failure
}

func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded))
}

// Bridge returns the spawned bridge named name.
func (r *Runtime) Bridge(name string) (*bdi.Bridge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.agents[name]
	if !ok {
		return nil, false
	}
	return entry.bridge, true
}

// Names lists spawned agents in name order.
func (r *Runtime) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status reports the state of name.
func (r *Runtime) Status(name string) (AgentStatus, bool) {
	r.mu.Lock()
	entry, ok := r.agents[name]
	r.mu.Unlock()
	if !ok {
		return AgentStatus{}, false
	}

	entry.mu.Lock()
	state, err := entry.state, entry.err
	entry.mu.Unlock()
	status := AgentStatus{
		Name:    name,
		State:   state,
		Enabled: entry.bridge.Enabled(),
		Program: entry.bridge.ProgramPath(),
		Cycles:  entry.cycles.Load(),
		Queued:  entry.bridge.Queue().Len(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status, true
}

// Statuses reports every agent in name order.
func (r *Runtime) Statuses() []AgentStatus {
	names := r.Names()
	out := make([]AgentStatus, 0, len(names))
	for _, name := range names {
		if status, ok := r.Status(name); ok {
			out = append(out, status)
		}
	}
	return out
}

// RegisterHealth adds one checker per agent to reg.
func (r *Runtime) RegisterHealth(reg *core.HealthRegistry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, entry := range r.agents {
		reg.Register(name, entry.bridge.Health())
	}
}
