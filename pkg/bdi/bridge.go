// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package bdi is the reasoning bridge between a mailbox and a reasoning
// engine. Each Cycle polls for one inbound speech act without blocking,
// turns it into a belief or goal mutation and hands the queued mutations to
// the engine one at a time, stepping the engine after each.
//
//	b, err := bdi.New("alice", mailbox, interpreter.New(), bdi.WithProgram("alice.yaml"))
//	if err != nil { ... }
//	if err := b.Setup(ctx); err != nil { ... }
//	for ctx.Err() == nil {
//		if err := b.Cycle(ctx); err != nil { ... }
//	}
package bdi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/kairos-bdi/pkg/audit"
	"github.com/jllopis/kairos-bdi/pkg/core"
	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/governance"
	"github.com/jllopis/kairos-bdi/pkg/resilience"
	"github.com/jllopis/kairos-bdi/pkg/telemetry"
	"github.com/jllopis/kairos-bdi/pkg/term"
	"github.com/jllopis/kairos-bdi/pkg/transport"
)

// DefaultIdleDelay is how long a disabled cycle sleeps.
const DefaultIdleDelay = 100 * time.Millisecond

// Bridge connects one agent's mailbox to its reasoning engine.
type Bridge struct {
	name      string
	mailbox   transport.Mailbox
	builder   engine.Builder
	actions   *engine.Actions
	queue     *Queue
	forces    *forceRegistry
	logger    *slog.Logger
	tracer    trace.Tracer
	emitter   core.EventEmitter
	metrics   *telemetry.BridgeMetrics
	audit     audit.Store
	policy    governance.PolicyEngine
	sendRetry resilience.RetryConfig
	idleDelay time.Duration

	enabled atomic.Bool
	seq     atomic.Int64

	// mu guards the engine agent and the program path. It is held while
	// the cycle talks to the engine and while introspecting.
	mu          sync.Mutex
	agent       engine.Agent
	programPath string

	sends     sync.WaitGroup
	lifecycle context.Context
	stop      context.CancelFunc
}

// Option configures a Bridge.
type Option func(*Bridge) error

// WithLogger sets the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) error {
		if logger != nil {
			b.logger = logger
		}
		return nil
	}
}

// WithIdleDelay sets the sleep of a disabled cycle.
func WithIdleDelay(d time.Duration) Option {
	return func(b *Bridge) error {
		if d < 0 {
			return errors.Newf(errors.CodeInvalidInput, "idle delay must not be negative, got %s", d)
		}
		if d > 0 {
			b.idleDelay = d
		}
		return nil
	}
}

// WithProgram sets the program source loaded by Setup.
func WithProgram(path string) Option {
	return func(b *Bridge) error {
		b.programPath = path
		return nil
	}
}

// WithAudit journals every mutation handed to the engine.
func WithAudit(store audit.Store) Option {
	return func(b *Bridge) error {
		b.audit = store
		return nil
	}
}

// WithEventEmitter sets the semantic event sink.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(b *Bridge) error {
		if emitter != nil {
			b.emitter = emitter
		}
		return nil
	}
}

// WithMetrics sets the bridge instruments.
func WithMetrics(metrics *telemetry.BridgeMetrics) Option {
	return func(b *Bridge) error {
		b.metrics = metrics
		return nil
	}
}

// WithPolicy sets the admission policy of inbound messages. Denied messages
// are dropped before they reach the queue.
func WithPolicy(policy governance.PolicyEngine) Option {
	return func(b *Bridge) error {
		b.policy = policy
		return nil
	}
}

// WithActions sets the builtin registry handed to the engine. Setup adds the
// send hook to it.
func WithActions(actions *engine.Actions) Option {
	return func(b *Bridge) error {
		if actions != nil {
			b.actions = actions
		}
		return nil
	}
}

// WithSendRetry sets the retry policy of outbound sends.
func WithSendRetry(rc resilience.RetryConfig) Option {
	return func(b *Bridge) error {
		b.sendRetry = rc
		return nil
	}
}

// WithTracer overrides the tracer used for cycle spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *Bridge) error {
		if tracer != nil {
			b.tracer = tracer
		}
		return nil
	}
}

// New creates a disabled bridge. Call Setup to load the program.
func New(name string, mailbox transport.Mailbox, builder engine.Builder, opts ...Option) (*Bridge, error) {
	if name == "" {
		return nil, errors.New(errors.CodeInvalidInput, "agent name is required", nil)
	}
	if mailbox == nil {
		return nil, errors.New(errors.CodeInvalidInput, "mailbox is required", nil)
	}
	if builder == nil {
		return nil, errors.New(errors.CodeInvalidInput, "engine builder is required", nil)
	}
	b := &Bridge{
		name:      name,
		mailbox:   mailbox,
		builder:   builder,
		actions:   engine.NewActions(),
		queue:     NewQueue(),
		forces:    newForceRegistry(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("kairos-bdi/bridge"),
		emitter:   core.NoopEventEmitter{},
		sendRetry: resilience.DefaultRetryConfig(),
		idleDelay: DefaultIdleDelay,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With(slog.String("agent", name))
	b.lifecycle, b.stop = context.WithCancel(context.Background())
	return b, nil
}

// Name returns the agent name.
func (b *Bridge) Name() string { return b.name }

// Enabled reports whether cycles reach the engine.
func (b *Bridge) Enabled() bool { return b.enabled.Load() }

// Queue returns the bridge's mutation queue.
func (b *Bridge) Queue() *Queue { return b.queue }

// Actions returns the builtin registry handed to the engine.
func (b *Bridge) Actions() *engine.Actions { return b.actions }

// ProgramPath returns the current program source, empty when none.
func (b *Bridge) ProgramPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.programPath
}

// Forces lists the registered custom forces.
func (b *Bridge) Forces() []string { return b.forces.names() }

// Setup registers the send hook and loads the program.
func (b *Bridge) Setup(ctx context.Context) error {
	b.actions.Add(SendAction, 3, b.sendAction)
	return b.LoadProgram(ctx)
}

// Pause stops engine interaction until Resume.
func (b *Bridge) Pause(ctx context.Context) {
	if b.enabled.Swap(false) {
		b.logger.InfoContext(ctx, "bridge.paused")
		b.emit(ctx, core.EventBridgePaused, nil)
	}
}

// Resume re-enables a paused bridge. It fails when no program is loaded.
func (b *Bridge) Resume(ctx context.Context) error {
	b.mu.Lock()
	loaded := b.agent != nil
	b.mu.Unlock()
	if !loaded {
		return errors.New(errors.CodeConfiguration, "no program loaded", nil).WithContext("agent", b.name)
	}
	if !b.enabled.Swap(true) {
		b.logger.InfoContext(ctx, "bridge.resumed")
		b.emit(ctx, core.EventBridgeResumed, nil)
	}
	return nil
}

// SetProgramSource replaces the program path and reloads it.
func (b *Bridge) SetProgramSource(ctx context.Context, path string) error {
	b.mu.Lock()
	b.programPath = path
	b.mu.Unlock()
	return b.LoadProgram(ctx)
}

// LoadProgram pauses the bridge, rebuilds the engine agent from the program
// path and resumes. A missing or unreadable source drops the engine agent
// and clears the path, so the bridge stays disabled until another program is
// set; that case is logged, not returned. Build failures are returned and
// also leave the bridge disabled.
func (b *Bridge) LoadProgram(ctx context.Context) error {
	b.Pause(ctx)
	path := b.ProgramPath()

	source, err := openProgram(path)
	if err != nil {
		b.logger.WarnContext(ctx, "bridge.program.missing",
			slog.String("path", path),
			slog.String("error", err.Error()))
		b.mu.Lock()
		b.programPath = ""
		b.agent = nil
		b.mu.Unlock()
		b.emit(ctx, core.EventProgramFailed, map[string]any{"path": path, "error": err.Error()})
		b.metrics.RecordError(ctx, err, "bridge")
		return nil
	}
	defer source.Close()

	agent, err := b.builder.Build(ctx, b.name, source, b.actions)
	if err != nil {
		b.logger.ErrorContext(ctx, "bridge.program.build_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		b.emit(ctx, core.EventProgramFailed, map[string]any{"path": path, "error": err.Error()})
		b.metrics.RecordError(ctx, err, "bridge")
		return errors.AsBridgeError(err).WithContext("path", path)
	}

	b.mu.Lock()
	b.agent = agent
	b.mu.Unlock()
	b.logger.InfoContext(ctx, "bridge.program.loaded", slog.String("path", path))
	b.emit(ctx, core.EventProgramLoaded, map[string]any{"path": path})
	return b.Resume(ctx)
}

func openProgram(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New(errors.CodeConfiguration, "no program source configured", nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "open program source", err).WithContext("path", path)
	}
	return f, nil
}

// RegisterForce installs handler for a custom illocutionary force. The
// built-in forces cannot be overridden.
func (b *Bridge) RegisterForce(name string, handler CustomHandler) error {
	return b.forces.register(name, handler)
}

// AddBelief queues the addition of functor(args). An empty origin is
// recorded as percept.
func (b *Bridge) AddBelief(functor string, args []term.Value, intention *engine.Intention, origin string) {
	if origin == "" {
		origin = term.PerceptOrigin
	}
	b.queue.Enqueue(Mutation{
		Trigger:   engine.Addition,
		Goal:      engine.Belief,
		Term:      BuildTerm(functor, args, intention, origin),
		Intention: intentionOrNew(intention),
	})
}

// RemoveBelief queues the removal of every belief unifying with functor(args).
func (b *Bridge) RemoveBelief(functor string, args []term.Value) {
	b.queue.Enqueue(Mutation{
		Trigger:   engine.Removal,
		Goal:      engine.Belief,
		Term:      BuildTerm(functor, args, nil, ""),
		Intention: engine.NewIntention(),
	})
}

// AddAchievementGoal queues the achievement goal !functor(args).
func (b *Bridge) AddAchievementGoal(functor string, args []term.Value, intention *engine.Intention, origin string) {
	b.queue.Enqueue(Mutation{
		Trigger:   engine.Addition,
		Goal:      engine.Achievement,
		Term:      BuildTerm(functor, args, intention, origin),
		Intention: intentionOrNew(intention),
	})
}

// SetSingletonBelief queues a singleton set of functor(args). The removals
// are computed when the cycle applies it, so sets queued back to back still
// leave one belief of the functor and arity.
func (b *Bridge) SetSingletonBelief(functor string, args []term.Value) {
	b.queue.Enqueue(Mutation{
		Trigger:   engine.Addition,
		Goal:      engine.Belief,
		Term:      BuildTerm(functor, args, nil, term.PerceptOrigin),
		Intention: engine.NewIntention(),
		Singleton: true,
	})
}

func intentionOrNew(i *engine.Intention) *engine.Intention {
	if i == nil {
		return engine.NewIntention()
	}
	return i
}

// Cycle runs one scheduling quantum. While disabled it only sleeps for the
// idle delay. While enabled it polls one message with a zero timeout,
// dispatches it, then hands every mutation queued at drain start to the
// engine, stepping after each; with nothing queued it steps once.
func (b *Bridge) Cycle(ctx context.Context) error {
	if !b.enabled.Load() {
		b.metrics.RecordCycle(ctx, b.name, false, 0)
		return b.idle(ctx)
	}

	runID, _ := core.RunID(ctx)
	ctx, span := b.tracer.Start(ctx, "Bridge.Cycle",
		trace.WithAttributes(telemetry.CycleAttributes(b.name, runID, true)...))
	defer span.End()
	start := time.Now()

	err := b.cycle(ctx, span)
	b.metrics.RecordCycle(ctx, b.name, true, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.metrics.RecordError(ctx, err, "bridge")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (b *Bridge) idle(ctx context.Context) error {
	timer := time.NewTimer(b.idleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *Bridge) cycle(ctx context.Context, span trace.Span) error {
	msg, ok, err := b.mailbox.Receive(ctx, 0)
	if err != nil {
		return errors.New(errors.CodeTransport, "receive message", err).WithContext("agent", b.name)
	}
	if ok {
		span.SetAttributes(telemetry.MessageAttributes(msg.ID, msg.Sender, msg.Force())...)
		if err := b.dispatch(ctx, msg); err != nil {
			return err
		}
	}
	return b.drain(ctx, span)
}

func (b *Bridge) dispatch(ctx context.Context, msg transport.Message) error {
	if !b.admit(ctx, msg) {
		return nil
	}
	force, handler := b.forces.resolve(msg.Force())
	b.metrics.RecordMessage(ctx, b.name, force.Name)
	b.emit(ctx, core.EventMessageReceived, map[string]any{
		"message_id": msg.ID,
		"sender":     msg.Sender,
		"force":      force.Name,
	})

	switch force.Kind {
	case ForceTell:
		functor, args := b.parseBody(ctx, msg)
		if !b.ground(ctx, msg, functor, args) {
			return nil
		}
		b.queue.Enqueue(Mutation{
			Trigger:   engine.Addition,
			Goal:      engine.Belief,
			Term:      BuildTerm(functor, args, nil, msg.Sender),
			Intention: engine.NewIntention(),
		})
	case ForceUntell:
		functor, args := b.parseBody(ctx, msg)
		b.RemoveBelief(functor, args)
	case ForceAchieve:
		functor, args := b.parseBody(ctx, msg)
		if !b.ground(ctx, msg, functor, args) {
			return nil
		}
		b.AddAchievementGoal(functor, args, nil, msg.Sender)
	case ForceCustom:
		return handler(ctx, msg)
	default:
		b.metrics.RecordProtocolError(ctx, b.name, force.Name)
		b.emit(ctx, core.EventProtocolError, map[string]any{
			"message_id": msg.ID,
			"sender":     msg.Sender,
			"force":      force.Name,
		})
		b.logger.WarnContext(ctx, "bridge.cycle.protocol_error",
			slog.String("sender", msg.Sender),
			slog.String("force", force.Name))
		return errors.Newf(errors.CodeProtocol, "unknown illocutionary force: %q", force.Name).
			WithContext("agent", b.name).
			WithContext("sender", msg.Sender)
	}
	return nil
}

func (b *Bridge) admit(ctx context.Context, msg transport.Message) bool {
	if b.policy == nil {
		return true
	}
	decision := b.policy.Evaluate(ctx, governance.Action{Agent: b.name, Force: msg.Force(), Sender: msg.Sender})
	if decision.Allowed {
		return true
	}
	b.metrics.RecordDenied(ctx, b.name, msg.Force())
	b.emit(ctx, core.EventMessageDenied, map[string]any{
		"message_id": msg.ID,
		"sender":     msg.Sender,
		"force":      msg.Force(),
		"rule":       decision.RuleID,
	})
	b.logger.WarnContext(ctx, "bridge.message.denied",
		slog.String("sender", msg.Sender),
		slog.String("force", msg.Force()),
		slog.String("rule", decision.RuleID),
		slog.String("reason", decision.Reason))
	return false
}

// parseBody decodes the payload. Malformed payloads are recovered as the
// best-effort functor with no arguments.
func (b *Bridge) parseBody(ctx context.Context, msg transport.Message) (string, []term.Value) {
	functor, args, err := term.ParseStrict(msg.Body)
	if err != nil {
		b.logger.WarnContext(ctx, "bridge.message.parse_recovered",
			slog.String("sender", msg.Sender),
			slog.String("functor", functor),
			slog.String("error", err.Error()))
	}
	return functor, args
}

// ground reports whether every argument is free of variables. Peers may
// not assert or request open patterns, so such payloads are dropped.
func (b *Bridge) ground(ctx context.Context, msg transport.Message, functor string, args []term.Value) bool {
	for _, arg := range args {
		if !term.Ground(arg) {
			b.logger.WarnContext(ctx, "bridge.message.non_ground",
				slog.String("sender", msg.Sender),
				slog.String("force", msg.Force()),
				slog.String("functor", functor))
			return false
		}
	}
	return true
}

func (b *Bridge) drain(ctx context.Context, span trace.Span) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	agent := b.agent
	if agent == nil || !b.enabled.Load() {
		// Disabled by a reload or pause that landed after the cycle began.
		return nil
	}

	n := b.queue.Len()
	b.metrics.RecordQueueDepth(ctx, b.name, n)
	span.SetAttributes(telemetry.QueueAttributes(n)...)
	if n == 0 {
		b.metrics.RecordIdleStep(ctx, b.name)
		return b.step(ctx, agent)
	}

	// Only the n entries queued at drain start are applied. The head is
	// popped after its call succeeds, so a failing mutation stays queued.
	for i := 0; i < n; i++ {
		m, ok := b.queue.Peek()
		if !ok {
			break
		}
		if m.Singleton {
			if err := b.applySingleton(ctx, span, agent, m); err != nil {
				return err
			}
			continue
		}
		if err := b.apply(ctx, span, agent, m); err != nil {
			return err
		}
		b.queue.Pop()
		if err := b.step(ctx, agent); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) apply(ctx context.Context, span trace.Span, agent engine.Agent, m Mutation) error {
	if err := agent.Call(ctx, m.Trigger, m.Goal, m.Term, m.Intention); err != nil {
		b.journal(ctx, m, err)
		return engineError(err, "call "+m.String(), b.name)
	}
	b.journal(ctx, m, nil)
	b.metrics.RecordMutation(ctx, b.name, m.Trigger.Name(), m.Goal.Name())
	span.AddEvent("mutation.applied", trace.WithAttributes(
		telemetry.MutationAttributes(m.Trigger.Name(), m.Goal.Name(), term.Render(m.Term))...))
	b.emit(ctx, core.EventMutationApplied, map[string]any{
		"trigger": m.Trigger.Name(),
		"goal":    m.Goal.Name(),
		"term":    term.Render(m.Term),
	})
	return nil
}

// applySingleton expands a queued singleton set against the belief base as
// it is now, stepping after each expanded mutation. A set that is already
// satisfied only steps.
func (b *Bridge) applySingleton(ctx context.Context, span trace.Span, agent engine.Agent, m Mutation) error {
	expanded := singletonSet(agent.Beliefs(), m.Term)
	if len(expanded) == 0 {
		b.queue.Pop()
		return b.step(ctx, agent)
	}
	for i, e := range expanded {
		if err := b.apply(ctx, span, agent, e); err != nil {
			return err
		}
		if i == len(expanded)-1 {
			b.queue.Pop()
		}
		if err := b.step(ctx, agent); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) step(ctx context.Context, agent engine.Agent) error {
	if err := agent.Step(ctx); err != nil {
		return engineError(err, "step", b.name)
	}
	return nil
}

func engineError(err error, op, agent string) error {
	var be *errors.BridgeError
	if errors.As(err, &be) {
		return err
	}
	return errors.New(errors.CodeEngine, "engine "+op+" failed", err).WithContext("agent", agent)
}

func (b *Bridge) journal(ctx context.Context, m Mutation, applyErr error) {
	if b.audit == nil {
		return
	}
	runID, _ := core.RunID(ctx)
	entry := audit.Entry{
		Agent:     b.name,
		RunID:     runID,
		Seq:       b.seq.Add(1),
		Trigger:   m.Trigger.Name(),
		Goal:      m.Goal.Name(),
		Term:      term.Render(m.Term),
		Origin:    m.Term.Origin(),
		Status:    audit.StatusApplied,
		AppliedAt: time.Now().UTC(),
	}
	if applyErr != nil {
		entry.Status = audit.StatusFailed
		entry.Error = applyErr.Error()
	}
	if err := b.audit.Record(ctx, entry); err != nil {
		b.logger.WarnContext(ctx, "bridge.audit.record_failed", slog.String("error", err.Error()))
	}
}

func (b *Bridge) emit(ctx context.Context, eventType core.EventType, payload map[string]any) {
	b.emitter.Emit(ctx, core.NewEvent(ctx, eventType, b.name, payload))
}

// Health reports HEALTHY while enabled and DEGRADED while disabled.
func (b *Bridge) Health() core.HealthChecker {
	return core.HealthCheckerFunc(func(context.Context) core.HealthResult {
		res := core.HealthResult{Component: b.name, Status: core.HealthHealthy, Message: "reasoning"}
		if !b.Enabled() {
			res.Status = core.HealthDegraded
			res.Message = "bridge disabled"
			if path := b.ProgramPath(); path == "" {
				res.Message = "bridge disabled: no program loaded"
			}
		}
		if n := b.queue.Len(); n > 0 {
			res.Message = fmt.Sprintf("%s, %d queued", res.Message, n)
		}
		return res
	})
}

// Close waits for in-flight outbound sends. When ctx ends first the
// remaining sends are canceled.
func (b *Bridge) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.sends.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.stop()
		return nil
	case <-ctx.Done():
		b.stop()
		<-done
		return errors.New(errors.CodeTimeout, "outbound sends still in flight", ctx.Err()).WithContext("agent", b.name)
	}
}
