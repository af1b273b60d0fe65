// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package bdi

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/kairos-bdi/pkg/audit"
	"github.com/jllopis/kairos-bdi/pkg/core"
	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/governance"
	"github.com/jllopis/kairos-bdi/pkg/interpreter"
	"github.com/jllopis/kairos-bdi/pkg/resilience"
	bditest "github.com/jllopis/kairos-bdi/pkg/testing"
	"github.com/jllopis/kairos-bdi/pkg/term"
	"github.com/jllopis/kairos-bdi/pkg/transport"
)

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func tell(sender, body string) transport.Message {
	return transport.NewMessage(sender, []string{"alice"}, body).WithForce(ForceNameTell)
}

// recordingBridge returns a set-up bridge over a recording engine.
func recordingBridge(t *testing.T, box *bditest.ScriptedMailbox, opts ...Option) (*Bridge, *bditest.RecordingEngine) {
	t.Helper()
	eng := bditest.NewRecordingEngine()
	opts = append([]Option{WithProgram(writeProgram(t, "name: alice\n")), WithIdleDelay(time.Millisecond)}, opts...)
	b, err := New("alice", box, eng.Builder(), opts...)
	require.NoError(t, err)
	require.NoError(t, b.Setup(context.Background()))
	require.True(t, b.Enabled())
	return b, eng
}

func TestNewValidatesArguments(t *testing.T) {
	eng := bditest.NewRecordingEngine()
	box := bditest.NewScriptedMailbox()

	_, err := New("", box, eng.Builder())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = New("alice", nil, eng.Builder())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = New("alice", box, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = New("alice", box, eng.Builder(), WithIdleDelay(-time.Second))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSetupRegistersSendHookAndLoadsProgram(t *testing.T) {
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox())

	assert.Equal(t, 1, eng.Builds())
	assert.Equal(t, "name: alice\n", eng.Source())
	assert.Same(t, b.Actions(), eng.Actions())
	_, ok := eng.Actions().Lookup(SendAction, 3)
	assert.True(t, ok)
}

func TestCycleInterleavesCallsAndSteps(t *testing.T) {
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox())

	b.AddBelief("a", Values(1), nil, "")
	b.RemoveBelief("b", nil)
	b.AddAchievementGoal("g", Values("x"), nil, "")
	require.NoError(t, b.Cycle(context.Background()))

	assert.Equal(t, []string{
		"call +a(1)[source(percept)]",
		"step",
		"call -b",
		"step",
		"call +!g(x)",
		"step",
	}, eng.Trace())
	assert.Zero(t, b.Queue().Len())
}

func TestCycleWithEmptyQueueStepsOnce(t *testing.T) {
	box := bditest.NewScriptedMailbox()
	b, eng := recordingBridge(t, box)

	require.NoError(t, b.Cycle(context.Background()))
	assert.Equal(t, []string{"step"}, eng.Trace())
	assert.Zero(t, b.Queue().Len())
	assert.Equal(t, []time.Duration{0}, box.Timeouts())
}

func TestDisabledBridgeNeverTouchesEngine(t *testing.T) {
	box := bditest.NewScriptedMailbox(tell("bob", "likes(tea)"))
	b, eng := recordingBridge(t, box)
	b.Pause(context.Background())
	b.AddBelief("a", nil, nil, "")

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Cycle(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
	assert.Empty(t, eng.Ops())
	assert.Empty(t, box.Timeouts())
	assert.Equal(t, 1, box.Pending())
	assert.Equal(t, 1, b.Queue().Len())

	require.NoError(t, b.Resume(context.Background()))
	require.NoError(t, b.Cycle(context.Background()))
	assert.Len(t, eng.Calls(), 2)
}

func TestDisabledCycleHonoursContext(t *testing.T) {
	eng := bditest.NewRecordingEngine()
	b, err := New("alice", bditest.NewScriptedMailbox(), eng.Builder(), WithIdleDelay(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Cycle(ctx), context.Canceled)
}

func TestTellAddsBeliefWithSenderOrigin(t *testing.T) {
	box := bditest.NewScriptedMailbox(tell("agentA", `likes("agentA","coffee")`))
	b, err := New("alice", box, interpreter.New(),
		WithProgram(writeProgram(t, "name: alice\nplans: []\n")))
	require.NoError(t, err)
	require.NoError(t, b.Setup(context.Background()))

	require.NoError(t, b.Cycle(context.Background()))

	got, ok := b.FindByFunctor("likes", true)
	require.True(t, ok)
	assert.Equal(t, "agentA", got.Origin())
	assert.True(t, term.Unifies(got, BuildTerm("likes", Values("agentA", "coffee"), nil, "")))

	display, ok := b.FindBelief("likes", false)
	require.True(t, ok)
	assert.Equal(t, "likes(agentA,coffee)", display)

	values, ok := b.ValuesOf("likes")
	require.True(t, ok)
	assert.Equal(t, []string{"agentA", "coffee"}, values)
	assert.Equal(t, []string{"likes(agentA,coffee)[source(agentA)]"}, b.AllBeliefs(true))
}

func TestPolicyDropsDeniedMessages(t *testing.T) {
	box := bditest.NewScriptedMailbox(
		tell("guest", "weather(rain)"),
		tell("bob", "weather(sun)"),
		transport.NewMessage("guest", []string{"alice"}, "x").WithForce("shout"),
	)
	emitter := &core.RecordingEmitter{}
	policy := governance.NewRuleSet([]governance.Rule{
		{ID: "no-guests", Effect: governance.EffectDeny, Sender: "guest"},
	})
	b, err := New("alice", box, interpreter.New(),
		WithProgram(writeProgram(t, "name: alice\n")), WithPolicy(policy), WithEventEmitter(emitter))
	require.NoError(t, err)
	require.NoError(t, b.Setup(context.Background()))

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Cycle(context.Background()), "denied messages never fail the cycle")
	}
	assert.Equal(t, []string{"weather(sun)[source(bob)]"}, b.AllBeliefs(true))

	denied := emitter.Events(core.EventMessageDenied)
	require.Len(t, denied, 2)
	assert.Equal(t, "no-guests", denied[0].Payload["rule"])
	assert.Empty(t, emitter.Events(core.EventProtocolError))
}

func TestUntellAndAchieve(t *testing.T) {
	box := bditest.NewScriptedMailbox(
		transport.NewMessage("bob", []string{"alice"}, "likes(tea)").WithForce(ForceNameUntell),
		transport.NewMessage("bob", []string{"alice"}, "go(home)").WithForce(ForceNameAchieve),
	)
	b, eng := recordingBridge(t, box)
	eng.WithBeliefs(term.New("likes", term.Atom("tea")).WithOrigin("carol"))

	require.NoError(t, b.Cycle(context.Background()))
	require.NoError(t, b.Cycle(context.Background()))

	assert.Equal(t, []string{"call -likes(tea)", "step", "call +!go(home)[source(bob)]", "step"}, eng.Trace())
	assert.Empty(t, b.AllBeliefs(false))
}

func TestUnknownForceIsProtocolError(t *testing.T) {
	msg := transport.NewMessage("bob", []string{"alice"}, "likes(tea)").WithForce("unknown_force")
	emitter := &core.RecordingEmitter{}
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox(msg), WithEventEmitter(emitter))
	eng.WithBeliefs(term.Atom("ready"))

	err := b.Cycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProtocol)
	assert.Contains(t, err.Error(), "unknown_force")
	assert.Zero(t, b.Queue().Len())
	assert.Empty(t, eng.Ops())
	assert.Equal(t, []string{"ready"}, b.AllBeliefs(false))
	assert.Len(t, emitter.Events(core.EventProtocolError), 1)
}

func TestMalformedPayloadIsRecovered(t *testing.T) {
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox(tell("bob", "likes(")))

	require.NoError(t, b.Cycle(context.Background()))
	assert.Equal(t, []string{"call +likes[source(bob)]", "step"}, eng.Trace())
}

func TestCustomForce(t *testing.T) {
	msg := transport.NewMessage("bob", []string{"alice"}, "offer(3)").WithForce("propose")
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox(msg))

	var handled []transport.Message
	require.NoError(t, b.RegisterForce("propose", func(_ context.Context, m transport.Message) error {
		handled = append(handled, m)
		b.AddBelief("proposal", nil, nil, m.Sender)
		return nil
	}))
	assert.Equal(t, []string{"propose"}, b.Forces())

	require.NoError(t, b.Cycle(context.Background()))
	require.Len(t, handled, 1)
	assert.Equal(t, "offer(3)", handled[0].Body)
	assert.Equal(t, []string{"call +proposal[source(bob)]", "step"}, eng.Trace())

	assert.ErrorIs(t, b.RegisterForce(ForceNameTell, func(context.Context, transport.Message) error { return nil }), errors.ErrInvalidInput)
	assert.ErrorIs(t, b.RegisterForce("nil", nil), errors.ErrInvalidInput)
	assert.ErrorIs(t, b.RegisterForce("", nil), errors.ErrInvalidInput)
}

func TestCustomHandlerErrorPropagates(t *testing.T) {
	msg := transport.NewMessage("bob", []string{"alice"}, "offer(3)").WithForce("propose")
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox(msg))
	boom := errors.New(errors.CodeInternal, "boom", nil)
	require.NoError(t, b.RegisterForce("propose", func(context.Context, transport.Message) error { return boom }))

	assert.ErrorIs(t, b.Cycle(context.Background()), boom)
	assert.Empty(t, eng.Ops())
}

func TestMissingProgramDisablesBridge(t *testing.T) {
	emitter := &core.RecordingEmitter{}
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox(tell("bob", "likes(tea)")), WithEventEmitter(emitter))
	eng.Reset()

	require.NoError(t, b.SetProgramSource(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")))
	assert.False(t, b.Enabled())
	assert.Empty(t, b.ProgramPath())
	assert.Len(t, emitter.Events(core.EventProgramFailed), 1)

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Cycle(context.Background()))
	}
	assert.Empty(t, eng.Ops())
	assert.ErrorIs(t, b.Resume(context.Background()), errors.ErrConfiguration)
	assert.Nil(t, b.AllBeliefs(true))

	res := b.Health().Check(context.Background())
	assert.Equal(t, core.HealthDegraded, res.Status)
	assert.Contains(t, res.Message, "no program loaded")
}

func TestBuildFailureIsReturned(t *testing.T) {
	b, err := New("alice", bditest.NewScriptedMailbox(), interpreter.New(),
		WithProgram(writeProgram(t, "plans:\n  - trigger: likes\n")))
	require.NoError(t, err)

	err = b.Setup(context.Background())
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	assert.False(t, b.Enabled())
	assert.NotEmpty(t, b.ProgramPath())
}

func TestSetSingletonBelief(t *testing.T) {
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox())
	eng.WithBeliefs(
		term.New("temp", term.Int(10)).WithOrigin(term.PerceptOrigin),
		term.New("temp", term.Int(12)).WithOrigin("bob"),
		term.New("humidity", term.Int(40)),
	)

	b.SetSingletonBelief("temp", Values(20))
	assert.Equal(t, 1, b.Queue().Len())
	require.NoError(t, b.Cycle(context.Background()))

	assert.Equal(t, []string{
		"call -temp(10)[source(percept)]",
		"step",
		"call -temp(12)[source(bob)]",
		"step",
		"call +temp(20)[source(percept)]",
		"step",
	}, eng.Trace())
	assert.ElementsMatch(t, []string{"humidity(40)", "temp(20)"}, b.AllBeliefs(false))

	eng.Reset()
	b.SetSingletonBelief("temp", Values(20))
	require.NoError(t, b.Cycle(context.Background()))
	assert.Equal(t, []string{"step"}, eng.Trace(), "a satisfied set only steps")
	assert.Zero(t, b.Queue().Len())
}

func TestQueuedSingletonSetsLeaveOneBelief(t *testing.T) {
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox())
	eng.WithBeliefs(term.New("temp", term.Int(10)).WithOrigin(term.PerceptOrigin))

	b.SetSingletonBelief("temp", Values(20))
	b.SetSingletonBelief("temp", Values(30))
	require.NoError(t, b.Cycle(context.Background()))

	assert.Equal(t, []string{"temp(30)"}, b.AllBeliefs(false))
	assert.Zero(t, b.Queue().Len())
}

func TestFailedSingletonSetStaysQueued(t *testing.T) {
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox())
	eng.FailCalls(io.ErrUnexpectedEOF)

	b.SetSingletonBelief("temp", Values(20))
	assert.ErrorIs(t, b.Cycle(context.Background()), errors.ErrEngine)
	assert.Equal(t, 1, b.Queue().Len())
}

func TestReloadToMissingProgramDuringCycleDisables(t *testing.T) {
	box := bditest.NewScriptedMailbox()
	b, eng := recordingBridge(t, box)
	gone := filepath.Join(t.TempDir(), "gone.yaml")
	box.OnReceive(func(ctx context.Context) {
		box.OnReceive(nil)
		require.NoError(t, b.SetProgramSource(ctx, gone))
	})
	b.AddBelief("a", nil, nil, "")

	require.NoError(t, b.Cycle(context.Background()))
	assert.False(t, b.Enabled())
	assert.Empty(t, b.ProgramPath())
	assert.Empty(t, eng.Ops())
	assert.Equal(t, 1, b.Queue().Len())
}

func TestNonGroundPayloadsAreDropped(t *testing.T) {
	box := bditest.NewScriptedMailbox(
		tell("bob", "owns(X)"),
		transport.NewMessage("bob", []string{"alice"}, "fetch([a,Y])").WithForce(ForceNameAchieve),
		tell("bob", "owns(car)"),
		transport.NewMessage("bob", []string{"alice"}, "owns(_)").WithForce(ForceNameUntell),
	)
	b, eng := recordingBridge(t, box)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Cycle(context.Background()))
	}
	assert.Equal(t, []string{
		"step",
		"step",
		"call +owns(car)[source(bob)]",
		"step",
		"call -owns(_)",
		"step",
	}, eng.Trace())
	assert.Empty(t, b.AllBeliefs(false))
}

func TestMutationsEnqueuedDuringDrainWaitForNextCycle(t *testing.T) {
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox())
	stepped := 0
	eng.OnStep(func(context.Context) error {
		stepped++
		if stepped == 1 {
			b.AddBelief("late", nil, nil, "")
		}
		return nil
	})

	b.AddBelief("early", nil, nil, "")
	require.NoError(t, b.Cycle(context.Background()))
	assert.Equal(t, []string{"call +early[source(percept)]", "step"}, eng.Trace())
	assert.Equal(t, 1, b.Queue().Len())

	require.NoError(t, b.Cycle(context.Background()))
	assert.Equal(t, []string{"call +early[source(percept)]", "step", "call +late[source(percept)]", "step"}, eng.Trace())
	assert.Zero(t, b.Queue().Len())
}

func TestCallFailureKeepsMutationQueued(t *testing.T) {
	store := audit.NewMemoryStore()
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox(), WithAudit(store))
	eng.FailCalls(errors.New(errors.CodeEngine, "rejected", nil))

	b.AddBelief("a", nil, nil, "")
	b.AddBelief("b", nil, nil, "")
	err := b.Cycle(context.Background())
	assert.ErrorIs(t, err, errors.ErrEngine)
	assert.Equal(t, 2, b.Queue().Len())
	assert.Equal(t, []string{"call +a[source(percept)]"}, eng.Trace())

	entries, err := store.List(context.Background(), audit.Filter{Agent: "alice"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusFailed, entries[0].Status)
}

func TestForeignEngineErrorsAreWrapped(t *testing.T) {
	b, eng := recordingBridge(t, bditest.NewScriptedMailbox())
	eng.FailSteps(os.ErrClosed)

	err := b.Cycle(context.Background())
	assert.ErrorIs(t, err, errors.ErrEngine)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestAppliedMutationsAreJournaledAndEmitted(t *testing.T) {
	store := audit.NewMemoryStore()
	emitter := &core.RecordingEmitter{}
	b, _ := recordingBridge(t, bditest.NewScriptedMailbox(tell("bob", "likes(tea)")),
		WithAudit(store), WithEventEmitter(emitter))

	ctx := core.WithRunID(context.Background(), "run-1")
	require.NoError(t, b.Cycle(ctx))

	entries, err := store.List(ctx, audit.Filter{Agent: "alice"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.Entry{
		Agent:     "alice",
		RunID:     "run-1",
		Seq:       1,
		Trigger:   "add",
		Goal:      "belief",
		Term:      "likes(tea)[source(bob)]",
		Origin:    "bob",
		Status:    audit.StatusApplied,
		AppliedAt: entries[0].AppliedAt,
	}, entries[0])

	applied := emitter.Events(core.EventMutationApplied)
	require.Len(t, applied, 1)
	assert.Equal(t, "run-1", applied[0].RunID)
	assert.Equal(t, "belief", applied[0].Payload["goal"])
	assert.Len(t, emitter.Events(core.EventMessageReceived), 1)
}

func TestPauseResumeEvents(t *testing.T) {
	emitter := &core.RecordingEmitter{}
	b, _ := recordingBridge(t, bditest.NewScriptedMailbox(), WithEventEmitter(emitter))
	ctx := context.Background()

	b.Pause(ctx)
	b.Pause(ctx)
	require.NoError(t, b.Resume(ctx))
	require.NoError(t, b.Resume(ctx))

	assert.Len(t, emitter.Events(core.EventBridgePaused), 1)
	assert.Len(t, emitter.Events(core.EventBridgeResumed), 2, "Setup resumes once")
	assert.Equal(t, core.HealthHealthy, b.Health().Check(ctx).Status)
}

const sender = `
name: alice
plans:
  - trigger: "+!greet(N)"
    body:
      - '.send([bob, "carol"], tell, hi(N))'
  - trigger: "+!shout"
    body:
      - ".send(bob, Force, hi)"
`

func TestSendHookSubmitsOneMessagePerReceiver(t *testing.T) {
	box := bditest.NewScriptedMailbox()
	b, err := New("alice", box, interpreter.New(),
		WithProgram(writeProgram(t, sender)), WithSendRetry(resilience.NoRetry()))
	require.NoError(t, err)
	require.NoError(t, b.Setup(context.Background()))

	b.AddAchievementGoal("greet", Values(3), nil, "")
	require.NoError(t, b.Cycle(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sent, err := box.WaitSent(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, b.Close(ctx))

	var to []string
	for _, msg := range sent {
		to = append(to, msg.To...)
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, "hi(3)", msg.Body)
		assert.Equal(t, map[string]string{
			transport.MetaPerformative: transport.PerformativeBDI,
			transport.MetaForce:        "tell",
		}, msg.Metadata)
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, to)
}

func TestSendHookIgnoresNonAtomForce(t *testing.T) {
	box := bditest.NewScriptedMailbox()
	b, err := New("alice", box, interpreter.New(), WithProgram(writeProgram(t, sender)))
	require.NoError(t, err)
	require.NoError(t, b.Setup(context.Background()))

	b.AddAchievementGoal("shout", nil, nil, "")
	require.NoError(t, b.Cycle(context.Background()))
	require.NoError(t, b.Close(context.Background()))
	assert.Empty(t, box.Sent())

	call := term.New(SendAction, term.Atom("bob"), term.String("tell"), term.Atom("hi"))
	require.NoError(t, b.sendAction(context.Background(), nil, call, nil))
	assert.Empty(t, box.Sent())
}

func TestSendHookRejectsUnboundReceiver(t *testing.T) {
	b, _ := recordingBridge(t, bditest.NewScriptedMailbox())
	call := term.New(SendAction, term.Var("Who"), term.Atom("tell"), term.Atom("hi"))
	err := b.sendAction(context.Background(), nil, call, engine.NewIntention())
	assert.ErrorIs(t, err, errors.ErrEngine)
}

func TestSendFailureIsReportedNotReturned(t *testing.T) {
	box := bditest.NewScriptedMailbox()
	box.FailSends(errors.New(errors.CodeNotFound, "no such agent", nil))
	emitter := &core.RecordingEmitter{}
	b, _ := recordingBridge(t, box, WithEventEmitter(emitter))

	call := term.New(SendAction, term.Atom("bob"), term.Atom("tell"), term.Atom("hi"))
	require.NoError(t, b.sendAction(context.Background(), nil, call, nil))
	require.NoError(t, b.Close(context.Background()))

	sentEvents := emitter.Events(core.EventMessageSent)
	require.Len(t, sentEvents, 1)
	assert.Contains(t, sentEvents[0].Payload["error"], "no such agent")
	assert.Len(t, box.Sent(), 1, "not-found errors are not retried")
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	box := bditest.NewScriptedMailbox()
	b, _ := recordingBridge(t, box)
	require.NoError(t, b.Close(context.Background()))

	call := term.New(SendAction, term.Atom("bob"), term.Atom("tell"), term.Atom("hi"))
	require.NoError(t, b.sendAction(context.Background(), nil, call, nil))
	assert.Empty(t, box.Sent())
}
